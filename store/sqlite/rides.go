package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/ride"
)

const inputColumnList = `date, start_hours, end_hours, rest_taken, odometer_start, odometer_end,
	extra_kilometers, hours_code, hours_option, correction_hours`

const resultColumnList = `decimal_hours, calculated_rest, untaxed_allowance, night_hours, night_allowance,
	home_work_kilometers, kilometer_allowance, consignment_allowance, saturday_hours,
	sunday_holiday_hours, sick_hours, vacation_hours_taken, vacation_hours_earned,
	exceeding_container_waiting, iso_year, iso_week, period, week_in_period, rate_row_id, day_kind`

const inputParamList = `:date, :start_hours, :end_hours, :rest_taken, :odometer_start, :odometer_end,
	:extra_kilometers, :hours_code, :hours_option, :correction_hours`

const resultParamList = `:decimal_hours, :calculated_rest, :untaxed_allowance, :night_hours, :night_allowance,
	:home_work_kilometers, :kilometer_allowance, :consignment_allowance, :saturday_hours,
	:sunday_holiday_hours, :sick_hours, :vacation_hours_taken, :vacation_hours_earned,
	:exceeding_container_waiting, :iso_year, :iso_week, :period, :week_in_period, :rate_row_id, :day_kind`

const rideSetList = `date = :date, start_hours = :start_hours, end_hours = :end_hours,
	rest_taken = :rest_taken, odometer_start = :odometer_start, odometer_end = :odometer_end,
	extra_kilometers = :extra_kilometers, hours_code = :hours_code, hours_option = :hours_option,
	correction_hours = :correction_hours,
	decimal_hours = :decimal_hours, calculated_rest = :calculated_rest,
	untaxed_allowance = :untaxed_allowance, night_hours = :night_hours,
	night_allowance = :night_allowance, home_work_kilometers = :home_work_kilometers,
	kilometer_allowance = :kilometer_allowance, consignment_allowance = :consignment_allowance,
	saturday_hours = :saturday_hours, sunday_holiday_hours = :sunday_holiday_hours,
	sick_hours = :sick_hours, vacation_hours_taken = :vacation_hours_taken,
	vacation_hours_earned = :vacation_hours_earned,
	exceeding_container_waiting = :exceeding_container_waiting,
	iso_year = :iso_year, iso_week = :iso_week, period = :period,
	week_in_period = :week_in_period, rate_row_id = :rate_row_id, day_kind = :day_kind,
	week_approval_id = :week_approval_id, version = version + 1`

// =============================================================================
// RIDE RECORDS (legacy shape)
// =============================================================================

const selectRecord = `SELECT id, driver_id, ` + inputColumnList + `, ` + resultColumnList + `,
	week_approval_id, version FROM ride_records`

func (s *Store) GetRecord(ctx context.Context, id generic.RideID) (ride.Record, error) {
	var r recordRow
	if err := s.getOne(ctx, "ride record", string(id), &r, selectRecord+` WHERE id = ?`, string(id)); err != nil {
		return ride.Record{}, err
	}
	return r.record()
}

func (s *Store) CreateRecord(ctx context.Context, rec ride.Record) error {
	return s.insertUnique(ctx, "ride record", string(rec.ID), `
		INSERT INTO ride_records (id, driver_id, `+inputColumnList+`, `+resultColumnList+`, week_approval_id, version)
		VALUES (:id, :driver_id, `+inputParamList+`, `+resultParamList+`, :week_approval_id, :version)
		ON CONFLICT DO NOTHING
	`, toRecordRow(rec))
}

func (s *Store) UpdateRecord(ctx context.Context, rec ride.Record) error {
	return s.updateVersioned(ctx, "ride record", "ride_records", string(rec.ID), rec.Version, `
		UPDATE ride_records SET `+rideSetList+`
		WHERE id = :id AND version = :version
	`, toRecordRow(rec))
}

func (s *Store) ListRecords(ctx context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Record, error) {
	var rows []recordRow
	err := s.selectAll(ctx, &rows, selectRecord+`
		WHERE driver_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id
	`, string(driverID), span.Start.String(), span.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list ride records: %w", err)
	}

	out := make([]ride.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// =============================================================================
// SHARED RIDES AND EXECUTIONS
// =============================================================================

type rideRow struct {
	ID          string `db:"id"`
	Date        string `db:"date"`
	Description string `db:"description"`
}

func (s *Store) GetRide(ctx context.Context, id generic.RideID) (ride.Ride, error) {
	var r rideRow
	if err := s.getOne(ctx, "ride", string(id), &r, `SELECT id, date, description FROM rides WHERE id = ?`, string(id)); err != nil {
		return ride.Ride{}, err
	}
	date, err := generic.ParseDate(r.Date)
	if err != nil {
		return ride.Ride{}, fmt.Errorf("invalid ride %s: %w", r.ID, err)
	}
	return ride.Ride{ID: generic.RideID(r.ID), Date: date, Description: r.Description}, nil
}

func (s *Store) PutRide(ctx context.Context, r ride.Ride) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO rides (id, date, description)
		VALUES (:id, :date, :description)
		ON CONFLICT (id) DO UPDATE SET
			date = excluded.date,
			description = excluded.description
	`, rideRow{ID: string(r.ID), Date: r.Date.String(), Description: r.Description})
	if err != nil {
		return fmt.Errorf("failed to save ride: %w", err)
	}
	return nil
}

const selectExecution = `SELECT id, ride_id, driver_id, ` + inputColumnList + `, container_waiting, ` + resultColumnList + `,
	week_approval_id, version FROM ride_executions`

func (s *Store) GetExecution(ctx context.Context, id generic.ExecutionID) (ride.Execution, error) {
	var r executionRow
	if err := s.getOne(ctx, "execution", string(id), &r, selectExecution+` WHERE id = ?`, string(id)); err != nil {
		return ride.Execution{}, err
	}
	return r.execution()
}

func (s *Store) CreateExecution(ctx context.Context, ex ride.Execution) error {
	return s.insertUnique(ctx, "execution", string(ex.ID), `
		INSERT INTO ride_executions (id, ride_id, driver_id, `+inputColumnList+`, container_waiting, `+resultColumnList+`, week_approval_id, version)
		VALUES (:id, :ride_id, :driver_id, `+inputParamList+`, :container_waiting, `+resultParamList+`, :week_approval_id, :version)
		ON CONFLICT DO NOTHING
	`, toExecutionRow(ex))
}

func (s *Store) UpdateExecution(ctx context.Context, ex ride.Execution) error {
	return s.updateVersioned(ctx, "execution", "ride_executions", string(ex.ID), ex.Version, `
		UPDATE ride_executions SET container_waiting = :container_waiting, `+rideSetList+`
		WHERE id = :id AND version = :version
	`, toExecutionRow(ex))
}

func (s *Store) ListExecutions(ctx context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Execution, error) {
	var rows []executionRow
	err := s.selectAll(ctx, &rows, selectExecution+`
		WHERE driver_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id
	`, string(driverID), span.Start.String(), span.End.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	out := make([]ride.Execution, 0, len(rows))
	for _, r := range rows {
		ex, err := r.execution()
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}
