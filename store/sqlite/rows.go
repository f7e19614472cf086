package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/ride"
)

// =============================================================================
// RIDE COLUMNS - shared by ride_records and ride_executions
// =============================================================================

type InputColumns struct {
	Date            string              `db:"date"`
	StartHours      decimal.Decimal     `db:"start_hours"`
	EndHours        decimal.Decimal     `db:"end_hours"`
	RestTaken       decimal.Decimal     `db:"rest_taken"`
	OdometerStart   decimal.NullDecimal `db:"odometer_start"`
	OdometerEnd     decimal.NullDecimal `db:"odometer_end"`
	ExtraKilometers decimal.Decimal     `db:"extra_kilometers"`
	HoursCode       string              `db:"hours_code"`
	HoursOption     string              `db:"hours_option"`
	CorrectionHours decimal.Decimal     `db:"correction_hours"`
}

func toInputColumns(in ride.RawInputs) InputColumns {
	return InputColumns{
		Date:            in.Date.String(),
		StartHours:      in.Start,
		EndHours:        in.End,
		RestTaken:       in.RestTaken,
		OdometerStart:   nullDecimal(in.OdometerStart),
		OdometerEnd:     nullDecimal(in.OdometerEnd),
		ExtraKilometers: in.ExtraKilometers,
		HoursCode:       string(in.HoursCode),
		HoursOption:     string(in.HoursOption),
		CorrectionHours: in.CorrectionHours,
	}
}

func (c InputColumns) rawInputs() (ride.RawInputs, error) {
	date, err := generic.ParseDate(c.Date)
	if err != nil {
		return ride.RawInputs{}, fmt.Errorf("invalid ride date: %w", err)
	}
	return ride.RawInputs{
		Date:            date,
		Start:           c.StartHours,
		End:             c.EndHours,
		RestTaken:       c.RestTaken,
		OdometerStart:   decimalPtr(c.OdometerStart),
		OdometerEnd:     decimalPtr(c.OdometerEnd),
		ExtraKilometers: c.ExtraKilometers,
		HoursCode:       generic.HoursCodeID(c.HoursCode),
		HoursOption:     generic.HoursOptionID(c.HoursOption),
		CorrectionHours: c.CorrectionHours,
	}, nil
}

// ResultColumns are all NULL until the calculator has run.
type ResultColumns struct {
	DecimalHours              decimal.NullDecimal `db:"decimal_hours"`
	CalculatedRest            decimal.NullDecimal `db:"calculated_rest"`
	UntaxedAllowance          decimal.NullDecimal `db:"untaxed_allowance"`
	NightHours                decimal.NullDecimal `db:"night_hours"`
	NightAllowance            decimal.NullDecimal `db:"night_allowance"`
	HomeWorkKilometers        decimal.NullDecimal `db:"home_work_kilometers"`
	KilometerAllowance        decimal.NullDecimal `db:"kilometer_allowance"`
	ConsignmentAllowance      decimal.NullDecimal `db:"consignment_allowance"`
	SaturdayHours             decimal.NullDecimal `db:"saturday_hours"`
	SundayHolidayHours        decimal.NullDecimal `db:"sunday_holiday_hours"`
	SickHours                 decimal.NullDecimal `db:"sick_hours"`
	VacationHoursTaken        decimal.NullDecimal `db:"vacation_hours_taken"`
	VacationHoursEarned       decimal.NullDecimal `db:"vacation_hours_earned"`
	ExceedingContainerWaiting decimal.NullDecimal `db:"exceeding_container_waiting"`
	ISOYear                   sql.NullInt64       `db:"iso_year"`
	ISOWeek                   sql.NullInt64       `db:"iso_week"`
	Period                    sql.NullInt64       `db:"period"`
	WeekInPeriod              sql.NullInt64       `db:"week_in_period"`
	RateRowID                 sql.NullString      `db:"rate_row_id"`
	DayKind                   sql.NullString      `db:"day_kind"`
}

func toResultColumns(r *compensation.Result) ResultColumns {
	if r == nil {
		return ResultColumns{}
	}
	known := func(d decimal.Decimal) decimal.NullDecimal { return decimal.NullDecimal{Decimal: d, Valid: true} }
	known64 := func(n int) sql.NullInt64 { return sql.NullInt64{Int64: int64(n), Valid: true} }
	return ResultColumns{
		DecimalHours:              known(r.DecimalHours),
		CalculatedRest:            known(r.CalculatedRest),
		UntaxedAllowance:          known(r.UntaxedAllowance),
		NightHours:                known(r.NightHours),
		NightAllowance:            known(r.NightAllowance),
		HomeWorkKilometers:        known(r.HomeWorkKilometers),
		KilometerAllowance:        known(r.KilometerAllowance),
		ConsignmentAllowance:      known(r.ConsignmentAllowance),
		SaturdayHours:             known(r.SaturdayHours),
		SundayHolidayHours:        known(r.SundayHolidayHours),
		SickHours:                 known(r.SickHours),
		VacationHoursTaken:        known(r.VacationHoursTaken),
		VacationHoursEarned:       known(r.VacationHoursEarned),
		ExceedingContainerWaiting: nullDecimal(r.ExceedingContainerWaiting),
		ISOYear:                   known64(r.ISOYear),
		ISOWeek:                   known64(r.ISOWeek),
		Period:                    known64(r.Period),
		WeekInPeriod:              known64(r.WeekInPeriod),
		RateRowID:                 sql.NullString{String: string(r.RateRowID), Valid: true},
		DayKind:                   sql.NullString{String: string(r.Kind), Valid: true},
	}
}

// result returns nil when the row was never computed.
func (c ResultColumns) result() *compensation.Result {
	if !c.DecimalHours.Valid {
		return nil
	}
	return &compensation.Result{
		DecimalHours:              c.DecimalHours.Decimal,
		CalculatedRest:            c.CalculatedRest.Decimal,
		UntaxedAllowance:          c.UntaxedAllowance.Decimal,
		NightHours:                c.NightHours.Decimal,
		NightAllowance:            c.NightAllowance.Decimal,
		HomeWorkKilometers:        c.HomeWorkKilometers.Decimal,
		KilometerAllowance:        c.KilometerAllowance.Decimal,
		ConsignmentAllowance:      c.ConsignmentAllowance.Decimal,
		SaturdayHours:             c.SaturdayHours.Decimal,
		SundayHolidayHours:        c.SundayHolidayHours.Decimal,
		SickHours:                 c.SickHours.Decimal,
		VacationHoursTaken:        c.VacationHoursTaken.Decimal,
		VacationHoursEarned:       c.VacationHoursEarned.Decimal,
		ExceedingContainerWaiting: decimalPtr(c.ExceedingContainerWaiting),
		ISOYear:                   int(c.ISOYear.Int64),
		ISOWeek:                   int(c.ISOWeek.Int64),
		Period:                    int(c.Period.Int64),
		WeekInPeriod:              int(c.WeekInPeriod.Int64),
		RateRowID:                 generic.RateRowID(c.RateRowID.String),
		Kind:                      cao.DayKind(c.DayKind.String),
	}
}

type recordRow struct {
	ID       string `db:"id"`
	DriverID string `db:"driver_id"`
	InputColumns
	ResultColumns
	WeekApprovalID sql.NullString `db:"week_approval_id"`
	Version        int            `db:"version"`
}

func toRecordRow(rec ride.Record) recordRow {
	return recordRow{
		ID:             string(rec.ID),
		DriverID:       string(rec.DriverID),
		InputColumns:   toInputColumns(rec.RawInputs),
		ResultColumns:  toResultColumns(rec.Result),
		WeekApprovalID: nullString(string(rec.WeekApprovalID)),
		Version:        rec.Version,
	}
}

func (r recordRow) record() (ride.Record, error) {
	in, err := r.rawInputs()
	if err != nil {
		return ride.Record{}, err
	}
	return ride.Record{
		ID:             generic.RideID(r.ID),
		DriverID:       generic.DriverID(r.DriverID),
		RawInputs:      in,
		Result:         r.result(),
		WeekApprovalID: generic.WeekApprovalID(r.WeekApprovalID.String),
		Version:        r.Version,
	}, nil
}

type executionRow struct {
	ID       string `db:"id"`
	RideID   string `db:"ride_id"`
	DriverID string `db:"driver_id"`
	InputColumns
	ContainerWaiting decimal.NullDecimal `db:"container_waiting"`
	ResultColumns
	WeekApprovalID sql.NullString `db:"week_approval_id"`
	Version        int            `db:"version"`
}

func toExecutionRow(ex ride.Execution) executionRow {
	return executionRow{
		ID:               string(ex.ID),
		RideID:           string(ex.RideID),
		DriverID:         string(ex.DriverID),
		InputColumns:     toInputColumns(ex.RawInputs),
		ContainerWaiting: nullDecimal(ex.ContainerWaiting),
		ResultColumns:    toResultColumns(ex.Result),
		WeekApprovalID:   nullString(string(ex.WeekApprovalID)),
		Version:          ex.Version,
	}
}

func (r executionRow) execution() (ride.Execution, error) {
	in, err := r.rawInputs()
	if err != nil {
		return ride.Execution{}, err
	}
	return ride.Execution{
		ID:               generic.ExecutionID(r.ID),
		RideID:           generic.RideID(r.RideID),
		DriverID:         generic.DriverID(r.DriverID),
		RawInputs:        in,
		ContainerWaiting: decimalPtr(r.ContainerWaiting),
		Result:           r.result(),
		WeekApprovalID:   generic.WeekApprovalID(r.WeekApprovalID.String),
		Version:          r.Version,
	}, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}
