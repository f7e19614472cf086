package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/vacation"
)

// =============================================================================
// RATE ROWS
// =============================================================================

// Rate constants are stored as one JSON document per row; only the
// validity window is queried on.
type rateRowRow struct {
	ID        string         `db:"id"`
	StartDate string         `db:"start_date"`
	EndDate   sql.NullString `db:"end_date"`
	DataJSON  string         `db:"data_json"`
}

func (s *Store) PutRateRow(ctx context.Context, row cao.RateRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal rate row: %w", err)
	}
	_, err = s.namedExec(ctx, `
		INSERT INTO rate_rows (id, start_date, end_date, data_json)
		VALUES (:id, :start_date, :end_date, :data_json)
		ON CONFLICT (id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			data_json = excluded.data_json
	`, rateRowRow{
		ID:        string(row.ID),
		StartDate: row.StartDate.String(),
		EndDate:   nullDate(row.EndDate),
		DataJSON:  string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save rate row: %w", err)
	}
	return nil
}

func (s *Store) RateRows(ctx context.Context) ([]cao.RateRow, error) {
	var rows []rateRowRow
	if err := s.selectAll(ctx, &rows, `SELECT id, start_date, end_date, data_json FROM rate_rows ORDER BY start_date`); err != nil {
		return nil, fmt.Errorf("failed to load rate rows: %w", err)
	}
	out := make([]cao.RateRow, 0, len(rows))
	for _, r := range rows {
		var row cao.RateRow
		if err := json.Unmarshal([]byte(r.DataJSON), &row); err != nil {
			return nil, fmt.Errorf("failed to decode rate row %s: %w", r.ID, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// =============================================================================
// HOURS CODES AND OPTIONS
// =============================================================================

type hoursCodeRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Kind        string `db:"kind"`
	Consignment bool   `db:"consignment"`
}

func (s *Store) PutHoursCode(ctx context.Context, code compensation.HoursCode) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO hours_codes (id, name, kind, consignment)
		VALUES (:id, :name, :kind, :consignment)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			consignment = excluded.consignment
	`, hoursCodeRow{ID: string(code.ID), Name: code.Name, Kind: string(code.Kind), Consignment: code.Consignment})
	if err != nil {
		return fmt.Errorf("failed to save hours code: %w", err)
	}
	return nil
}

func (s *Store) HoursCode(ctx context.Context, id generic.HoursCodeID) (compensation.HoursCode, error) {
	var r hoursCodeRow
	if err := s.getOne(ctx, "hours code", string(id), &r, `SELECT id, name, kind, consignment FROM hours_codes WHERE id = ?`, string(id)); err != nil {
		return compensation.HoursCode{}, err
	}
	return compensation.HoursCode{
		ID:          generic.HoursCodeID(r.ID),
		Name:        r.Name,
		Kind:        cao.DayKind(r.Kind),
		Consignment: r.Consignment,
	}, nil
}

type hoursOptionRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Modifier string `db:"modifier"`
}

func (s *Store) PutHoursOption(ctx context.Context, option compensation.HoursOption) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO hours_options (id, name, modifier)
		VALUES (:id, :name, :modifier)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			modifier = excluded.modifier
	`, hoursOptionRow{ID: string(option.ID), Name: option.Name, Modifier: string(option.Modifier)})
	if err != nil {
		return fmt.Errorf("failed to save hours option: %w", err)
	}
	return nil
}

func (s *Store) HoursOption(ctx context.Context, id generic.HoursOptionID) (compensation.HoursOption, error) {
	var r hoursOptionRow
	if err := s.getOne(ctx, "hours option", string(id), &r, `SELECT id, name, modifier FROM hours_options WHERE id = ?`, string(id)); err != nil {
		return compensation.HoursOption{}, err
	}
	return compensation.HoursOption{
		ID:       generic.HoursOptionID(r.ID),
		Name:     r.Name,
		Modifier: cao.Modifier(r.Modifier),
	}, nil
}

// =============================================================================
// DRIVERS
// =============================================================================

type driverRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	BirthDate string `db:"birth_date"`
}

func (s *Store) PutDriver(ctx context.Context, driver payroll.Driver) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO drivers (id, name, birth_date)
		VALUES (:id, :name, :birth_date)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date
	`, driverRow{ID: string(driver.ID), Name: driver.Name, BirthDate: driver.BirthDate.String()})
	if err != nil {
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

func (s *Store) Driver(ctx context.Context, id generic.DriverID) (payroll.Driver, error) {
	var r driverRow
	if err := s.getOne(ctx, "driver", string(id), &r, `SELECT id, name, birth_date FROM drivers WHERE id = ?`, string(id)); err != nil {
		return payroll.Driver{}, err
	}
	birth, err := generic.ParseDate(r.BirthDate)
	if err != nil {
		return payroll.Driver{}, err
	}
	return payroll.Driver{ID: generic.DriverID(r.ID), Name: r.Name, BirthDate: birth}, nil
}

func (s *Store) BirthDate(ctx context.Context, driverID generic.DriverID) (generic.TimePoint, error) {
	var r driverRow
	if err := s.getOne(ctx, "driver", string(driverID), &r, `SELECT id, name, birth_date FROM drivers WHERE id = ?`, string(driverID)); err != nil {
		return generic.TimePoint{}, err
	}
	return generic.ParseDate(r.BirthDate)
}

type settingsRow struct {
	DriverID                  string          `db:"driver_id"`
	HourlyWage                decimal.Decimal `db:"hourly_wage"`
	NightHoursEnabled         bool            `db:"night_hours_enabled"`
	KilometerAllowanceEnabled bool            `db:"kilometer_allowance_enabled"`
	HomeWorkDistanceKm        decimal.Decimal `db:"home_work_distance_km"`
	PartTimePercentage        decimal.Decimal `db:"part_time_percentage"`
}

func (s *Store) PutDriverSettings(ctx context.Context, settings compensation.DriverSettings) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO driver_settings (driver_id, hourly_wage, night_hours_enabled, kilometer_allowance_enabled, home_work_distance_km, part_time_percentage)
		VALUES (:driver_id, :hourly_wage, :night_hours_enabled, :kilometer_allowance_enabled, :home_work_distance_km, :part_time_percentage)
		ON CONFLICT (driver_id) DO UPDATE SET
			hourly_wage = excluded.hourly_wage,
			night_hours_enabled = excluded.night_hours_enabled,
			kilometer_allowance_enabled = excluded.kilometer_allowance_enabled,
			home_work_distance_km = excluded.home_work_distance_km,
			part_time_percentage = excluded.part_time_percentage
	`, settingsRow{
		DriverID:                  string(settings.DriverID),
		HourlyWage:                settings.HourlyWage,
		NightHoursEnabled:         settings.NightHoursEnabled,
		KilometerAllowanceEnabled: settings.KilometerAllowanceEnabled,
		HomeWorkDistanceKm:        settings.HomeWorkDistanceKm,
		PartTimePercentage:        settings.PartTimePercentage,
	})
	if err != nil {
		return fmt.Errorf("failed to save driver settings: %w", err)
	}
	return nil
}

func (s *Store) DriverSettings(ctx context.Context, driverID generic.DriverID) (compensation.DriverSettings, error) {
	var r settingsRow
	err := s.getOne(ctx, "driver settings", string(driverID), &r, `
		SELECT driver_id, hourly_wage, night_hours_enabled, kilometer_allowance_enabled, home_work_distance_km, part_time_percentage
		FROM driver_settings WHERE driver_id = ?
	`, string(driverID))
	if err != nil {
		return compensation.DriverSettings{}, err
	}
	return compensation.DriverSettings{
		DriverID:                  generic.DriverID(r.DriverID),
		HourlyWage:                r.HourlyWage,
		NightHoursEnabled:         r.NightHoursEnabled,
		KilometerAllowanceEnabled: r.KilometerAllowanceEnabled,
		HomeWorkDistanceKm:        r.HomeWorkDistanceKm,
		PartTimePercentage:        r.PartTimePercentage,
	}, nil
}

// =============================================================================
// VACATION
// =============================================================================

type contractRow struct {
	ID             string         `db:"id"`
	DriverID       string         `db:"driver_id"`
	StartDate      string         `db:"start_date"`
	LastWorkingDay sql.NullString `db:"last_working_day"`
}

func (s *Store) PutContract(ctx context.Context, contract vacation.Contract) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO contracts (id, driver_id, start_date, last_working_day)
		VALUES (:id, :driver_id, :start_date, :last_working_day)
		ON CONFLICT (id) DO UPDATE SET
			driver_id = excluded.driver_id,
			start_date = excluded.start_date,
			last_working_day = excluded.last_working_day
	`, contractRow{
		ID:             contract.ID,
		DriverID:       string(contract.DriverID),
		StartDate:      contract.StartDate.String(),
		LastWorkingDay: nullDate(contract.LastWorkingDay),
	})
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}
	return nil
}

func (s *Store) Contracts(ctx context.Context, driverID generic.DriverID) ([]vacation.Contract, error) {
	var rows []contractRow
	err := s.selectAll(ctx, &rows, `
		SELECT id, driver_id, start_date, last_working_day
		FROM contracts WHERE driver_id = ? ORDER BY start_date
	`, string(driverID))
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	out := make([]vacation.Contract, 0, len(rows))
	for _, r := range rows {
		start, err := generic.ParseDate(r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid contract %s: %w", r.ID, err)
		}
		last, err := parseNullDate(r.LastWorkingDay)
		if err != nil {
			return nil, fmt.Errorf("invalid contract %s: %w", r.ID, err)
		}
		out = append(out, vacation.Contract{
			ID:             r.ID,
			DriverID:       generic.DriverID(r.DriverID),
			StartDate:      start,
			LastWorkingDay: last,
		})
	}
	return out, nil
}

type entitlementRow struct {
	ID        string          `db:"id"`
	MinAge    int             `db:"min_age"`
	MaxAge    sql.NullInt64   `db:"max_age"`
	Days      decimal.Decimal `db:"days"`
	ValidFrom string          `db:"valid_from"`
	ValidTo   sql.NullString  `db:"valid_to"`
}

func (s *Store) PutEntitlement(ctx context.Context, e vacation.Entitlement) error {
	row := entitlementRow{
		ID:        e.ID,
		MinAge:    e.MinAge,
		Days:      e.Days,
		ValidFrom: e.ValidFrom.String(),
		ValidTo:   nullDate(e.ValidTo),
	}
	if e.MaxAge != nil {
		row.MaxAge = sql.NullInt64{Int64: int64(*e.MaxAge), Valid: true}
	}
	_, err := s.namedExec(ctx, `
		INSERT INTO vacation_entitlements (id, min_age, max_age, days, valid_from, valid_to)
		VALUES (:id, :min_age, :max_age, :days, :valid_from, :valid_to)
		ON CONFLICT (id) DO UPDATE SET
			min_age = excluded.min_age,
			max_age = excluded.max_age,
			days = excluded.days,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to
	`, row)
	if err != nil {
		return fmt.Errorf("failed to save vacation entitlement: %w", err)
	}
	return nil
}

func (s *Store) Entitlements(ctx context.Context) ([]vacation.Entitlement, error) {
	var rows []entitlementRow
	err := s.selectAll(ctx, &rows, `
		SELECT id, min_age, max_age, days, valid_from, valid_to
		FROM vacation_entitlements ORDER BY min_age, valid_from
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load vacation entitlements: %w", err)
	}

	out := make([]vacation.Entitlement, 0, len(rows))
	for _, r := range rows {
		from, err := generic.ParseDate(r.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid entitlement %s: %w", r.ID, err)
		}
		to, err := parseNullDate(r.ValidTo)
		if err != nil {
			return nil, fmt.Errorf("invalid entitlement %s: %w", r.ID, err)
		}
		e := vacation.Entitlement{ID: r.ID, MinAge: r.MinAge, Days: r.Days, ValidFrom: from, ValidTo: to}
		if r.MaxAge.Valid {
			maxAge := int(r.MaxAge.Int64)
			e.MaxAge = &maxAge
		}
		out = append(out, e)
	}
	return out, nil
}
