package sqlite

import "fmt"

// migrate creates the database schema. The DDL is portable between SQLite
// and PostgreSQL: dates and timestamps are TEXT, decimals are TEXT.
func (s *Store) migrate() error {
	statements := []string{
		// Reference data
		`CREATE TABLE IF NOT EXISTS rate_rows (
			id TEXT PRIMARY KEY,
			start_date TEXT NOT NULL,
			end_date TEXT,
			data_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_rows_start ON rate_rows(start_date)`,

		`CREATE TABLE IF NOT EXISTS hours_codes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			consignment BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS hours_options (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			modifier TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			birth_date TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS driver_settings (
			driver_id TEXT PRIMARY KEY,
			hourly_wage TEXT NOT NULL,
			night_hours_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			kilometer_allowance_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			home_work_distance_km TEXT NOT NULL,
			part_time_percentage TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contracts (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			start_date TEXT NOT NULL,
			last_working_day TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_driver ON contracts(driver_id)`,

		`CREATE TABLE IF NOT EXISTS vacation_entitlements (
			id TEXT PRIMARY KEY,
			min_age INTEGER NOT NULL,
			max_age INTEGER,
			days TEXT NOT NULL,
			valid_from TEXT NOT NULL,
			valid_to TEXT
		)`,

		// Rides
		`CREATE TABLE IF NOT EXISTS ride_records (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			` + inputColumnsDDL + `,
			` + resultColumnsDDL + `,
			week_approval_id TEXT,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ride_records_driver_date ON ride_records(driver_id, date)`,

		`CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS ride_executions (
			id TEXT PRIMARY KEY,
			ride_id TEXT NOT NULL REFERENCES rides(id),
			driver_id TEXT NOT NULL,
			` + inputColumnsDDL + `,
			container_waiting TEXT,
			` + resultColumnsDDL + `,
			week_approval_id TEXT,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ride_executions_driver_date ON ride_executions(driver_id, date)`,

		// Approvals
		`CREATE TABLE IF NOT EXISTS week_approvals (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			iso_year INTEGER NOT NULL,
			iso_week INTEGER NOT NULL,
			period INTEGER NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending_admin', 'pending_driver', 'signed', 'invalidated')),
			allowed_at TEXT,
			allowed_by TEXT,
			allowed_context TEXT,
			signed_at TEXT,
			signed_by TEXT,
			signed_context TEXT,
			invalidated_at TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_week_approvals_key ON week_approvals(driver_id, iso_year, iso_week)`,

		`CREATE TABLE IF NOT EXISTS period_approvals (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			number INTEGER NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending_driver', 'pending_admin', 'signed', 'invalidated')),
			driver_signed_at TEXT,
			driver_signed_by TEXT,
			driver_signed_context TEXT,
			admin_signed_at TEXT,
			admin_signed_by TEXT,
			admin_signed_context TEXT,
			invalidated_at TEXT,
			total_hours TEXT NOT NULL,
			total_compensation TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_period_approvals_key ON period_approvals(driver_id, year, number)`,

		// Disputes
		`CREATE TABLE IF NOT EXISTS disputes (
			id TEXT PRIMARY KEY,
			ride_id TEXT NOT NULL REFERENCES ride_records(id),
			driver_id TEXT NOT NULL,
			opened_by TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			proposed_correction TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending_driver', 'pending_admin', 'accepted_by_driver', 'accepted_by_admin', 'closed')),
			created_at TEXT NOT NULL,
			resolved_at TEXT,
			resolved_by TEXT,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_open ON disputes(ride_id) WHERE status IN ('pending_driver', 'pending_admin')`,

		`CREATE TABLE IF NOT EXISTS execution_disputes (
			id TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL REFERENCES ride_executions(id),
			driver_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('open', 'resolved', 'closed')),
			created_at TEXT NOT NULL,
			resolved_at TEXT,
			resolved_by TEXT,
			resolution_type TEXT CHECK (resolution_type IN ('hours_corrected', 'no_change', 'other')),
			resolution_notes TEXT,
			correction TEXT,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_execution_disputes_open ON execution_disputes(execution_id) WHERE status = 'open'`,

		`CREATE TABLE IF NOT EXISTS dispute_comments (
			id TEXT PRIMARY KEY,
			dispute_id TEXT NOT NULL,
			dispute_kind TEXT NOT NULL CHECK (dispute_kind IN ('ride', 'execution')),
			author_id TEXT NOT NULL,
			author_role TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispute_comments_dispute ON dispute_comments(dispute_kind, dispute_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

const inputColumnsDDL = `date TEXT NOT NULL,
			start_hours TEXT NOT NULL,
			end_hours TEXT NOT NULL,
			rest_taken TEXT NOT NULL,
			odometer_start TEXT,
			odometer_end TEXT,
			extra_kilometers TEXT NOT NULL,
			hours_code TEXT NOT NULL DEFAULT '',
			hours_option TEXT NOT NULL DEFAULT '',
			correction_hours TEXT NOT NULL`

// Computed figures, NULL until the calculator has run.
const resultColumnsDDL = `decimal_hours TEXT,
			calculated_rest TEXT,
			untaxed_allowance TEXT,
			night_hours TEXT,
			night_allowance TEXT,
			home_work_kilometers TEXT,
			kilometer_allowance TEXT,
			consignment_allowance TEXT,
			saturday_hours TEXT,
			sunday_holiday_hours TEXT,
			sick_hours TEXT,
			vacation_hours_taken TEXT,
			vacation_hours_earned TEXT,
			exceeding_container_waiting TEXT,
			iso_year INTEGER,
			iso_week INTEGER,
			period INTEGER,
			week_in_period INTEGER,
			rate_row_id TEXT,
			day_kind TEXT`
