package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// WEEK APPROVALS
// =============================================================================

type weekRow struct {
	ID             string         `db:"id"`
	DriverID       string         `db:"driver_id"`
	ISOYear        int            `db:"iso_year"`
	ISOWeek        int            `db:"iso_week"`
	Period         int            `db:"period"`
	Status         string         `db:"status"`
	AllowedAt      sql.NullString `db:"allowed_at"`
	AllowedBy      sql.NullString `db:"allowed_by"`
	AllowedContext sql.NullString `db:"allowed_context"`
	SignedAt       sql.NullString `db:"signed_at"`
	SignedBy       sql.NullString `db:"signed_by"`
	SignedContext  sql.NullString `db:"signed_context"`
	InvalidatedAt  sql.NullString `db:"invalidated_at"`
	Version        int            `db:"version"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

const selectWeek = `SELECT id, driver_id, iso_year, iso_week, period, status,
	allowed_at, allowed_by, allowed_context, signed_at, signed_by, signed_context,
	invalidated_at, version, created_at, updated_at FROM week_approvals`

func toWeekRow(w *approval.WeekApproval) weekRow {
	r := weekRow{
		ID:            string(w.ID),
		DriverID:      string(w.DriverID),
		ISOYear:       w.Week.Year,
		ISOWeek:       w.Week.Week,
		Period:        w.Period,
		Status:        string(w.Status),
		InvalidatedAt: nullTime(w.InvalidatedAt),
		Version:       w.Version,
		CreatedAt:     formatTime(w.CreatedAt),
		UpdatedAt:     formatTime(w.UpdatedAt),
	}
	r.AllowedAt, r.AllowedBy, r.AllowedContext = signatureColumns(w.AllowedBy)
	r.SignedAt, r.SignedBy, r.SignedContext = signatureColumns(w.SignedBy)
	return r
}

func (r weekRow) approval() (*approval.WeekApproval, error) {
	w := &approval.WeekApproval{
		ID:       generic.WeekApprovalID(r.ID),
		DriverID: generic.DriverID(r.DriverID),
		Week:     generic.WeekKey{Year: r.ISOYear, Week: r.ISOWeek},
		Period:   r.Period,
		Status:   approval.WeekStatus(r.Status),
		Version:  r.Version,
	}
	var err error
	if w.AllowedBy, err = signatureOf(r.AllowedAt, r.AllowedBy, r.AllowedContext); err != nil {
		return nil, err
	}
	if w.SignedBy, err = signatureOf(r.SignedAt, r.SignedBy, r.SignedContext); err != nil {
		return nil, err
	}
	if w.InvalidatedAt, err = parseNullTime(r.InvalidatedAt); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) GetWeekApproval(ctx context.Context, id generic.WeekApprovalID) (*approval.WeekApproval, error) {
	var r weekRow
	if err := s.getOne(ctx, "week approval", string(id), &r, selectWeek+` WHERE id = ?`, string(id)); err != nil {
		return nil, err
	}
	return r.approval()
}

func (s *Store) FindWeekApproval(ctx context.Context, driverID generic.DriverID, week generic.WeekKey) (*approval.WeekApproval, error) {
	var r weekRow
	err := s.getOne(ctx, "week approval", fmt.Sprintf("%s/%s", driverID, week), &r,
		selectWeek+` WHERE driver_id = ? AND iso_year = ? AND iso_week = ?`,
		string(driverID), week.Year, week.Week)
	if err != nil {
		return nil, err
	}
	return r.approval()
}

func (s *Store) ListWeekApprovals(ctx context.Context, driverID generic.DriverID, period generic.PeriodKey) ([]*approval.WeekApproval, error) {
	var rows []weekRow
	err := s.selectAll(ctx, &rows, selectWeek+`
		WHERE driver_id = ? AND iso_year = ? AND period = ?
		ORDER BY iso_week
	`, string(driverID), period.Year, period.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to list week approvals: %w", err)
	}

	out := make([]*approval.WeekApproval, 0, len(rows))
	for _, r := range rows {
		w, err := r.approval()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) CreateWeekApproval(ctx context.Context, w *approval.WeekApproval) error {
	return s.insertUnique(ctx, "week approval", fmt.Sprintf("%s/%s", w.DriverID, w.Week), `
		INSERT INTO week_approvals (id, driver_id, iso_year, iso_week, period, status,
			allowed_at, allowed_by, allowed_context, signed_at, signed_by, signed_context,
			invalidated_at, version, created_at, updated_at)
		VALUES (:id, :driver_id, :iso_year, :iso_week, :period, :status,
			:allowed_at, :allowed_by, :allowed_context, :signed_at, :signed_by, :signed_context,
			:invalidated_at, :version, :created_at, :updated_at)
		ON CONFLICT DO NOTHING
	`, toWeekRow(w))
}

func (s *Store) UpdateWeekApproval(ctx context.Context, w *approval.WeekApproval) error {
	return s.updateVersioned(ctx, "week approval", "week_approvals", string(w.ID), w.Version, `
		UPDATE week_approvals SET
			status = :status,
			allowed_at = :allowed_at, allowed_by = :allowed_by, allowed_context = :allowed_context,
			signed_at = :signed_at, signed_by = :signed_by, signed_context = :signed_context,
			invalidated_at = :invalidated_at,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version
	`, toWeekRow(w))
}

// =============================================================================
// PERIOD APPROVALS
// =============================================================================

type periodRow struct {
	ID                  string          `db:"id"`
	DriverID            string          `db:"driver_id"`
	Year                int             `db:"year"`
	Number              int             `db:"number"`
	Status              string          `db:"status"`
	DriverSignedAt      sql.NullString  `db:"driver_signed_at"`
	DriverSignedBy      sql.NullString  `db:"driver_signed_by"`
	DriverSignedContext sql.NullString  `db:"driver_signed_context"`
	AdminSignedAt       sql.NullString  `db:"admin_signed_at"`
	AdminSignedBy       sql.NullString  `db:"admin_signed_by"`
	AdminSignedContext  sql.NullString  `db:"admin_signed_context"`
	InvalidatedAt       sql.NullString  `db:"invalidated_at"`
	TotalHours          decimal.Decimal `db:"total_hours"`
	TotalCompensation   decimal.Decimal `db:"total_compensation"`
	Version             int             `db:"version"`
	CreatedAt           string          `db:"created_at"`
	UpdatedAt           string          `db:"updated_at"`
}

const selectPeriod = `SELECT id, driver_id, year, number, status,
	driver_signed_at, driver_signed_by, driver_signed_context,
	admin_signed_at, admin_signed_by, admin_signed_context,
	invalidated_at, total_hours, total_compensation, version, created_at, updated_at
	FROM period_approvals`

func toPeriodRow(p *approval.PeriodApproval) periodRow {
	r := periodRow{
		ID:                string(p.ID),
		DriverID:          string(p.DriverID),
		Year:              p.Period.Year,
		Number:            p.Period.Number,
		Status:            string(p.Status),
		InvalidatedAt:     nullTime(p.InvalidatedAt),
		TotalHours:        p.TotalHours,
		TotalCompensation: p.TotalCompensation,
		Version:           p.Version,
		CreatedAt:         formatTime(p.CreatedAt),
		UpdatedAt:         formatTime(p.UpdatedAt),
	}
	r.DriverSignedAt, r.DriverSignedBy, r.DriverSignedContext = signatureColumns(p.DriverSignature)
	r.AdminSignedAt, r.AdminSignedBy, r.AdminSignedContext = signatureColumns(p.AdminSignature)
	return r
}

func (r periodRow) approval() (*approval.PeriodApproval, error) {
	p := &approval.PeriodApproval{
		ID:                generic.PeriodApprovalID(r.ID),
		DriverID:          generic.DriverID(r.DriverID),
		Period:            generic.PeriodKey{Year: r.Year, Number: r.Number},
		Status:            approval.PeriodStatus(r.Status),
		TotalHours:        r.TotalHours,
		TotalCompensation: r.TotalCompensation,
		Version:           r.Version,
	}
	var err error
	if p.DriverSignature, err = signatureOf(r.DriverSignedAt, r.DriverSignedBy, r.DriverSignedContext); err != nil {
		return nil, err
	}
	if p.AdminSignature, err = signatureOf(r.AdminSignedAt, r.AdminSignedBy, r.AdminSignedContext); err != nil {
		return nil, err
	}
	if p.InvalidatedAt, err = parseNullTime(r.InvalidatedAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) GetPeriodApproval(ctx context.Context, id generic.PeriodApprovalID) (*approval.PeriodApproval, error) {
	var r periodRow
	if err := s.getOne(ctx, "period approval", string(id), &r, selectPeriod+` WHERE id = ?`, string(id)); err != nil {
		return nil, err
	}
	return r.approval()
}

func (s *Store) FindPeriodApproval(ctx context.Context, driverID generic.DriverID, period generic.PeriodKey) (*approval.PeriodApproval, error) {
	var r periodRow
	err := s.getOne(ctx, "period approval", fmt.Sprintf("%s/%s", driverID, period), &r,
		selectPeriod+` WHERE driver_id = ? AND year = ? AND number = ?`,
		string(driverID), period.Year, period.Number)
	if err != nil {
		return nil, err
	}
	return r.approval()
}

func (s *Store) CreatePeriodApproval(ctx context.Context, p *approval.PeriodApproval) error {
	return s.insertUnique(ctx, "period approval", fmt.Sprintf("%s/%s", p.DriverID, p.Period), `
		INSERT INTO period_approvals (id, driver_id, year, number, status,
			driver_signed_at, driver_signed_by, driver_signed_context,
			admin_signed_at, admin_signed_by, admin_signed_context,
			invalidated_at, total_hours, total_compensation, version, created_at, updated_at)
		VALUES (:id, :driver_id, :year, :number, :status,
			:driver_signed_at, :driver_signed_by, :driver_signed_context,
			:admin_signed_at, :admin_signed_by, :admin_signed_context,
			:invalidated_at, :total_hours, :total_compensation, :version, :created_at, :updated_at)
		ON CONFLICT DO NOTHING
	`, toPeriodRow(p))
}

func (s *Store) UpdatePeriodApproval(ctx context.Context, p *approval.PeriodApproval) error {
	return s.updateVersioned(ctx, "period approval", "period_approvals", string(p.ID), p.Version, `
		UPDATE period_approvals SET
			status = :status,
			driver_signed_at = :driver_signed_at, driver_signed_by = :driver_signed_by,
			driver_signed_context = :driver_signed_context,
			admin_signed_at = :admin_signed_at, admin_signed_by = :admin_signed_by,
			admin_signed_context = :admin_signed_context,
			invalidated_at = :invalidated_at,
			total_hours = :total_hours, total_compensation = :total_compensation,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version
	`, toPeriodRow(p))
}

// =============================================================================
// SIGNATURES
// =============================================================================

func signatureColumns(sig *approval.Signature) (at, by, where sql.NullString) {
	if sig == nil {
		return
	}
	return nullTime(&sig.At), sql.NullString{String: sig.By, Valid: true}, sql.NullString{String: sig.Context, Valid: true}
}

func signatureOf(at, by, where sql.NullString) (*approval.Signature, error) {
	if !at.Valid {
		return nil, nil
	}
	t, err := parseTime(at.String)
	if err != nil {
		return nil, err
	}
	return &approval.Signature{At: t, By: by.String, Context: where.String}, nil
}
