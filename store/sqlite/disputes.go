package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
)

const (
	kindRide      = "ride"
	kindExecution = "execution"
)

// =============================================================================
// RIDE-LEVEL DISPUTES
// =============================================================================

type disputeRow struct {
	ID                 string          `db:"id"`
	RideID             string          `db:"ride_id"`
	DriverID           string          `db:"driver_id"`
	OpenedBy           string          `db:"opened_by"`
	Reason             string          `db:"reason"`
	ProposedCorrection decimal.Decimal `db:"proposed_correction"`
	Status             string          `db:"status"`
	CreatedAt          string          `db:"created_at"`
	ResolvedAt         sql.NullString  `db:"resolved_at"`
	ResolvedBy         sql.NullString  `db:"resolved_by"`
	Version            int             `db:"version"`
}

const selectDispute = `SELECT id, ride_id, driver_id, opened_by, reason, proposed_correction,
	status, created_at, resolved_at, resolved_by, version FROM disputes`

func toDisputeRow(d *dispute.Dispute) disputeRow {
	return disputeRow{
		ID:                 string(d.ID),
		RideID:             string(d.RideID),
		DriverID:           string(d.DriverID),
		OpenedBy:           d.OpenedBy,
		Reason:             d.Reason,
		ProposedCorrection: d.ProposedCorrection,
		Status:             string(d.Status),
		CreatedAt:          formatTime(d.CreatedAt),
		ResolvedAt:         nullTime(d.ResolvedAt),
		ResolvedBy:         nullString(d.ResolvedBy),
		Version:            d.Version,
	}
}

func (s *Store) loadDispute(ctx context.Context, r disputeRow) (*dispute.Dispute, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	resolved, err := parseNullTime(r.ResolvedAt)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments(ctx, kindRide, r.ID)
	if err != nil {
		return nil, err
	}
	return &dispute.Dispute{
		ID:                 generic.DisputeID(r.ID),
		RideID:             generic.RideID(r.RideID),
		DriverID:           generic.DriverID(r.DriverID),
		OpenedBy:           r.OpenedBy,
		Reason:             r.Reason,
		ProposedCorrection: r.ProposedCorrection,
		Status:             dispute.Status(r.Status),
		CreatedAt:          created,
		ResolvedAt:         resolved,
		ResolvedBy:         r.ResolvedBy.String,
		Comments:           comments,
		Version:            r.Version,
	}, nil
}

func (s *Store) GetDispute(ctx context.Context, id generic.DisputeID) (*dispute.Dispute, error) {
	var r disputeRow
	if err := s.getOne(ctx, "dispute", string(id), &r, selectDispute+` WHERE id = ?`, string(id)); err != nil {
		return nil, err
	}
	return s.loadDispute(ctx, r)
}

func (s *Store) FindOpenDispute(ctx context.Context, rideID generic.RideID) (*dispute.Dispute, error) {
	var r disputeRow
	err := s.getOne(ctx, "open dispute for ride", string(rideID), &r,
		selectDispute+` WHERE ride_id = ? AND status IN ('pending_driver', 'pending_admin')`,
		string(rideID))
	if err != nil {
		return nil, err
	}
	return s.loadDispute(ctx, r)
}

func (s *Store) CreateDispute(ctx context.Context, d *dispute.Dispute) error {
	return s.insertUnique(ctx, "dispute", string(d.ID), `
		INSERT INTO disputes (id, ride_id, driver_id, opened_by, reason, proposed_correction,
			status, created_at, resolved_at, resolved_by, version)
		VALUES (:id, :ride_id, :driver_id, :opened_by, :reason, :proposed_correction,
			:status, :created_at, :resolved_at, :resolved_by, :version)
		ON CONFLICT DO NOTHING
	`, toDisputeRow(d))
}

func (s *Store) UpdateDispute(ctx context.Context, d *dispute.Dispute) error {
	return s.updateVersioned(ctx, "dispute", "disputes", string(d.ID), d.Version, `
		UPDATE disputes SET
			proposed_correction = :proposed_correction,
			status = :status,
			resolved_at = :resolved_at,
			resolved_by = :resolved_by,
			version = version + 1
		WHERE id = :id AND version = :version
	`, toDisputeRow(d))
}

func (s *Store) AddDisputeComment(ctx context.Context, id generic.DisputeID, c dispute.Comment) error {
	return s.addComment(ctx, kindRide, string(id), c)
}

// =============================================================================
// EXECUTION-LEVEL DISPUTES
// =============================================================================

type executionDisputeRow struct {
	ID              string              `db:"id"`
	ExecutionID     string              `db:"execution_id"`
	DriverID        string              `db:"driver_id"`
	Reason          string              `db:"reason"`
	Status          string              `db:"status"`
	CreatedAt       string              `db:"created_at"`
	ResolvedAt      sql.NullString      `db:"resolved_at"`
	ResolvedBy      sql.NullString      `db:"resolved_by"`
	ResolutionType  sql.NullString      `db:"resolution_type"`
	ResolutionNotes sql.NullString      `db:"resolution_notes"`
	Correction      decimal.NullDecimal `db:"correction"`
	Version         int                 `db:"version"`
}

const selectExecutionDispute = `SELECT id, execution_id, driver_id, reason, status, created_at,
	resolved_at, resolved_by, resolution_type, resolution_notes, correction, version
	FROM execution_disputes`

func toExecutionDisputeRow(d *dispute.ExecutionDispute) executionDisputeRow {
	return executionDisputeRow{
		ID:              string(d.ID),
		ExecutionID:     string(d.ExecutionID),
		DriverID:        string(d.DriverID),
		Reason:          d.Reason,
		Status:          string(d.Status),
		CreatedAt:       formatTime(d.CreatedAt),
		ResolvedAt:      nullTime(d.ResolvedAt),
		ResolvedBy:      nullString(d.ResolvedBy),
		ResolutionType:  nullString(string(d.ResolutionType)),
		ResolutionNotes: nullString(d.ResolutionNotes),
		Correction:      nullDecimal(d.Correction),
		Version:         d.Version,
	}
}

func (s *Store) loadExecutionDispute(ctx context.Context, r executionDisputeRow) (*dispute.ExecutionDispute, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	resolved, err := parseNullTime(r.ResolvedAt)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments(ctx, kindExecution, r.ID)
	if err != nil {
		return nil, err
	}
	return &dispute.ExecutionDispute{
		ID:              generic.DisputeID(r.ID),
		ExecutionID:     generic.ExecutionID(r.ExecutionID),
		DriverID:        generic.DriverID(r.DriverID),
		Reason:          r.Reason,
		Status:          dispute.ExecutionStatus(r.Status),
		CreatedAt:       created,
		ResolvedAt:      resolved,
		ResolvedBy:      r.ResolvedBy.String,
		ResolutionType:  dispute.ResolutionType(r.ResolutionType.String),
		ResolutionNotes: r.ResolutionNotes.String,
		Correction:      decimalPtr(r.Correction),
		Comments:        comments,
		Version:         r.Version,
	}, nil
}

func (s *Store) GetExecutionDispute(ctx context.Context, id generic.DisputeID) (*dispute.ExecutionDispute, error) {
	var r executionDisputeRow
	if err := s.getOne(ctx, "execution dispute", string(id), &r, selectExecutionDispute+` WHERE id = ?`, string(id)); err != nil {
		return nil, err
	}
	return s.loadExecutionDispute(ctx, r)
}

func (s *Store) FindOpenExecutionDispute(ctx context.Context, executionID generic.ExecutionID) (*dispute.ExecutionDispute, error) {
	var r executionDisputeRow
	err := s.getOne(ctx, "open dispute for execution", string(executionID), &r,
		selectExecutionDispute+` WHERE execution_id = ? AND status = 'open'`,
		string(executionID))
	if err != nil {
		return nil, err
	}
	return s.loadExecutionDispute(ctx, r)
}

func (s *Store) CreateExecutionDispute(ctx context.Context, d *dispute.ExecutionDispute) error {
	return s.insertUnique(ctx, "execution dispute", string(d.ID), `
		INSERT INTO execution_disputes (id, execution_id, driver_id, reason, status, created_at,
			resolved_at, resolved_by, resolution_type, resolution_notes, correction, version)
		VALUES (:id, :execution_id, :driver_id, :reason, :status, :created_at,
			:resolved_at, :resolved_by, :resolution_type, :resolution_notes, :correction, :version)
		ON CONFLICT DO NOTHING
	`, toExecutionDisputeRow(d))
}

func (s *Store) UpdateExecutionDispute(ctx context.Context, d *dispute.ExecutionDispute) error {
	return s.updateVersioned(ctx, "execution dispute", "execution_disputes", string(d.ID), d.Version, `
		UPDATE execution_disputes SET
			status = :status,
			resolved_at = :resolved_at,
			resolved_by = :resolved_by,
			resolution_type = :resolution_type,
			resolution_notes = :resolution_notes,
			correction = :correction,
			version = version + 1
		WHERE id = :id AND version = :version
	`, toExecutionDisputeRow(d))
}

func (s *Store) AddExecutionDisputeComment(ctx context.Context, id generic.DisputeID, c dispute.Comment) error {
	return s.addComment(ctx, kindExecution, string(id), c)
}

// =============================================================================
// COMMENTS - append-only, no UPDATE or DELETE
// =============================================================================

type commentRow struct {
	ID          string `db:"id"`
	DisputeID   string `db:"dispute_id"`
	DisputeKind string `db:"dispute_kind"`
	AuthorID    string `db:"author_id"`
	AuthorRole  string `db:"author_role"`
	Body        string `db:"body"`
	CreatedAt   string `db:"created_at"`
}

func (s *Store) addComment(ctx context.Context, kind, disputeID string, c dispute.Comment) error {
	_, err := s.namedExec(ctx, `
		INSERT INTO dispute_comments (id, dispute_id, dispute_kind, author_id, author_role, body, created_at)
		VALUES (:id, :dispute_id, :dispute_kind, :author_id, :author_role, :body, :created_at)
	`, commentRow{
		ID:          c.ID,
		DisputeID:   disputeID,
		DisputeKind: kind,
		AuthorID:    c.AuthorID,
		AuthorRole:  string(c.AuthorRole),
		Body:        c.Body,
		CreatedAt:   formatTime(c.At),
	})
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

func (s *Store) comments(ctx context.Context, kind, disputeID string) (dispute.Thread, error) {
	var rows []commentRow
	err := s.selectAll(ctx, &rows, `
		SELECT id, dispute_id, dispute_kind, author_id, author_role, body, created_at
		FROM dispute_comments
		WHERE dispute_kind = ? AND dispute_id = ?
		ORDER BY created_at, id
	`, kind, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	var thread dispute.Thread
	for _, r := range rows {
		at, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, err
		}
		thread = append(thread, dispute.Comment{
			ID:         r.ID,
			AuthorID:   r.AuthorID,
			AuthorRole: generic.Role(r.AuthorRole),
			Body:       r.Body,
			At:         at,
		})
	}
	return thread, nil
}
