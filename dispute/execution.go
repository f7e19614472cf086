package dispute

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

type ExecutionStatus string

const (
	ExecutionOpen     ExecutionStatus = "open"
	ExecutionResolved ExecutionStatus = "resolved"
	ExecutionClosed   ExecutionStatus = "closed"
)

func (s ExecutionStatus) IsOpen() bool {
	switch s {
	case ExecutionOpen:
		return true
	case ExecutionResolved, ExecutionClosed:
		return false
	}
	return false
}

func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionOpen, ExecutionResolved, ExecutionClosed:
		return true
	}
	return false
}

type ResolutionType string

const (
	HoursCorrected ResolutionType = "hours_corrected"
	NoChange       ResolutionType = "no_change"
	Other          ResolutionType = "other"
)

func (t ResolutionType) Valid() bool {
	switch t {
	case HoursCorrected, NoChange, Other:
		return true
	}
	return false
}

// ExecutionDispute is raised by a driver about their own execution.
type ExecutionDispute struct {
	ID          generic.DisputeID
	ExecutionID generic.ExecutionID
	DriverID    generic.DriverID
	Reason      string
	Status      ExecutionStatus

	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string

	ResolutionType  ResolutionType
	ResolutionNotes string
	Correction      *decimal.Decimal // only for HoursCorrected

	Comments Thread
	Version  int
}

// OpenExecution creates an execution-level dispute. Only the execution's
// driver opens one, and a reason is required.
func OpenExecution(id generic.DisputeID, executionID generic.ExecutionID, driverID generic.DriverID, actor generic.Actor, reason string, at time.Time) (*ExecutionDispute, error) {
	if !actor.IsDriver() || actor.ID != string(driverID) {
		return nil, &generic.ActorError{Entity: "execution dispute", Actor: actor.String(), Action: "open", Reason: "execution disputes are opened by the execution's driver"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &generic.ValidationError{Field: "reason", Reason: "required"}
	}
	return &ExecutionDispute{
		ID:          id,
		ExecutionID: executionID,
		DriverID:    driverID,
		Reason:      reason,
		Status:      ExecutionOpen,
		CreatedAt:   at,
	}, nil
}

func (d *ExecutionDispute) stateError(action string) error {
	return &generic.StateError{Entity: "execution dispute", ID: string(d.ID), Current: string(d.Status), Action: action}
}

func (d *ExecutionDispute) actorError(actor generic.Actor, action, reason string) error {
	return &generic.ActorError{Entity: "execution dispute", ID: string(d.ID), Actor: actor.String(), Action: action, Reason: reason}
}

// Resolve settles the dispute. HoursCorrected requires a non-zero
// correction; the other types take none.
func (d *ExecutionDispute) Resolve(actor generic.Actor, kind ResolutionType, notes string, correction *decimal.Decimal, at time.Time) error {
	if !actor.IsAdmin() {
		return d.actorError(actor, "resolve", "requires admin")
	}
	if !kind.Valid() {
		return &generic.ValidationError{Field: "resolution_type", Reason: "unknown type " + string(kind)}
	}
	if kind == HoursCorrected && (correction == nil || correction.IsZero()) {
		return &generic.ValidationError{Field: "correction", Reason: "required for hours_corrected"}
	}
	if kind != HoursCorrected && correction != nil {
		return &generic.ValidationError{Field: "correction", Reason: "only allowed for hours_corrected"}
	}
	switch d.Status {
	case ExecutionOpen:
		d.Status = ExecutionResolved
		d.ResolutionType = kind
		d.ResolutionNotes = strings.TrimSpace(notes)
		d.Correction = correction
		d.ResolvedAt = &at
		d.ResolvedBy = actor.ID
		return nil
	case ExecutionResolved, ExecutionClosed:
		return d.stateError("resolve")
	}
	return d.stateError("resolve")
}

// Close ends the dispute without a resolution. Admin only.
func (d *ExecutionDispute) Close(actor generic.Actor, at time.Time) error {
	if !actor.IsAdmin() {
		return d.actorError(actor, "close", "requires admin")
	}
	switch d.Status {
	case ExecutionOpen:
		d.Status = ExecutionClosed
		d.ResolvedAt = &at
		d.ResolvedBy = actor.ID
		return nil
	case ExecutionResolved, ExecutionClosed:
		return d.stateError("close")
	}
	return d.stateError("close")
}

// AddComment appends to the thread.
func (d *ExecutionDispute) AddComment(id string, actor generic.Actor, body string, at time.Time) (Comment, error) {
	if !actor.IsAdmin() && actor.ID != string(d.DriverID) {
		return Comment{}, d.actorError(actor, "comment on", "not a party to the dispute")
	}
	c, err := newComment(id, actor, body, at)
	if err != nil {
		return Comment{}, err
	}
	d.Comments = d.Comments.Append(c)
	return c, nil
}

// CorrectsHours reports whether the resolution changes the execution's hours.
func (d *ExecutionDispute) CorrectsHours() bool {
	return d.Status == ExecutionResolved && d.ResolutionType == HoursCorrected && d.Correction != nil
}
