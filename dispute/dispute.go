/*
Package dispute implements the two correction-dispute variants.

RIDE-LEVEL (on a legacy ride record, opened by an admin):

  pending_driver --accept(driver)--> accepted_by_driver
  pending_driver --counter(driver, hours)--> pending_admin
  pending_admin  --accept(admin)--> accepted_by_admin
  pending_admin  --counter(admin, hours)--> pending_driver
  pending_*      --close(admin)--> closed

  The proposal is a correction delta in hours. Accepting it is the only way
  the delta reaches the ride; the caller applies it and recomputes.

EXECUTION-LEVEL (on one driver's execution, opened by that driver):

  open --resolve(admin, type, notes)--> resolved
  open --close(admin)--> closed

COMMENTS:
  Both variants carry an append-only, time-ordered thread. Adding a comment
  never changes status.
*/
package dispute

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// COMMENTS
// =============================================================================

type Comment struct {
	ID         string
	AuthorID   string
	AuthorRole generic.Role
	Body       string
	At         time.Time
}

// Thread is an append-only list of comments ordered by time.
type Thread []Comment

// Append adds c at its time position. Comments with equal timestamps keep
// insertion order.
func (t Thread) Append(c Comment) Thread {
	i := len(t)
	for i > 0 && t[i-1].At.After(c.At) {
		i--
	}
	out := make(Thread, 0, len(t)+1)
	out = append(out, t[:i]...)
	out = append(out, c)
	return append(out, t[i:]...)
}

func newComment(id string, actor generic.Actor, body string, at time.Time) (Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, &generic.ValidationError{Field: "body", Reason: "required"}
	}
	return Comment{ID: id, AuthorID: actor.ID, AuthorRole: actor.Role, Body: body, At: at}, nil
}

// =============================================================================
// RIDE-LEVEL DISPUTE
// =============================================================================

type Status string

const (
	PendingDriver    Status = "pending_driver"
	PendingAdmin     Status = "pending_admin"
	AcceptedByDriver Status = "accepted_by_driver"
	AcceptedByAdmin  Status = "accepted_by_admin"
	Closed           Status = "closed"
)

// IsOpen reports whether the dispute still awaits a party.
func (s Status) IsOpen() bool {
	switch s {
	case PendingDriver, PendingAdmin:
		return true
	case AcceptedByDriver, AcceptedByAdmin, Closed:
		return false
	}
	return false
}

// IsAccepted reports whether the proposal was agreed to.
func (s Status) IsAccepted() bool {
	switch s {
	case AcceptedByDriver, AcceptedByAdmin:
		return true
	case PendingDriver, PendingAdmin, Closed:
		return false
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case PendingDriver, PendingAdmin, AcceptedByDriver, AcceptedByAdmin, Closed:
		return true
	}
	return false
}

type Dispute struct {
	ID       generic.DisputeID
	RideID   generic.RideID
	DriverID generic.DriverID
	OpenedBy string
	Reason   string

	// Correction delta in hours currently on the table.
	ProposedCorrection decimal.Decimal
	Status             Status

	CreatedAt  time.Time
	ResolvedAt *time.Time
	ResolvedBy string

	Comments Thread
	Version  int
}

// Open creates a ride-level dispute. Only admins open them, with a non-zero
// correction.
func Open(id generic.DisputeID, rideID generic.RideID, driverID generic.DriverID, actor generic.Actor, correction decimal.Decimal, reason string, at time.Time) (*Dispute, error) {
	if !actor.IsAdmin() {
		return nil, &generic.ActorError{Entity: "dispute", Actor: actor.String(), Action: "open", Reason: "ride disputes are opened by an admin"}
	}
	if correction.IsZero() {
		return nil, &generic.ValidationError{Field: "correction", Reason: "must be non-zero"}
	}
	return &Dispute{
		ID:                 id,
		RideID:             rideID,
		DriverID:           driverID,
		OpenedBy:           actor.ID,
		Reason:             strings.TrimSpace(reason),
		ProposedCorrection: correction,
		Status:             PendingDriver,
		CreatedAt:          at,
	}, nil
}

func (d *Dispute) stateError(action string) error {
	return &generic.StateError{Entity: "dispute", ID: string(d.ID), Current: string(d.Status), Action: action}
}

func (d *Dispute) actorError(actor generic.Actor, action, reason string) error {
	return &generic.ActorError{Entity: "dispute", ID: string(d.ID), Actor: actor.String(), Action: action, Reason: reason}
}

// checkTurn rejects an answer from anyone but the party the open dispute is
// waiting on.
func (d *Dispute) checkTurn(actor generic.Actor, action string) error {
	switch d.Status {
	case PendingDriver:
		if !actor.IsDriver() || actor.ID != string(d.DriverID) {
			return d.actorError(actor, action, "awaiting the ride's driver")
		}
		return nil
	case PendingAdmin:
		if !actor.IsAdmin() {
			return d.actorError(actor, action, "awaiting an admin")
		}
		return nil
	case AcceptedByDriver, AcceptedByAdmin, Closed:
		return d.stateError(action)
	}
	return d.stateError(action)
}

// Accept agrees to the current proposal.
func (d *Dispute) Accept(actor generic.Actor, at time.Time) error {
	if err := d.checkTurn(actor, "accept"); err != nil {
		return err
	}
	switch d.Status {
	case PendingDriver:
		d.Status = AcceptedByDriver
	case PendingAdmin:
		d.Status = AcceptedByAdmin
	case AcceptedByDriver, AcceptedByAdmin, Closed:
		return d.stateError("accept")
	}
	d.resolve(actor, at)
	return nil
}

// Counter replaces the proposal and hands the dispute to the other party.
func (d *Dispute) Counter(actor generic.Actor, hours decimal.Decimal) error {
	if err := d.checkTurn(actor, "counter"); err != nil {
		return err
	}
	if hours.IsZero() {
		return &generic.ValidationError{Field: "correction", Reason: "must be non-zero"}
	}
	switch d.Status {
	case PendingDriver:
		d.Status = PendingAdmin
	case PendingAdmin:
		d.Status = PendingDriver
	case AcceptedByDriver, AcceptedByAdmin, Closed:
		return d.stateError("counter")
	}
	d.ProposedCorrection = hours
	return nil
}

// Close ends the dispute without agreement. Admin only.
func (d *Dispute) Close(actor generic.Actor, at time.Time) error {
	if !actor.IsAdmin() {
		return d.actorError(actor, "close", "requires admin")
	}
	switch d.Status {
	case PendingDriver, PendingAdmin:
		d.Status = Closed
		d.resolve(actor, at)
		return nil
	case AcceptedByDriver, AcceptedByAdmin, Closed:
		return d.stateError("close")
	}
	return d.stateError("close")
}

// AddComment appends to the thread. The driver of the ride and admins may
// comment.
func (d *Dispute) AddComment(id string, actor generic.Actor, body string, at time.Time) (Comment, error) {
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

func (d *Dispute) resolve(actor generic.Actor, at time.Time) {
	d.ResolvedAt = &at
	d.ResolvedBy = actor.ID
}
