/*
Package approval implements the week and period sign-off state machines.

WEEK APPROVAL (driver, ISO year, ISO week):

  pending_admin --allow(admin)--> pending_driver --sign(driver)--> signed
        ^                                                            |
        |                                                       ride edited
        +----------allow(admin)---------- invalidated <--------------+

PERIOD APPROVAL (driver, ISO year, 4-week period):

  pending_driver --sign(driver, all weeks signed)--> pending_admin --sign(admin)--> signed
        ^                                                 |                            |
        |                                            ride edited                  ride edited
        +--sign(driver, all weeks signed)-- invalidated <-+----------------------------+

  Readiness is a derived view: not_ready until every constituent week is
  signed, then ready_to_sign, then signed.

TRANSITIONS:
  Every transition is a method that switches over the complete status set
  and returns a *generic.StateError for anything it doesn't accept. Methods
  mutate the receiver; callers persist the result inside a unit of work.

LAZY CREATION:
  Approvals are created the first time a ride lands in their week/period,
  never pre-provisioned. See payroll.Service.
*/
package approval

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// STATUSES
// =============================================================================

type WeekStatus string

const (
	WeekPendingAdmin  WeekStatus = "pending_admin"
	WeekPendingDriver WeekStatus = "pending_driver"
	WeekSigned        WeekStatus = "signed"
	WeekInvalidated   WeekStatus = "invalidated"
)

func (s WeekStatus) Valid() bool {
	switch s {
	case WeekPendingAdmin, WeekPendingDriver, WeekSigned, WeekInvalidated:
		return true
	}
	return false
}

type PeriodStatus string

const (
	PeriodPendingDriver PeriodStatus = "pending_driver"
	PeriodPendingAdmin  PeriodStatus = "pending_admin"
	PeriodSigned        PeriodStatus = "signed"
	PeriodInvalidated   PeriodStatus = "invalidated"
)

func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodPendingDriver, PeriodPendingAdmin, PeriodSigned, PeriodInvalidated:
		return true
	}
	return false
}

type Readiness string

const (
	NotReady    Readiness = "not_ready"
	ReadyToSign Readiness = "ready_to_sign"
	Signed      Readiness = "signed"
)

// =============================================================================
// SIGNATURE
// =============================================================================

// Signature records who signed, when, and in which context.
type Signature struct {
	At      time.Time
	By      string
	Context string
}

func signatureOf(actor generic.Actor, at time.Time) *Signature {
	return &Signature{At: at, By: actor.ID, Context: actor.Context}
}

// =============================================================================
// WEEK APPROVAL
// =============================================================================

type WeekApproval struct {
	ID       generic.WeekApprovalID
	DriverID generic.DriverID
	Week     generic.WeekKey
	Period   int
	Status   WeekStatus

	AllowedBy *Signature // admin allowance
	SignedBy  *Signature // driver signature

	InvalidatedAt *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWeekApproval builds a fresh approval for the week containing date.
func NewWeekApproval(id generic.WeekApprovalID, driverID generic.DriverID, date generic.TimePoint, now time.Time) *WeekApproval {
	week := generic.WeekOf(date)
	return &WeekApproval{
		ID:        id,
		DriverID:  driverID,
		Week:      week,
		Period:    week.Period().Number,
		Status:    WeekPendingAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *WeekApproval) stateError(action string) error {
	return &generic.StateError{Entity: "week approval", ID: string(w.ID), Current: string(w.Status), Action: action}
}

func (w *WeekApproval) actorError(actor generic.Actor, action, reason string) error {
	return &generic.ActorError{Entity: "week approval", ID: string(w.ID), Actor: actor.String(), Action: action, Reason: reason}
}

// Allow is the admin step releasing the week to the driver.
func (w *WeekApproval) Allow(actor generic.Actor, at time.Time) error {
	if !actor.IsAdmin() {
		return w.actorError(actor, "allow", "requires admin")
	}
	switch w.Status {
	case WeekPendingAdmin, WeekInvalidated:
		w.Status = WeekPendingDriver
		w.AllowedBy = signatureOf(actor, at)
		w.SignedBy = nil
		w.UpdatedAt = at
		return nil
	case WeekPendingDriver, WeekSigned:
		return w.stateError("allow")
	}
	return w.stateError("allow")
}

// Sign is the driver step closing the week.
func (w *WeekApproval) Sign(actor generic.Actor, at time.Time) error {
	if !actor.IsDriver() || actor.ID != string(w.DriverID) {
		return w.actorError(actor, "sign", "requires the week's driver")
	}
	switch w.Status {
	case WeekPendingDriver:
		w.Status = WeekSigned
		w.SignedBy = signatureOf(actor, at)
		w.UpdatedAt = at
		return nil
	case WeekPendingAdmin, WeekSigned, WeekInvalidated:
		return w.stateError("sign")
	}
	return w.stateError("sign")
}

// Invalidate reacts to an edit of a ride in the week. Only a signed week
// changes; it reports whether it did.
func (w *WeekApproval) Invalidate(at time.Time) bool {
	switch w.Status {
	case WeekSigned:
		w.Status = WeekInvalidated
		w.InvalidatedAt = &at
		w.UpdatedAt = at
		return true
	case WeekPendingAdmin, WeekPendingDriver, WeekInvalidated:
		return false
	}
	return false
}

// =============================================================================
// PERIOD APPROVAL
// =============================================================================

type PeriodApproval struct {
	ID       generic.PeriodApprovalID
	DriverID generic.DriverID
	Period   generic.PeriodKey
	Status   PeriodStatus

	DriverSignature *Signature
	AdminSignature  *Signature
	InvalidatedAt   *time.Time

	// Cached for reporting, refreshed on every ride commit and signature.
	TotalHours        decimal.Decimal
	TotalCompensation decimal.Decimal

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPeriodApproval builds a fresh approval for the period containing date.
func NewPeriodApproval(id generic.PeriodApprovalID, driverID generic.DriverID, date generic.TimePoint, now time.Time) *PeriodApproval {
	return &PeriodApproval{
		ID:                id,
		DriverID:          driverID,
		Period:            generic.PeriodOf(date),
		Status:            PeriodPendingDriver,
		TotalHours:        decimal.Zero,
		TotalCompensation: decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (p *PeriodApproval) stateError(action string) error {
	return &generic.StateError{Entity: "period approval", ID: string(p.ID), Current: string(p.Status), Action: action}
}

func (p *PeriodApproval) actorError(actor generic.Actor, reason string) error {
	return &generic.ActorError{Entity: "period approval", ID: string(p.ID), Actor: actor.String(), Action: "sign", Reason: reason}
}

// AllWeeksSigned reports whether every constituent week of the period is
// present and signed.
func (p *PeriodApproval) AllWeeksSigned(weeks []*WeekApproval) bool {
	signed := make(map[generic.WeekKey]bool, len(weeks))
	for _, w := range weeks {
		if w.DriverID == p.DriverID && w.Status == WeekSigned {
			signed[w.Week] = true
		}
	}
	for _, k := range p.Period.Weeks() {
		if !signed[k] {
			return false
		}
	}
	return true
}

// Readiness derives the sign-off readiness from the weeks.
func (p *PeriodApproval) Readiness(weeks []*WeekApproval) Readiness {
	if p.Status == PeriodSigned {
		return Signed
	}
	if p.AllWeeksSigned(weeks) {
		return ReadyToSign
	}
	return NotReady
}

// Sign applies a driver or admin signature.
func (p *PeriodApproval) Sign(actor generic.Actor, weeks []*WeekApproval, at time.Time) error {
	switch {
	case actor.IsDriver():
		return p.signDriver(actor, weeks, at)
	case actor.IsAdmin():
		return p.signAdmin(actor, at)
	}
	return p.actorError(actor, "unknown role")
}

func (p *PeriodApproval) signDriver(actor generic.Actor, weeks []*WeekApproval, at time.Time) error {
	if actor.ID != string(p.DriverID) {
		return p.actorError(actor, "requires the period's driver")
	}
	switch p.Status {
	case PeriodPendingDriver, PeriodInvalidated:
		if !p.AllWeeksSigned(weeks) {
			return p.stateError("sign (weeks not signed)")
		}
		p.Status = PeriodPendingAdmin
		p.DriverSignature = signatureOf(actor, at)
		p.AdminSignature = nil
		p.UpdatedAt = at
		return nil
	case PeriodPendingAdmin, PeriodSigned:
		return p.stateError("sign")
	}
	return p.stateError("sign")
}

func (p *PeriodApproval) signAdmin(actor generic.Actor, at time.Time) error {
	switch p.Status {
	case PeriodPendingAdmin:
		p.Status = PeriodSigned
		p.AdminSignature = signatureOf(actor, at)
		p.UpdatedAt = at
		return nil
	case PeriodPendingDriver, PeriodSigned, PeriodInvalidated:
		return p.stateError("sign")
	}
	return p.stateError("sign")
}

// Invalidate reacts to an edit of a ride in the period. A signed period, or
// one the driver already signed, loses its signatures' validity.
func (p *PeriodApproval) Invalidate(at time.Time) bool {
	switch p.Status {
	case PeriodSigned, PeriodPendingAdmin:
		p.Status = PeriodInvalidated
		p.InvalidatedAt = &at
		p.UpdatedAt = at
		return true
	case PeriodPendingDriver, PeriodInvalidated:
		return false
	}
	return false
}

// SetTotals replaces the cached totals.
func (p *PeriodApproval) SetTotals(hours, compensation decimal.Decimal) {
	p.TotalHours = generic.Round2(hours)
	p.TotalCompensation = generic.Round2(compensation)
}
