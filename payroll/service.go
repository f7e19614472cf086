/*
Package payroll is the in-process entry point of the ride compensation core.

PURPOSE:
  Wires the calculators, the approval state machines and the dispute
  workflow onto a Store, and keeps them consistent when ride data changes
  after the fact.

ENTRY POINTS:
  ResolveRate, CalculateCompensation, EarnedVacationHours, PutDriver
  SaveRide, SaveExecution, CreateSharedRide
  GetOrCreateWeekApproval, GetOrCreatePeriodApproval
  AllowWeek, SignWeek, SignPeriod, PeriodReadiness, RefreshPeriodTotals
  OpenDispute, ResolveDispute (accept / counter / close), AddDisputeComment
  OpenExecutionDispute, ResolveExecutionDispute, CloseExecutionDispute

UNIT OF WORK:
  Every state change runs inside Store.WithTx. Committing a ride is one
  unit: version check, calculate, write back, get-or-create the week and
  period approvals, invalidate signed ones, refresh period totals. Accepting
  a dispute applies the correction and runs that same cascade in the same
  unit, so a failure anywhere leaves nothing committed.

LAZY CREATION:
  Approvals are created on first reference. A concurrent creator losing the
  unique-key race gets ErrAlreadyExists from the store and re-fetches.

AFTER COMMIT:
  OnRideChanged runs after the unit of work commits and never inside it;
  notification delivery hangs off it.

SEE ALSO:
  - store.go: persistence interfaces
  - payroll/store/memory.go: in-memory Store
  - store/sqlite/sqlite.go: SQL Store
*/
package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/vacation"
)

// RideChange describes a committed ride edit.
type RideChange struct {
	DriverID generic.DriverID
	RideID   string
	Date     generic.TimePoint
	Week     generic.WeekKey

	// Invalidated is true when the commit invalidated a signed approval.
	Invalidated bool
}

// Config holds the deployment-specific inputs of the service.
type Config struct {
	DefaultHoursCode generic.HoursCodeID
	Holidays         generic.HolidayCalendar
}

// Service orchestrates the core.
type Service struct {
	Store      Store
	Calculator *compensation.Calculator
	Logger     *slog.Logger

	// OnRideChanged is called after a ride commit. Optional.
	OnRideChanged func(ctx context.Context, change RideChange)

	Now   func() time.Time
	NewID func() string
}

// NewService builds a Service on store.
func NewService(store Store, cfg Config) *Service {
	return &Service{
		Store:      store,
		Calculator: compensation.NewCalculator(store, cfg.Holidays, cfg.DefaultHoursCode),
		Logger:     slog.Default(),
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

// =============================================================================
// CALCULATION ENTRY POINTS
// =============================================================================

// ResolveRate returns the CAO row effective on date.
func (s *Service) ResolveRate(ctx context.Context, date generic.TimePoint) (cao.RateRow, error) {
	return cao.NewProvider(s.Store).Resolve(ctx, date)
}

// CalculateCompensation runs the calculator and fills in vacation accrual
// for work days. It reads, never writes.
func (s *Service) CalculateCompensation(ctx context.Context, in compensation.Inputs) (compensation.Result, error) {
	return s.calculate(ctx, s.Store, in)
}

// EarnedVacationHours returns the vacation hours earned by one work day.
func (s *Service) EarnedVacationHours(ctx context.Context, driverID generic.DriverID, date generic.TimePoint) (decimal.Decimal, error) {
	return vacation.NewCalculator(s.Store).EarnedHours(ctx, driverID, date)
}

func (s *Service) calculate(ctx context.Context, st Store, in compensation.Inputs) (compensation.Result, error) {
	res, err := s.Calculator.WithReferences(st).Calculate(ctx, in)
	if err != nil {
		return compensation.Result{}, err
	}
	if res.IsWorkDay() {
		earned, err := vacation.NewCalculator(st).EarnedHours(ctx, in.DriverID, in.Date)
		if err != nil {
			return compensation.Result{}, fmt.Errorf("failed to compute vacation accrual: %w", err)
		}
		res.VacationHoursEarned = earned
	}
	return res, nil
}
