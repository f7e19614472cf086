/*
Package cao holds the collective labour agreement rate table and the pure
allowance calculators driven by it.

PURPOSE:
  CAO rates change over time. Each RateRow is a snapshot of the monetary and
  numeric constants valid for a window of days. The provider resolves the row
  for a ride date; the calculators (workhours.go, kilometers.go, night.go)
  turn a row plus per-ride scalars into allowance figures.

RATE SELECTION:
  Among all rows whose window contains the date (start <= date, end is open
  or >= date) the one with the latest start date wins. Overlapping rows are
  tolerated that way; a date with no row is fatal for the ride.

  rows: [2024-01-01 .. 2024-06-30]  [2024-07-01 .. open)
  Resolve(2024-06-15) -> first
  Resolve(2024-08-01) -> second
  Resolve(2023-12-31) -> ErrNoApplicableRate

ISOLATION:
  Holiday detection and the untaxed-allowance formula are the parts most
  likely to move with new agreements. Everything they depend on lives on
  RateRow or arrives as an explicit holiday flag; nothing is hard-coded in
  the callers.

SEE ALSO:
  - compensation/calculator.go: Orchestrates these calculators
  - config/seed.go: Loads rate rows from YAML
*/
package cao

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// ErrNoApplicableRate is returned when no row covers a date. It matches
// generic.ErrReferenceDataMissing.
var ErrNoApplicableRate = generic.ErrMissingRateRow

// =============================================================================
// RATE ROW
// =============================================================================

// BreakRule adds Break hours of mandatory rest once a shift spans more than
// After hours.
type BreakRule struct {
	After decimal.Decimal
	Break decimal.Decimal
}

// RateRow is a time-bounded snapshot of CAO constants.
type RateRow struct {
	ID        generic.RateRowID
	StartDate generic.TimePoint
	EndDate   *generic.TimePoint // nil = open ended

	// Single-day untaxed allowance tiers.
	OneDayMinimumHours      decimal.Decimal // span must exceed this for any allowance
	OneDayLongHours         decimal.Decimal // span above this pays the long allowance
	OneDayAllowance         decimal.Decimal
	OneDayLongAllowance     decimal.Decimal
	OneDayEveningSupplement decimal.Decimal
	EveningDepartureBefore  decimal.Decimal // clock hour
	EveningReturnAfter      decimal.Decimal // clock hour

	// Multi-day untaxed allowances.
	DepartureHourlyAllowance decimal.Decimal // per hour from start until 24:00
	IntermediateDayAllowance decimal.Decimal // per full day away
	ArrivalHourlyAllowance   decimal.Decimal // per hour from 00:00 until end

	// Night allowance.
	NightAllowanceRate decimal.Decimal // fraction of the hourly wage, e.g. 0.19
	NightStart         decimal.Decimal // clock hour, window may wrap midnight
	NightEnd           decimal.Decimal
	NightWholeHours    bool // count only whole night hours

	// Commute and kilometer allowance.
	CommuteMinimumKm decimal.Decimal // one-way distance below this pays nothing
	CommuteMaximumKm decimal.Decimal // one-way distance is capped here
	KilometerRate    decimal.Decimal

	// Consignment (on-call) allowance.
	ConsignmentAllowance decimal.Decimal
	ConsignmentStart     decimal.Decimal // clock hour, window may wrap midnight
	ConsignmentEnd       decimal.Decimal

	// Container waiting time included in the ride before it counts as exceeding.
	ContainerWaitingFreeHours decimal.Decimal

	BreakSchedule []BreakRule
}

// Window returns the validity window; open rows end at the far future.
func (r RateRow) Window() generic.Period {
	end := generic.NewTimePoint(9999, 12, 31)
	if r.EndDate != nil {
		end = *r.EndDate
	}
	return generic.Period{Start: r.StartDate, End: end}
}

// Covers reports whether the row is valid on date.
func (r RateRow) Covers(date generic.TimePoint) bool {
	if date.Before(r.StartDate) {
		return false
	}
	return r.EndDate == nil || date.BeforeOrEqual(*r.EndDate)
}

// ScheduledBreak returns the mandatory rest for a shift span.
func (r RateRow) ScheduledBreak(span decimal.Decimal) decimal.Decimal {
	brk := decimal.Zero
	for _, rule := range r.BreakSchedule {
		if span.GreaterThan(rule.After) && rule.Break.GreaterThan(brk) {
			brk = rule.Break
		}
	}
	return brk
}

// DefaultBreakSchedule is the statutory schedule: half an hour after 4.5
// hours, three quarters after 7.5.
func DefaultBreakSchedule() []BreakRule {
	return []BreakRule{
		{After: generic.MustParseDecimal("4.5"), Break: generic.MustParseDecimal("0.5")},
		{After: generic.MustParseDecimal("7.5"), Break: generic.MustParseDecimal("0.75")},
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve picks the row effective on date: the latest-starting row whose
// window contains the date.
func Resolve(rows []RateRow, date generic.TimePoint) (RateRow, error) {
	var (
		best  RateRow
		found bool
	)
	for _, row := range rows {
		if !row.Covers(date) {
			continue
		}
		if !found || row.StartDate.After(best.StartDate) {
			best = row
			found = true
		}
	}
	if !found {
		return RateRow{}, &generic.ReferenceDataMissingError{Kind: generic.RefRateRow, Key: "cao", Date: date}
	}
	return best, nil
}

// RateSource lists the stored rate rows.
type RateSource interface {
	RateRows(ctx context.Context) ([]RateRow, error)
}

// Provider resolves rate rows from a RateSource.
type Provider struct {
	Source RateSource
}

func NewProvider(source RateSource) *Provider {
	return &Provider{Source: source}
}

// Resolve returns the row effective on date.
func (p *Provider) Resolve(ctx context.Context, date generic.TimePoint) (RateRow, error) {
	rows, err := p.Source.RateRows(ctx)
	if err != nil {
		return RateRow{}, fmt.Errorf("failed to load rate rows: %w", err)
	}
	return Resolve(rows, date)
}
