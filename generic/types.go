/*
Package generic provides the domain-agnostic core of the ride engine.

PURPOSE:
  This package contains the building blocks every other package relies on:
  calendar math (days, ISO weeks, 4-week periods), decimal quantities for
  hours and money, typed identifiers, the acting party of a workflow step,
  and the shared error taxonomy. It knows nothing about CAO rates, ride
  records or approvals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: Type-safe ids so a DriverID can't be passed as a RideID
  - Actor: Who performs a workflow action (driver or admin)
  - Decimal helpers: Rounding and parsing for hours/money

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift in payroll
  2. Type Safety: Strong typing for ids
  3. Determinism: All rounding goes through Round2 so recomputation is stable

SEE ALSO:
  - time.go: TimePoint, clock hours, holiday calendar
  - period.go: ISO week and 4-week period arithmetic
  - errors.go: Error taxonomy
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DriverID string
type RideID string
type ExecutionID string
type HoursCodeID string
type HoursOptionID string
type RateRowID string
type WeekApprovalID string
type PeriodApprovalID string
type DisputeID string

// =============================================================================
// ACTOR - Who performs a workflow step
// =============================================================================

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Actor is the party performing a sign-off or dispute action.
// Context is free-form signing context (client, ip) kept for audit.
type Actor struct {
	ID      string
	Role    Role
	Context string
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsDriver() bool { return a.Role == RoleDriver }

func (a Actor) String() string { return fmt.Sprintf("%s:%s", a.Role, a.ID) }

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var (
	Hundred    = decimal.NewFromInt(100)
	TwentyFour = decimal.NewFromInt(24)
	Eight      = decimal.NewFromInt(8)
)

// Round2 rounds half away from zero to two decimals. Every stored hour and
// money figure passes through here.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustParseDecimal parses a decimal literal and panics on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
