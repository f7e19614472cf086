/*
Package vacation computes the paid leave a driver earns per work day.

ACCRUAL:
  entitlement days are set per age bracket (age as of December 31st of the
  day's year) and change over time, like CAO rates. A day worked inside the
  active employment contract earns

      entitlement_days * 8 / working_days_in_window

  hours, rounded to 2 decimals, where the window is the overlap of the
  contract and the calendar year and working days are Monday to Friday.

  A contract ending exactly on the day still accrues for that day; the day
  after, nothing does.

EXAMPLE:
  contract 2024-01-01 .. open, bracket 18-49 -> 25 days
  2024 has 262 weekdays -> 25 * 8 / 262 = 0.76 hours per day
*/
package vacation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// Contract is an employment contract of a driver.
type Contract struct {
	ID             string
	DriverID       generic.DriverID
	StartDate      generic.TimePoint
	LastWorkingDay *generic.TimePoint // nil = ongoing
}

// Window returns the active window; ongoing contracts end at the far future.
func (c Contract) Window() generic.Period {
	end := generic.NewTimePoint(9999, 12, 31)
	if c.LastWorkingDay != nil {
		end = *c.LastWorkingDay
	}
	return generic.Period{Start: c.StartDate, End: end}
}

// Entitlement is an age bracket of yearly vacation days, effective from
// ValidFrom until ValidTo.
type Entitlement struct {
	ID        string
	MinAge    int
	MaxAge    *int // inclusive, nil = no upper bound
	Days      decimal.Decimal
	ValidFrom generic.TimePoint
	ValidTo   *generic.TimePoint
}

// Matches reports whether the bracket applies to age on date.
func (e Entitlement) Matches(age int, date generic.TimePoint) bool {
	if age < e.MinAge || (e.MaxAge != nil && age > *e.MaxAge) {
		return false
	}
	if date.Before(e.ValidFrom) {
		return false
	}
	return e.ValidTo == nil || date.BeforeOrEqual(*e.ValidTo)
}

// Source provides the data the calculator reads.
type Source interface {
	Contracts(ctx context.Context, driverID generic.DriverID) ([]Contract, error)
	BirthDate(ctx context.Context, driverID generic.DriverID) (generic.TimePoint, error)
	Entitlements(ctx context.Context) ([]Entitlement, error)
}

// Calculator computes vacation accrual.
type Calculator struct {
	Source Source
}

func NewCalculator(source Source) *Calculator {
	return &Calculator{Source: source}
}

// ActiveContract returns the contract whose window contains date.
func ActiveContract(contracts []Contract, date generic.TimePoint) (Contract, bool) {
	for _, c := range contracts {
		if c.Window().Contains(date) {
			return c, true
		}
	}
	return Contract{}, false
}

// ResolveEntitlement picks the bracket for age on date. When brackets
// overlap the most recently effective one wins.
func ResolveEntitlement(brackets []Entitlement, age int, date generic.TimePoint) (Entitlement, bool) {
	var (
		best  Entitlement
		found bool
	)
	for _, e := range brackets {
		if !e.Matches(age, date) {
			continue
		}
		if !found || e.ValidFrom.After(best.ValidFrom) {
			best = e
			found = true
		}
	}
	return best, found
}

// HoursPerWorkday computes the accrual for one day under a contract and
// entitlement. Zero when date falls outside the contract window.
func HoursPerWorkday(contract Contract, entitlement Entitlement, date generic.TimePoint) decimal.Decimal {
	year := generic.Period{Start: generic.StartOfYear(date.Year()), End: generic.EndOfYear(date.Year())}
	window, ok := contract.Window().Intersect(year)
	if !ok || !window.Contains(date) {
		return decimal.Zero
	}
	working := window.WorkingDays()
	if working == 0 {
		return decimal.Zero
	}
	return generic.Round2(entitlement.Days.Mul(generic.Eight).Div(decimal.NewFromInt(int64(working))))
}

// EarnedHours returns the vacation hours earned by driverID working on date,
// or zero when not entitled.
func (c *Calculator) EarnedHours(ctx context.Context, driverID generic.DriverID, date generic.TimePoint) (decimal.Decimal, error) {
	contracts, err := c.Source.Contracts(ctx, driverID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load contracts: %w", err)
	}
	contract, ok := ActiveContract(contracts, date)
	if !ok {
		return decimal.Zero, nil
	}

	birth, err := c.Source.BirthDate(ctx, driverID)
	if errors.Is(err, generic.ErrNotFound) {
		// Contract without master data: a reference-data gap.
		return decimal.Zero, &generic.ReferenceDataMissingError{Kind: generic.RefDriver, Key: string(driverID), Date: date}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load birth date: %w", err)
	}
	age := generic.AgeOn(birth, generic.EndOfYear(date.Year()))

	brackets, err := c.Source.Entitlements(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load entitlements: %w", err)
	}
	entitlement, ok := ResolveEntitlement(brackets, age, date)
	if !ok {
		return decimal.Zero, nil
	}

	return HoursPerWorkday(contract, entitlement, date), nil
}
