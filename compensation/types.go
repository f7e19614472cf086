// Package compensation turns the raw inputs of one ride record into the
// pay-relevant figures stored on it.
package compensation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// HoursCode classifies a work day.
type HoursCode struct {
	ID          generic.HoursCodeID
	Name        string
	Kind        cao.DayKind
	Consignment bool // eligible for the consignment allowance
}

// HoursOption modifies allowance eligibility for a day.
type HoursOption struct {
	ID       generic.HoursOptionID
	Name     string
	Modifier cao.Modifier
}

// DriverSettings are the per-driver compensation constants.
type DriverSettings struct {
	DriverID                  generic.DriverID
	HourlyWage                decimal.Decimal
	NightHoursEnabled         bool
	KilometerAllowanceEnabled bool
	HomeWorkDistanceKm        decimal.Decimal // one-way
	PartTimePercentage        decimal.Decimal // 100 = full-time
}

// DefaultDriverSettings are created at onboarding.
func DefaultDriverSettings(driverID generic.DriverID) DriverSettings {
	return DriverSettings{
		DriverID:           driverID,
		HourlyWage:         decimal.Zero,
		HomeWorkDistanceKm: decimal.Zero,
		PartTimePercentage: generic.Hundred,
	}
}

// PartTimeFactor returns the percentage as a fraction.
func (s DriverSettings) PartTimeFactor() decimal.Decimal {
	return s.PartTimePercentage.Div(generic.Hundred)
}

// =============================================================================
// INPUTS AND RESULT
// =============================================================================

// Inputs are the raw fields of a ride record the calculator depends on.
// Both ride record shapes map onto this through explicit adapters.
type Inputs struct {
	DriverID        generic.DriverID
	Date            generic.TimePoint
	Start           decimal.Decimal // clock hours
	End             decimal.Decimal // clock hours
	RestTaken       decimal.Decimal
	Correction      decimal.Decimal
	ExtraKilometers decimal.Decimal
	HoursCode       generic.HoursCodeID   // empty = deployment default
	HoursOption     generic.HoursOptionID // empty = none

	// ContainerWaiting is only recorded on the per-driver execution shape.
	ContainerWaiting *decimal.Decimal
}

// Result is the immutable set of computed figures for one ride record.
type Result struct {
	DecimalHours         decimal.Decimal
	CalculatedRest       decimal.Decimal
	UntaxedAllowance     decimal.Decimal
	NightHours           decimal.Decimal
	NightAllowance       decimal.Decimal
	HomeWorkKilometers   decimal.Decimal
	KilometerAllowance   decimal.Decimal
	ConsignmentAllowance decimal.Decimal
	SaturdayHours        decimal.Decimal
	SundayHolidayHours   decimal.Decimal
	SickHours            decimal.Decimal
	VacationHoursTaken   decimal.Decimal
	VacationHoursEarned  decimal.Decimal

	// Nil unless the inputs carried container waiting time.
	ExceedingContainerWaiting *decimal.Decimal

	ISOYear      int
	ISOWeek      int
	Period       int
	WeekInPeriod int

	RateRowID generic.RateRowID
	Kind      cao.DayKind
}

// Total is the compensation amount that counts towards period totals.
func (r Result) Total() decimal.Decimal {
	return r.UntaxedAllowance.
		Add(r.NightAllowance).
		Add(r.KilometerAllowance).
		Add(r.ConsignmentAllowance)
}

// IsWorkDay is true when the day earns vacation accrual.
func (r Result) IsWorkDay() bool {
	return !r.Kind.IsAbsence() && r.DecimalHours.IsPositive()
}

// Equal compares every computed figure.
func (r Result) Equal(o Result) bool {
	if (r.ExceedingContainerWaiting == nil) != (o.ExceedingContainerWaiting == nil) {
		return false
	}
	if r.ExceedingContainerWaiting != nil && !r.ExceedingContainerWaiting.Equal(*o.ExceedingContainerWaiting) {
		return false
	}
	return r.DecimalHours.Equal(o.DecimalHours) &&
		r.CalculatedRest.Equal(o.CalculatedRest) &&
		r.UntaxedAllowance.Equal(o.UntaxedAllowance) &&
		r.NightHours.Equal(o.NightHours) &&
		r.NightAllowance.Equal(o.NightAllowance) &&
		r.HomeWorkKilometers.Equal(o.HomeWorkKilometers) &&
		r.KilometerAllowance.Equal(o.KilometerAllowance) &&
		r.ConsignmentAllowance.Equal(o.ConsignmentAllowance) &&
		r.SaturdayHours.Equal(o.SaturdayHours) &&
		r.SundayHolidayHours.Equal(o.SundayHolidayHours) &&
		r.SickHours.Equal(o.SickHours) &&
		r.VacationHoursTaken.Equal(o.VacationHoursTaken) &&
		r.VacationHoursEarned.Equal(o.VacationHoursEarned) &&
		r.ISOYear == o.ISOYear && r.ISOWeek == o.ISOWeek &&
		r.Period == o.Period && r.WeekInPeriod == o.WeekInPeriod &&
		r.RateRowID == o.RateRowID && r.Kind == o.Kind
}
