package cao

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

var two = decimal.NewFromInt(2)

// KilometerDay is the per-ride input of the kilometer calculator.
type KilometerDay struct {
	Kind               DayKind
	Modifier           Modifier
	NetHours           decimal.Decimal
	ExtraKilometers    decimal.Decimal // non home-work kilometers driven privately for work
	AllowanceEnabled   bool            // driver setting
	HomeWorkDistanceKm decimal.Decimal // one-way, driver setting
}

// Kilometers is the output of the kilometer calculator.
type Kilometers struct {
	HomeWorkKilometers decimal.Decimal
	Allowance          decimal.Decimal
}

// CommuteKilometers applies the distance tiers to a one-way distance and
// returns the reimbursable round trip.
func CommuteKilometers(row RateRow, oneWay decimal.Decimal) decimal.Decimal {
	if oneWay.LessThan(row.CommuteMinimumKm) {
		return decimal.Zero
	}
	if row.CommuteMaximumKm.IsPositive() && oneWay.GreaterThan(row.CommuteMaximumKm) {
		oneWay = row.CommuteMaximumKm
	}
	return oneWay.Mul(two)
}

// CalculateKilometers computes the kilometer reimbursement for one day.
func CalculateKilometers(row RateRow, day KilometerDay) Kilometers {
	if day.Kind.IsAbsence() || day.Modifier.SuppressesKilometers() || !day.NetHours.IsPositive() {
		return Kilometers{}
	}

	var out Kilometers
	if day.AllowanceEnabled {
		out.HomeWorkKilometers = generic.Round2(CommuteKilometers(row, day.HomeWorkDistanceKm))
	}
	total := out.HomeWorkKilometers.Add(generic.NonNegative(day.ExtraKilometers))
	out.Allowance = generic.Round2(total.Mul(row.KilometerRate))
	return out
}
