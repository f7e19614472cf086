package cao

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// NightDay is the per-ride input of the night calculator.
type NightDay struct {
	Kind       DayKind
	Start      decimal.Decimal
	End        decimal.Decimal
	Enabled    bool            // driver setting
	HourlyWage decimal.Decimal // driver base hourly rate
}

// Night is the output of the night calculator.
type Night struct {
	Hours     decimal.Decimal
	Allowance decimal.Decimal
}

// NightHours returns the overlap of [start, end] with the row's night window.
func NightHours(row RateRow, start, end decimal.Decimal) decimal.Decimal {
	var hours decimal.Decimal
	if row.NightStart.LessThan(row.NightEnd) {
		hours = overlap(start, end, row.NightStart, row.NightEnd)
	} else {
		hours = overlap(start, end, decimal.Zero, row.NightEnd).
			Add(overlap(start, end, row.NightStart, generic.TwentyFour))
	}
	if row.NightWholeHours {
		hours = hours.Floor()
	}
	return hours
}

// CalculateNight computes night hours and the night allowance for one day.
func CalculateNight(row RateRow, day NightDay) Night {
	if !day.Enabled || day.Kind.IsAbsence() {
		return Night{}
	}
	hours := NightHours(row, day.Start, day.End)
	return Night{
		Hours:     generic.Round2(hours),
		Allowance: generic.Round2(hours.Mul(day.HourlyWage).Mul(row.NightAllowanceRate)),
	}
}

func overlap(aStart, aEnd, bStart, bEnd decimal.Decimal) decimal.Decimal {
	return generic.NonNegative(decimal.Min(aEnd, bEnd).Sub(decimal.Max(aStart, bStart)))
}
