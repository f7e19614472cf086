package cao

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// DAY KINDS AND MODIFIERS
// =============================================================================

// DayKind classifies a work day. Hours codes map onto one kind.
type DayKind string

const (
	KindSingleDay            DayKind = "single_day"
	KindMultiDayDeparture    DayKind = "multi_day_departure"
	KindMultiDayIntermediate DayKind = "multi_day_intermediate"
	KindMultiDayArrival      DayKind = "multi_day_arrival"
	KindSick                 DayKind = "sick"
	KindVacation             DayKind = "vacation"
	KindOther                DayKind = "other"
)

// IsAbsence is true for days that are carved out of worked hours.
func (k DayKind) IsAbsence() bool { return k == KindSick || k == KindVacation }

func (k DayKind) Valid() bool {
	switch k {
	case KindSingleDay, KindMultiDayDeparture, KindMultiDayIntermediate,
		KindMultiDayArrival, KindSick, KindVacation, KindOther:
		return true
	}
	return false
}

// Modifier is the effect of an hours option.
type Modifier string

const (
	ModNone        Modifier = ""
	ModStandOver   Modifier = "stand_over"
	ModHoliday     Modifier = "holiday"
	ModNoAllowance Modifier = "no_allowance"
)

func (m Modifier) Valid() bool {
	switch m {
	case ModNone, ModStandOver, ModHoliday, ModNoAllowance:
		return true
	}
	return false
}

// SuppressesKilometers is true for modifiers that void the kilometer allowance.
func (m Modifier) SuppressesKilometers() bool {
	return m == ModStandOver || m == ModNoAllowance
}

// =============================================================================
// WORK-HOURS CALCULATOR
// =============================================================================

// WorkDay is the per-ride input of the work-hours calculator.
type WorkDay struct {
	Date       generic.TimePoint
	Start      decimal.Decimal // clock hours
	End        decimal.Decimal // clock hours, >= Start
	RestTaken  decimal.Decimal
	Correction decimal.Decimal // manual correction hours, may be negative
	Kind       DayKind
	Modifier   Modifier
	Holiday    bool            // date is a recognised holiday
	Consign    bool            // hours code is consignment-eligible
	PartTime   decimal.Decimal // fraction of full-time, 1 = full-time
}

// Span is the raw shift length.
func (w WorkDay) Span() decimal.Decimal { return w.End.Sub(w.Start) }

// WorkHours is the output of the work-hours calculator.
type WorkHours struct {
	UntaxedAllowance     decimal.Decimal
	SickHours            decimal.Decimal
	VacationHours        decimal.Decimal
	CalculatedRest       decimal.Decimal
	NetHours             decimal.Decimal
	SaturdayHours        decimal.Decimal
	SundayHolidayHours   decimal.Decimal
	ConsignmentAllowance decimal.Decimal
}

// CalculateWorkHours derives hours, breaks and the untaxed daily allowance
// for one day.
func CalculateWorkHours(row RateRow, day WorkDay) WorkHours {
	var out WorkHours
	span := generic.NonNegative(day.Span())

	if day.Kind.IsAbsence() {
		hours := span.Add(day.Correction)
		if span.IsZero() {
			hours = generic.Eight.Mul(day.PartTime).Add(day.Correction)
		}
		hours = generic.Round2(generic.NonNegative(hours))
		if day.Kind == KindSick {
			out.SickHours = hours
		} else {
			out.VacationHours = hours
		}
		out.NetHours = hours
		return out
	}

	if day.Modifier == ModStandOver {
		out.NetHours = generic.Round2(generic.NonNegative(day.Correction))
		out.UntaxedAllowance = generic.Round2(row.IntermediateDayAllowance)
	} else {
		rest := decimal.Max(day.RestTaken, row.ScheduledBreak(span))
		out.CalculatedRest = generic.Round2(rest)
		out.NetHours = generic.Round2(generic.NonNegative(span.Sub(rest).Add(day.Correction)))
		out.UntaxedAllowance = untaxedAllowance(row, day, span)
	}

	switch {
	case day.Holiday || day.Modifier == ModHoliday || day.Date.IsSunday():
		out.SundayHolidayHours = out.NetHours
	case day.Date.IsSaturday():
		out.SaturdayHours = out.NetHours
	}

	if day.Consign && inWindow(day.Start, row.ConsignmentStart, row.ConsignmentEnd) {
		out.ConsignmentAllowance = generic.Round2(row.ConsignmentAllowance)
	}

	if day.Modifier == ModNoAllowance {
		out.UntaxedAllowance = decimal.Zero
		out.ConsignmentAllowance = decimal.Zero
	}
	return out
}

// untaxedAllowance applies the per-kind formula.
func untaxedAllowance(row RateRow, day WorkDay, span decimal.Decimal) decimal.Decimal {
	switch day.Kind {
	case KindSingleDay:
		if !span.GreaterThan(row.OneDayMinimumHours) {
			return decimal.Zero
		}
		amount := row.OneDayAllowance
		if span.GreaterThan(row.OneDayLongHours) {
			amount = row.OneDayLongAllowance
		}
		if day.Start.LessThan(row.EveningDepartureBefore) && day.End.GreaterThanOrEqual(row.EveningReturnAfter) {
			amount = amount.Add(row.OneDayEveningSupplement)
		}
		return generic.Round2(amount)
	case KindMultiDayDeparture:
		return generic.Round2(generic.TwentyFour.Sub(day.Start).Mul(row.DepartureHourlyAllowance))
	case KindMultiDayIntermediate:
		return generic.Round2(row.IntermediateDayAllowance)
	case KindMultiDayArrival:
		return generic.Round2(day.End.Mul(row.ArrivalHourlyAllowance))
	default:
		return decimal.Zero
	}
}

// inWindow reports whether clock hour t lies in [from, to), wrapping midnight
// when to <= from.
func inWindow(t, from, to decimal.Decimal) bool {
	if from.Equal(to) {
		return false
	}
	if from.LessThan(to) {
		return t.GreaterThanOrEqual(from) && t.LessThan(to)
	}
	return t.GreaterThanOrEqual(from) || t.LessThan(to)
}
