package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] range of days.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Intersect returns the overlap of two periods, false when they don't overlap.
func (p Period) Intersect(o Period) (Period, bool) {
	start := p.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := p.End
	if o.End.Before(end) {
		end = o.End
	}
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// WorkingDays counts Monday to Friday days in the period.
func (p Period) WorkingDays() int {
	n := 0
	for _, d := range p.Days() {
		if d.IsWorkday() {
			n++
		}
	}
	return n
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// ISO WEEKS AND 4-WEEK PERIODS
// =============================================================================

// WeeksPerPeriod is the number of ISO weeks in a sign-off period.
const WeeksPerPeriod = 4

// WeekKey identifies an ISO week.
type WeekKey struct {
	Year int
	Week int
}

func (k WeekKey) String() string { return fmt.Sprintf("%d-W%02d", k.Year, k.Week) }

// Period returns the 4-week period this week belongs to.
func (k WeekKey) Period() PeriodKey {
	return PeriodKey{Year: k.Year, Number: (k.Week-1)/WeeksPerPeriod + 1}
}

// WeekInPeriod returns 1..4, the position of the week inside its period.
func (k WeekKey) WeekInPeriod() int {
	return (k.Week-1)%WeeksPerPeriod + 1
}

// Range returns Monday..Sunday of the week.
func (k WeekKey) Range() Period {
	monday := MondayOfISOWeek(k.Year, k.Week)
	return Period{Start: monday, End: monday.AddDays(6)}
}

// PeriodKey identifies a 4-week period within an ISO year.
type PeriodKey struct {
	Year   int
	Number int
}

func (k PeriodKey) String() string { return fmt.Sprintf("%d-P%02d", k.Year, k.Number) }

// Weeks returns the ISO weeks of the period that exist in its ISO year.
// Period 14 of a 53-week year holds only week 53.
func (k PeriodKey) Weeks() []WeekKey {
	last := WeeksInISOYear(k.Year)
	var weeks []WeekKey
	for i := 0; i < WeeksPerPeriod; i++ {
		w := (k.Number-1)*WeeksPerPeriod + i + 1
		if w > last {
			break
		}
		weeks = append(weeks, WeekKey{Year: k.Year, Week: w})
	}
	return weeks
}

// Range returns the first Monday to the last Sunday of the period.
func (k PeriodKey) Range() Period {
	weeks := k.Weeks()
	if len(weeks) == 0 {
		return Period{}
	}
	return Period{Start: weeks[0].Range().Start, End: weeks[len(weeks)-1].Range().End}
}

// WeekOf returns the ISO week containing the date.
func WeekOf(date TimePoint) WeekKey {
	y, w := date.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// PeriodOf returns the 4-week period containing the date.
func PeriodOf(date TimePoint) PeriodKey {
	return WeekOf(date).Period()
}

// WeeksInISOYear returns 52 or 53.
func WeeksInISOYear(year int) int {
	// December 28th is always in the last ISO week of its year.
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// MondayOfISOWeek returns the Monday of the given ISO week.
func MondayOfISOWeek(year, week int) TimePoint {
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return DateOf(monday.AddDate(0, 0, (week-1)*7))
}
