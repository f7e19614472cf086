package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME POINT - Calendar day (rides, contracts and rates are day-granular)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsSaturday() bool      { return tp.Weekday() == time.Saturday }
func (tp TimePoint) IsSunday() bool        { return tp.Weekday() == time.Sunday }
func (tp TimePoint) IsWeekend() bool       { return tp.IsSaturday() || tp.IsSunday() }
func (tp TimePoint) IsWorkday() bool       { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// ISOWeek returns the ISO 8601 year and week of the day.
func (tp TimePoint) ISOWeek() (year, week int) { return tp.normalize().ISOWeek() }

func (tp TimePoint) String() string {
	return tp.Time.Format("2006-01-02")
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a recognised public holiday. Holiday hours are paid as
// Sunday/holiday hours by the work-hours calculator.
type Holiday struct {
	ID        string
	Date      TimePoint
	Name      string
	Recurring bool // true = same month/day every year
}

// HolidayCalendar answers whether a date is a recognised holiday.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// NoHolidays is a calendar without holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(TimePoint) bool { return false }

// HolidayList is a fixed, in-memory holiday calendar.
type HolidayList []Holiday

func (hl HolidayList) IsHoliday(date TimePoint) bool {
	for _, h := range hl {
		if h.Date.Equal(date) {
			return true
		}
		if h.Recurring && h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
			return true
		}
	}
	return false
}

// =============================================================================
// CLOCK HOURS - Shift times as fractional hours of the day
// =============================================================================

var sixty = decimal.NewFromInt(60)

// ParseClock parses "HH:MM" into fractional hours. "24:00" is accepted as the
// end of the day.
func ParseClock(s string) (decimal.Decimal, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return decimal.Zero, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return decimal.Zero, fmt.Errorf("clock time out of range %q", s)
	}
	return decimal.NewFromInt(int64(h)).Add(decimal.NewFromInt(int64(m)).Div(sixty)), nil
}

// MustClock is ParseClock for constants and tests.
func MustClock(s string) decimal.Decimal {
	d, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatClock renders fractional hours as "HH:MM".
func FormatClock(h decimal.Decimal) string {
	minutes := h.Mul(sixty).Round(0).IntPart()
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfYear(year int) TimePoint { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint   { return NewTimePoint(year, time.December, 31) }

// AgeOn returns completed years between birth and on.
func AgeOn(birth, on TimePoint) int {
	age := on.Year() - birth.Year()
	if on.Month() < birth.Month() || (on.Month() == birth.Month() && on.Day() < birth.Day()) {
		age--
	}
	return age
}
