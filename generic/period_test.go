package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// ISO WEEKS
// =============================================================================

func TestWeekOf_MidYearSaturday(t *testing.T) {
	// GIVEN: Saturday 15 June 2024
	date := generic.NewTimePoint(2024, time.June, 15)

	// WHEN: Resolving its ISO week
	week := generic.WeekOf(date)

	// THEN: Week 24, the fourth week of period 6
	assert.Equal(t, generic.WeekKey{Year: 2024, Week: 24}, week)
	assert.Equal(t, generic.PeriodKey{Year: 2024, Number: 6}, week.Period())
	assert.Equal(t, 4, week.WeekInPeriod())
	assert.Equal(t, "2024-W24", week.String())
}

func TestWeekOf_NewYearBelongsToPreviousISOYear(t *testing.T) {
	// GIVEN: 1 January 2021, a Friday
	date := generic.NewTimePoint(2021, time.January, 1)

	// WHEN/THEN: It is the last week of ISO year 2020
	assert.Equal(t, generic.WeekKey{Year: 2020, Week: 53}, generic.WeekOf(date))
	assert.Equal(t, generic.PeriodKey{Year: 2020, Number: 14}, generic.PeriodOf(date))
}

func TestWeekRange_MondayToSunday(t *testing.T) {
	span := generic.WeekKey{Year: 2024, Week: 1}.Range()

	assert.Equal(t, "2024-01-01", span.Start.String())
	assert.Equal(t, "2024-01-07", span.End.String())
}

func TestWeeksInISOYear(t *testing.T) {
	assert.Equal(t, 52, generic.WeeksInISOYear(2024))
	assert.Equal(t, 53, generic.WeeksInISOYear(2020))
}

// =============================================================================
// 4-WEEK PERIODS
// =============================================================================

func TestPeriodWeeks_RegularPeriod(t *testing.T) {
	// GIVEN: Period 6 of 2024
	p := generic.PeriodKey{Year: 2024, Number: 6}

	// WHEN: Listing its weeks
	weeks := p.Weeks()

	// THEN: ISO weeks 21 to 24
	require.Len(t, weeks, 4)
	assert.Equal(t, 21, weeks[0].Week)
	assert.Equal(t, 24, weeks[3].Week)

	span := p.Range()
	assert.Equal(t, "2024-05-20", span.Start.String())
	assert.Equal(t, "2024-06-16", span.End.String())
}

func TestPeriodWeeks_ShortFinalPeriod(t *testing.T) {
	// GIVEN: Period 14 of 2020, a 53-week ISO year
	p := generic.PeriodKey{Year: 2020, Number: 14}

	// WHEN/THEN: Only week 53 exists
	weeks := p.Weeks()
	require.Len(t, weeks, 1)
	assert.Equal(t, 53, weeks[0].Week)

	span := p.Range()
	assert.Equal(t, "2020-12-28", span.Start.String())
	assert.Equal(t, "2021-01-03", span.End.String())
}

func TestPeriodWeeks_NonexistentPeriod(t *testing.T) {
	// Period 14 of a 52-week year has no weeks
	p := generic.PeriodKey{Year: 2024, Number: 14}

	assert.Empty(t, p.Weeks())
	assert.Equal(t, generic.Period{}, p.Range())
}

// =============================================================================
// PERIOD HELPERS
// =============================================================================

func TestPeriodWorkingDays(t *testing.T) {
	// GIVEN: The calendar year 2024, starting Monday and ending Tuesday
	year := generic.Period{Start: generic.StartOfYear(2024), End: generic.EndOfYear(2024)}

	// WHEN/THEN: 262 weekdays
	assert.Equal(t, 262, year.WorkingDays())
}

func TestPeriodIntersect(t *testing.T) {
	a := generic.Period{Start: generic.NewTimePoint(2024, time.January, 1), End: generic.NewTimePoint(2024, time.June, 30)}
	b := generic.Period{Start: generic.NewTimePoint(2024, time.June, 1), End: generic.NewTimePoint(2024, time.December, 31)}

	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01", got.Start.String())
	assert.Equal(t, "2024-06-30", got.End.String())

	c := generic.Period{Start: generic.NewTimePoint(2025, time.January, 1), End: generic.NewTimePoint(2025, time.January, 31)}
	_, ok = a.Intersect(c)
	assert.False(t, ok)
}

// =============================================================================
// CLOCK HOURS
// =============================================================================

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"06:00", "6"},
		{"00:45", "0.75"},
		{"23:30", "23.5"},
		{"24:00", "24"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseClock(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(generic.MustParseDecimal(tt.want)), "got %s", got)
		})
	}
}

func TestParseClock_RejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"24:30", "25:00", "12:60", "noon", "7"} {
		_, err := generic.ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "11:15", generic.FormatClock(generic.MustParseDecimal("11.25")))
	assert.Equal(t, "00:45", generic.FormatClock(generic.MustParseDecimal("0.75")))
}

func TestAgeOn(t *testing.T) {
	birth := generic.NewTimePoint(1985, time.March, 14)

	assert.Equal(t, 38, generic.AgeOn(birth, generic.NewTimePoint(2024, time.March, 13)))
	assert.Equal(t, 39, generic.AgeOn(birth, generic.NewTimePoint(2024, time.March, 14)))
}

func TestHolidayList(t *testing.T) {
	holidays := generic.HolidayList{
		{Date: generic.NewTimePoint(2024, time.December, 25), Recurring: true},
		{Date: generic.NewTimePoint(2024, time.May, 9)},
	}

	assert.True(t, holidays.IsHoliday(generic.NewTimePoint(2025, time.December, 25)))
	assert.True(t, holidays.IsHoliday(generic.NewTimePoint(2024, time.May, 9)))
	assert.False(t, holidays.IsHoliday(generic.NewTimePoint(2025, time.May, 9)))
}
