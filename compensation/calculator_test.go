package compensation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// FIXTURES
// =============================================================================

func d(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: want %s, got %s", field, want, got)
}

type fakeRefs struct {
	rows     []cao.RateRow
	codes    map[generic.HoursCodeID]compensation.HoursCode
	options  map[generic.HoursOptionID]compensation.HoursOption
	settings map[generic.DriverID]compensation.DriverSettings
	err      error // returned by every lookup when set
}

func (f *fakeRefs) RateRows(ctx context.Context) ([]cao.RateRow, error) {
	return f.rows, f.err
}

func (f *fakeRefs) HoursCode(ctx context.Context, id generic.HoursCodeID) (compensation.HoursCode, error) {
	if f.err != nil {
		return compensation.HoursCode{}, f.err
	}
	c, ok := f.codes[id]
	if !ok {
		return compensation.HoursCode{}, &generic.NotFoundError{Entity: "hours code", ID: string(id)}
	}
	return c, nil
}

func (f *fakeRefs) HoursOption(ctx context.Context, id generic.HoursOptionID) (compensation.HoursOption, error) {
	o, ok := f.options[id]
	if !ok {
		return compensation.HoursOption{}, &generic.NotFoundError{Entity: "hours option", ID: string(id)}
	}
	return o, nil
}

func (f *fakeRefs) DriverSettings(ctx context.Context, driverID generic.DriverID) (compensation.DriverSettings, error) {
	s, ok := f.settings[driverID]
	if !ok {
		return compensation.DriverSettings{}, &generic.NotFoundError{Entity: "driver settings", ID: string(driverID)}
	}
	return s, nil
}

func rateRow() cao.RateRow {
	end := generic.NewTimePoint(2024, time.June, 30)
	return cao.RateRow{
		ID:                        "cao-2024-h1",
		StartDate:                 generic.NewTimePoint(2024, time.January, 1),
		EndDate:                   &end,
		OneDayMinimumHours:        d("4"),
		OneDayLongHours:           d("12"),
		OneDayAllowance:           d("1.06"),
		OneDayLongAllowance:       d("19.29"),
		OneDayEveningSupplement:   d("4.85"),
		EveningDepartureBefore:    d("14"),
		EveningReturnAfter:        d("21"),
		IntermediateDayAllowance:  d("68.58"),
		NightAllowanceRate:        d("0.19"),
		NightStart:                d("21"),
		NightEnd:                  d("5"),
		NightWholeHours:           true,
		CommuteMinimumKm:          d("10"),
		CommuteMaximumKm:          d("35"),
		KilometerRate:             d("0.23"),
		ConsignmentAllowance:      d("13.18"),
		ConsignmentStart:          d("0"),
		ConsignmentEnd:            d("4"),
		ContainerWaitingFreeHours: d("1"),
		BreakSchedule:             cao.DefaultBreakSchedule(),
	}
}

func newRefs() *fakeRefs {
	settings := compensation.DefaultDriverSettings("drv-001")
	settings.HourlyWage = d("17.85")
	settings.KilometerAllowanceEnabled = true
	settings.HomeWorkDistanceKm = d("25")

	return &fakeRefs{
		rows: []cao.RateRow{rateRow()},
		codes: map[generic.HoursCodeID]compensation.HoursCode{
			"normal": {ID: "normal", Kind: cao.KindSingleDay, Consignment: true},
			"sick":   {ID: "sick", Kind: cao.KindSick},
		},
		options: map[generic.HoursOptionID]compensation.HoursOption{
			"stand-over": {ID: "stand-over", Modifier: cao.ModStandOver},
		},
		settings: map[generic.DriverID]compensation.DriverSettings{"drv-001": settings},
	}
}

func mondayShift() compensation.Inputs {
	return compensation.Inputs{
		DriverID:  "drv-001",
		Date:      generic.NewTimePoint(2024, time.June, 10),
		Start:     generic.MustClock("06:00"),
		End:       generic.MustClock("18:00"),
		RestTaken: generic.MustClock("00:45"),
	}
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculate_RegularDayWithKilometers(t *testing.T) {
	// GIVEN: A driver with 25km one-way commute and kilometer allowance on
	calc := compensation.NewCalculator(newRefs(), nil, "normal")

	// WHEN: Calculating Monday 06:00-18:00 with 45 minutes rest
	res, err := calc.Calculate(context.Background(), mondayShift())
	require.NoError(t, err)

	// THEN: Hours, allowances and period placement are filled
	assertDecimal(t, "11.25", res.DecimalHours, "decimal hours")
	assertDecimal(t, "0.75", res.CalculatedRest, "rest")
	assertDecimal(t, "1.06", res.UntaxedAllowance, "untaxed allowance")
	assertDecimal(t, "0", res.NightHours, "night hours")
	assertDecimal(t, "0", res.NightAllowance, "night allowance")
	assertDecimal(t, "50", res.HomeWorkKilometers, "home-work km")
	assertDecimal(t, "11.50", res.KilometerAllowance, "km allowance")
	assertDecimal(t, "0", res.ConsignmentAllowance, "consignment")
	assertDecimal(t, "12.56", res.Total(), "total")

	assert.Equal(t, 2024, res.ISOYear)
	assert.Equal(t, 24, res.ISOWeek)
	assert.Equal(t, 6, res.Period)
	assert.Equal(t, 4, res.WeekInPeriod)
	assert.Equal(t, generic.RateRowID("cao-2024-h1"), res.RateRowID)
	assert.Equal(t, cao.KindSingleDay, res.Kind)
	assert.Nil(t, res.ExceedingContainerWaiting)
	assert.True(t, res.IsWorkDay())
}

func TestCalculate_Idempotent(t *testing.T) {
	calc := compensation.NewCalculator(newRefs(), nil, "normal")
	in := mondayShift()
	in.ExtraKilometers = d("12")

	first, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)
	second, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestCalculate_NightAllowance(t *testing.T) {
	// GIVEN: Night hours enabled for the driver
	refs := newRefs()
	s := refs.settings["drv-001"]
	s.NightHoursEnabled = true
	refs.settings["drv-001"] = s
	calc := compensation.NewCalculator(refs, nil, "normal")

	in := mondayShift()
	in.Start = generic.MustClock("14:00")
	in.End = generic.MustClock("23:30")
	in.RestTaken = generic.MustClock("00:30")

	// WHEN
	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	// THEN: Two whole night hours at 19% of 17.85
	assertDecimal(t, "2", res.NightHours, "night hours")
	assertDecimal(t, "6.78", res.NightAllowance, "night allowance")
}

func TestCalculate_ContainerWaiting(t *testing.T) {
	calc := compensation.NewCalculator(newRefs(), nil, "normal")

	tests := []struct {
		waiting   string
		exceeding string
	}{
		{"2.5", "1.5"},
		{"1", "0"},
		{"0.5", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.waiting, func(t *testing.T) {
			in := mondayShift()
			w := d(tt.waiting)
			in.ContainerWaiting = &w

			res, err := calc.Calculate(context.Background(), in)
			require.NoError(t, err)
			require.NotNil(t, res.ExceedingContainerWaiting)
			assertDecimal(t, tt.exceeding, *res.ExceedingContainerWaiting, "exceeding waiting")
		})
	}
}

func TestCalculate_HolidayCalendar(t *testing.T) {
	// GIVEN: Ascension Day on the calendar
	holidays := generic.HolidayList{{Date: generic.NewTimePoint(2024, time.May, 9), Name: "Ascension Day"}}
	calc := compensation.NewCalculator(newRefs(), holidays, "normal")

	in := mondayShift()
	in.Date = generic.NewTimePoint(2024, time.May, 9)

	// WHEN
	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	// THEN: All hours are holiday hours
	assertDecimal(t, "11.25", res.SundayHolidayHours, "sunday/holiday hours")
}

func TestCalculate_SickDayDoesNotAccrue(t *testing.T) {
	calc := compensation.NewCalculator(newRefs(), nil, "normal")
	in := compensation.Inputs{DriverID: "drv-001", Date: generic.NewTimePoint(2024, time.June, 11), HoursCode: "sick"}

	res, err := calc.Calculate(context.Background(), in)
	require.NoError(t, err)

	assertDecimal(t, "8", res.SickHours, "sick hours")
	assertDecimal(t, "0", res.KilometerAllowance, "km allowance")
	assert.False(t, res.IsWorkDay())
}

// =============================================================================
// MISSING REFERENCE DATA
// =============================================================================

func TestCalculate_MissingReferenceData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*compensation.Inputs)
		want   error
	}{
		{
			name:   "unknown hours code",
			mutate: func(in *compensation.Inputs) { in.HoursCode = "ferry" },
			want:   compensation.ErrMissingHoursCode,
		},
		{
			name:   "unknown hours option",
			mutate: func(in *compensation.Inputs) { in.HoursOption = "double-shift" },
			want:   compensation.ErrMissingHoursOption,
		},
		{
			name:   "no driver settings",
			mutate: func(in *compensation.Inputs) { in.DriverID = "drv-404" },
			want:   compensation.ErrMissingDriverSettings,
		},
		{
			name:   "no rate row",
			mutate: func(in *compensation.Inputs) { in.Date = generic.NewTimePoint(2023, time.December, 31) },
			want:   compensation.ErrMissingRateRow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := compensation.NewCalculator(newRefs(), nil, "normal")
			in := mondayShift()
			tt.mutate(&in)

			_, err := calc.Calculate(context.Background(), in)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, generic.ErrReferenceDataMissing)
		})
	}
}

func TestCalculate_UnknownDefaultCode(t *testing.T) {
	// GIVEN: A deployment default that isn't configured
	calc := compensation.NewCalculator(newRefs(), nil, "regular")

	_, err := calc.Calculate(context.Background(), mondayShift())

	assert.ErrorIs(t, err, compensation.ErrMissingHoursCode)
}

func TestCalculate_StoreFailureIsNotMissingData(t *testing.T) {
	refs := newRefs()
	refs.err = errors.New("database is locked")
	calc := compensation.NewCalculator(refs, nil, "normal")

	_, err := calc.Calculate(context.Background(), mondayShift())

	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrReferenceDataMissing)
	assert.ErrorContains(t, err, "database is locked")
}

func TestDriverSettings_PartTimeFactor(t *testing.T) {
	s := compensation.DefaultDriverSettings("drv-001")
	assertDecimal(t, "1", s.PartTimeFactor(), "default factor")

	s.PartTimePercentage = d("60")
	assertDecimal(t, "0.6", s.PartTimeFactor(), "part-time factor")
}
