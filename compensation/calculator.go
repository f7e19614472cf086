/*
calculator.go - Compensation Calculator

PURPOSE:
  Resolves every reference row a ride depends on and threads the three CAO
  allowance calculators together into one Result.

FLOW:
  1. Hours code   (empty input -> configured default code; missing -> error)
  2. Hours option (optional; a given id that doesn't resolve -> error)
  3. Driver settings
  4. Rate row for the ride date
  5. Work hours  -> net hours, rest, untaxed allowance, weekend split
  6. Kilometers  <- net hours
  7. Night       <- driver wage and night eligibility
  8. ISO week and 4-week period of the date

  No default is ever substituted for a missing reference row: partial
  payroll figures are worse than an explicit block.

IDEMPOTENCE:
  Calculate is a pure function of its inputs and the reference data. It
  reads, never writes, so re-running it after an edit or a dispute
  resolution yields the same Result for the same state.
*/
package compensation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/generic"
)

var (
	ErrMissingRateRow        = generic.ErrMissingRateRow
	ErrMissingHoursCode      = generic.ErrMissingHoursCode
	ErrMissingHoursOption    = generic.ErrMissingHoursOption
	ErrMissingDriverSettings = generic.ErrMissingDriverSettings
)

// References looks up the reference rows a calculation needs. Lookups
// return an error matching generic.ErrNotFound when the row doesn't exist.
type References interface {
	cao.RateSource
	HoursCode(ctx context.Context, id generic.HoursCodeID) (HoursCode, error)
	HoursOption(ctx context.Context, id generic.HoursOptionID) (HoursOption, error)
	DriverSettings(ctx context.Context, driverID generic.DriverID) (DriverSettings, error)
}

// Calculator computes ride compensation.
type Calculator struct {
	Refs             References
	Holidays         generic.HolidayCalendar
	DefaultHoursCode generic.HoursCodeID
}

func NewCalculator(refs References, holidays generic.HolidayCalendar, defaultCode generic.HoursCodeID) *Calculator {
	if holidays == nil {
		holidays = generic.NoHolidays{}
	}
	return &Calculator{Refs: refs, Holidays: holidays, DefaultHoursCode: defaultCode}
}

// WithReferences returns a copy reading reference data from refs, used to
// calculate inside a store transaction.
func (c *Calculator) WithReferences(refs References) *Calculator {
	cp := *c
	cp.Refs = refs
	return &cp
}

// Calculate computes the Result for one ride.
func (c *Calculator) Calculate(ctx context.Context, in Inputs) (Result, error) {
	codeID := in.HoursCode
	if codeID == "" {
		codeID = c.DefaultHoursCode
	}
	code, err := c.Refs.HoursCode(ctx, codeID)
	if err != nil {
		return Result{}, missing(err, generic.RefHoursCode, string(codeID), in.Date)
	}

	var option HoursOption
	if in.HoursOption != "" {
		option, err = c.Refs.HoursOption(ctx, in.HoursOption)
		if err != nil {
			return Result{}, missing(err, generic.RefHoursOption, string(in.HoursOption), in.Date)
		}
	}

	settings, err := c.Refs.DriverSettings(ctx, in.DriverID)
	if err != nil {
		return Result{}, missing(err, generic.RefDriverSettings, string(in.DriverID), in.Date)
	}

	row, err := cao.NewProvider(c.Refs).Resolve(ctx, in.Date)
	if err != nil {
		return Result{}, err
	}

	holiday := c.Holidays.IsHoliday(in.Date)

	work := cao.CalculateWorkHours(row, cao.WorkDay{
		Date:       in.Date,
		Start:      in.Start,
		End:        in.End,
		RestTaken:  in.RestTaken,
		Correction: in.Correction,
		Kind:       code.Kind,
		Modifier:   option.Modifier,
		Holiday:    holiday,
		Consign:    code.Consignment,
		PartTime:   settings.PartTimeFactor(),
	})

	km := cao.CalculateKilometers(row, cao.KilometerDay{
		Kind:               code.Kind,
		Modifier:           option.Modifier,
		NetHours:           work.NetHours,
		ExtraKilometers:    in.ExtraKilometers,
		AllowanceEnabled:   settings.KilometerAllowanceEnabled,
		HomeWorkDistanceKm: settings.HomeWorkDistanceKm,
	})

	night := cao.CalculateNight(row, cao.NightDay{
		Kind:       code.Kind,
		Start:      in.Start,
		End:        in.End,
		Enabled:    settings.NightHoursEnabled,
		HourlyWage: settings.HourlyWage,
	})

	week := generic.WeekOf(in.Date)
	res := Result{
		DecimalHours:         work.NetHours,
		CalculatedRest:       work.CalculatedRest,
		UntaxedAllowance:     work.UntaxedAllowance,
		NightHours:           night.Hours,
		NightAllowance:       night.Allowance,
		HomeWorkKilometers:   km.HomeWorkKilometers,
		KilometerAllowance:   km.Allowance,
		ConsignmentAllowance: work.ConsignmentAllowance,
		SaturdayHours:        work.SaturdayHours,
		SundayHolidayHours:   work.SundayHolidayHours,
		SickHours:            work.SickHours,
		VacationHoursTaken:   work.VacationHours,
		VacationHoursEarned:  decimal.Zero,
		ISOYear:              week.Year,
		ISOWeek:              week.Week,
		Period:               week.Period().Number,
		WeekInPeriod:         week.WeekInPeriod(),
		RateRowID:            row.ID,
		Kind:                 code.Kind,
	}
	if in.ContainerWaiting != nil {
		exceeding := generic.Round2(generic.NonNegative(in.ContainerWaiting.Sub(row.ContainerWaitingFreeHours)))
		res.ExceedingContainerWaiting = &exceeding
	}
	return res, nil
}

// missing converts a not-found lookup into a ReferenceDataMissingError and
// passes other store errors through.
func missing(err error, kind generic.ReferenceKind, key string, date generic.TimePoint) error {
	if errors.Is(err, generic.ErrNotFound) {
		return &generic.ReferenceDataMissingError{Kind: kind, Key: key, Date: date}
	}
	return fmt.Errorf("failed to load %s %q: %w", kind, key, err)
}
