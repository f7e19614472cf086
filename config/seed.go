package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/vacation"
	"gopkg.in/yaml.v3"
)

//go:embed default_seed.yaml
var defaultSeed []byte

// =============================================================================
// SEED - Reference data loaded at startup
// =============================================================================

// Seed is parsed reference data, ready to be written to a store.
type Seed struct {
	RateRows     []cao.RateRow
	HoursCodes   []compensation.HoursCode
	HoursOptions []compensation.HoursOption
	Entitlements []vacation.Entitlement
	Holidays     generic.HolidayList
}

// Quantities are strings in the file so they reach decimal.Decimal without
// passing through float64. Clock hours are "HH:MM".
type seedFile struct {
	RateRows []struct {
		ID                        string          `yaml:"id"`
		StartDate                 string          `yaml:"start_date"`
		EndDate                   string          `yaml:"end_date"`
		OneDayMinimumHours        string          `yaml:"one_day_minimum_hours"`
		OneDayLongHours           string          `yaml:"one_day_long_hours"`
		OneDayAllowance           string          `yaml:"one_day_allowance"`
		OneDayLongAllowance       string          `yaml:"one_day_long_allowance"`
		OneDayEveningSupplement   string          `yaml:"one_day_evening_supplement"`
		EveningDepartureBefore    string          `yaml:"evening_departure_before"`
		EveningReturnAfter        string          `yaml:"evening_return_after"`
		DepartureHourlyAllowance  string          `yaml:"departure_hourly_allowance"`
		IntermediateDayAllowance  string          `yaml:"intermediate_day_allowance"`
		ArrivalHourlyAllowance    string          `yaml:"arrival_hourly_allowance"`
		NightAllowanceRate        string          `yaml:"night_allowance_rate"`
		NightStart                string          `yaml:"night_start"`
		NightEnd                  string          `yaml:"night_end"`
		NightWholeHours           bool            `yaml:"night_whole_hours"`
		CommuteMinimumKm          string          `yaml:"commute_minimum_km"`
		CommuteMaximumKm          string          `yaml:"commute_maximum_km"`
		KilometerRate             string          `yaml:"kilometer_rate"`
		ConsignmentAllowance      string          `yaml:"consignment_allowance"`
		ConsignmentStart          string          `yaml:"consignment_start"`
		ConsignmentEnd            string          `yaml:"consignment_end"`
		ContainerWaitingFreeHours string          `yaml:"container_waiting_free_hours"`
		Breaks                    []seedBreakRule `yaml:"breaks"`
	} `yaml:"rate_rows"`

	HoursCodes []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Kind        string `yaml:"kind"`
		Consignment bool   `yaml:"consignment"`
	} `yaml:"hours_codes"`

	HoursOptions []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Modifier string `yaml:"modifier"`
	} `yaml:"hours_options"`

	Entitlements []struct {
		ID        string `yaml:"id"`
		MinAge    int    `yaml:"min_age"`
		MaxAge    *int   `yaml:"max_age"`
		Days      string `yaml:"days"`
		ValidFrom string `yaml:"valid_from"`
		ValidTo   string `yaml:"valid_to"`
	} `yaml:"entitlements"`

	Holidays []struct {
		Date      string `yaml:"date"`
		Name      string `yaml:"name"`
		Recurring bool   `yaml:"recurring"`
	} `yaml:"holidays"`
}

type seedBreakRule struct {
	After string `yaml:"after"`
	Break string `yaml:"break"`
}

// DefaultSeed returns the built-in CAO reference data.
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads a YAML seed file. An empty path yields the default seed.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates a YAML seed.
func ParseSeed(data []byte) (*Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	p := &parser{}
	seed := &Seed{}

	for i, r := range f.RateRows {
		p.at = fmt.Sprintf("rate_rows[%d]", i)
		row := cao.RateRow{
			ID:                        generic.RateRowID(r.ID),
			StartDate:                 p.date("start_date", r.StartDate),
			EndDate:                   p.optionalDate("end_date", r.EndDate),
			OneDayMinimumHours:        p.decimal("one_day_minimum_hours", r.OneDayMinimumHours),
			OneDayLongHours:           p.decimal("one_day_long_hours", r.OneDayLongHours),
			OneDayAllowance:           p.decimal("one_day_allowance", r.OneDayAllowance),
			OneDayLongAllowance:       p.decimal("one_day_long_allowance", r.OneDayLongAllowance),
			OneDayEveningSupplement:   p.decimal("one_day_evening_supplement", r.OneDayEveningSupplement),
			EveningDepartureBefore:    p.clock("evening_departure_before", r.EveningDepartureBefore),
			EveningReturnAfter:        p.clock("evening_return_after", r.EveningReturnAfter),
			DepartureHourlyAllowance:  p.decimal("departure_hourly_allowance", r.DepartureHourlyAllowance),
			IntermediateDayAllowance:  p.decimal("intermediate_day_allowance", r.IntermediateDayAllowance),
			ArrivalHourlyAllowance:    p.decimal("arrival_hourly_allowance", r.ArrivalHourlyAllowance),
			NightAllowanceRate:        p.decimal("night_allowance_rate", r.NightAllowanceRate),
			NightStart:                p.clock("night_start", r.NightStart),
			NightEnd:                  p.clock("night_end", r.NightEnd),
			NightWholeHours:           r.NightWholeHours,
			CommuteMinimumKm:          p.decimal("commute_minimum_km", r.CommuteMinimumKm),
			CommuteMaximumKm:          p.decimal("commute_maximum_km", r.CommuteMaximumKm),
			KilometerRate:             p.decimal("kilometer_rate", r.KilometerRate),
			ConsignmentAllowance:      p.decimal("consignment_allowance", r.ConsignmentAllowance),
			ConsignmentStart:          p.clock("consignment_start", r.ConsignmentStart),
			ConsignmentEnd:            p.clock("consignment_end", r.ConsignmentEnd),
			ContainerWaitingFreeHours: p.decimal("container_waiting_free_hours", r.ContainerWaitingFreeHours),
			BreakSchedule:             cao.DefaultBreakSchedule(),
		}
		if len(r.Breaks) > 0 {
			row.BreakSchedule = nil
			for _, b := range r.Breaks {
				row.BreakSchedule = append(row.BreakSchedule, cao.BreakRule{
					After: p.decimal("breaks.after", b.After),
					Break: p.decimal("breaks.break", b.Break),
				})
			}
		}
		if r.ID == "" {
			p.fail("id", "required")
		}
		seed.RateRows = append(seed.RateRows, row)
	}

	for i, c := range f.HoursCodes {
		p.at = fmt.Sprintf("hours_codes[%d]", i)
		kind := cao.DayKind(c.Kind)
		if !kind.Valid() {
			p.fail("kind", fmt.Sprintf("unknown day kind %q", c.Kind))
		}
		if c.ID == "" {
			p.fail("id", "required")
		}
		seed.HoursCodes = append(seed.HoursCodes, compensation.HoursCode{
			ID:          generic.HoursCodeID(c.ID),
			Name:        c.Name,
			Kind:        kind,
			Consignment: c.Consignment,
		})
	}

	for i, o := range f.HoursOptions {
		p.at = fmt.Sprintf("hours_options[%d]", i)
		mod := cao.Modifier(o.Modifier)
		if !mod.Valid() {
			p.fail("modifier", fmt.Sprintf("unknown modifier %q", o.Modifier))
		}
		if o.ID == "" {
			p.fail("id", "required")
		}
		seed.HoursOptions = append(seed.HoursOptions, compensation.HoursOption{
			ID:       generic.HoursOptionID(o.ID),
			Name:     o.Name,
			Modifier: mod,
		})
	}

	for i, e := range f.Entitlements {
		p.at = fmt.Sprintf("entitlements[%d]", i)
		seed.Entitlements = append(seed.Entitlements, vacation.Entitlement{
			ID:        e.ID,
			MinAge:    e.MinAge,
			MaxAge:    e.MaxAge,
			Days:      p.decimal("days", e.Days),
			ValidFrom: p.date("valid_from", e.ValidFrom),
			ValidTo:   p.optionalDate("valid_to", e.ValidTo),
		})
	}

	for i, h := range f.Holidays {
		p.at = fmt.Sprintf("holidays[%d]", i)
		date := p.date("date", h.Date)
		seed.Holidays = append(seed.Holidays, generic.Holiday{
			ID:        date.String(),
			Date:      date,
			Name:      h.Name,
			Recurring: h.Recurring,
		})
	}

	if p.err != nil {
		return nil, p.err
	}
	return seed, nil
}

// Apply writes the seed's reference data to store. Holidays are not stored;
// they feed payroll.Config.
func (s *Seed) Apply(ctx context.Context, store payroll.ReferenceStore) error {
	for _, row := range s.RateRows {
		if err := store.PutRateRow(ctx, row); err != nil {
			return fmt.Errorf("seed rate row %s: %w", row.ID, err)
		}
	}
	for _, code := range s.HoursCodes {
		if err := store.PutHoursCode(ctx, code); err != nil {
			return fmt.Errorf("seed hours code %s: %w", code.ID, err)
		}
	}
	for _, option := range s.HoursOptions {
		if err := store.PutHoursOption(ctx, option); err != nil {
			return fmt.Errorf("seed hours option %s: %w", option.ID, err)
		}
	}
	for _, e := range s.Entitlements {
		if err := store.PutEntitlement(ctx, e); err != nil {
			return fmt.Errorf("seed entitlement %s: %w", e.ID, err)
		}
	}
	return nil
}

// parser keeps the first error so field conversions can be written inline.
type parser struct {
	at  string
	err error
}

func (p *parser) fail(field, reason string) {
	if p.err == nil {
		p.err = &generic.ValidationError{Field: p.at + "." + field, Reason: reason}
	}
}

func (p *parser) decimal(field, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.fail(field, fmt.Sprintf("not a number: %q", s))
	}
	return d
}

func (p *parser) clock(field, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := generic.ParseClock(s)
	if err != nil {
		p.fail(field, err.Error())
	}
	return d
}

func (p *parser) date(field, s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		p.fail(field, fmt.Sprintf("not a date: %q", s))
	}
	return tp
}

func (p *parser) optionalDate(field, s string) *generic.TimePoint {
	if s == "" {
		return nil
	}
	tp := p.date(field, s)
	return &tp
}
