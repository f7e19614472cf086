package payroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// DRIVER MASTER DATA
// =============================================================================

// DriverUpdate sets a driver's master data and calculation settings. Nil
// fields keep the stored value, or the onboarding default for a new driver.
type DriverUpdate struct {
	ID                        generic.DriverID
	Name                      *string
	BirthDate                 *generic.TimePoint
	HourlyWage                *decimal.Decimal
	NightHoursEnabled         *bool
	KilometerAllowanceEnabled *bool
	HomeWorkDistanceKm        *decimal.Decimal
	PartTimePercentage        *decimal.Decimal
}

// Validate checks the fields that are set.
func (u DriverUpdate) Validate() error {
	if u.ID == "" {
		return &generic.ValidationError{Field: "driver_id", Reason: "required"}
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return &generic.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if u.HourlyWage != nil && u.HourlyWage.IsNegative() {
		return &generic.ValidationError{Field: "hourly_wage", Reason: "negative amount"}
	}
	if u.HomeWorkDistanceKm != nil && u.HomeWorkDistanceKm.IsNegative() {
		return &generic.ValidationError{Field: "home_work_distance_km", Reason: "negative distance"}
	}
	if p := u.PartTimePercentage; p != nil && (p.IsNegative() || p.GreaterThan(generic.Hundred)) {
		return &generic.ValidationError{Field: "part_time_percentage", Reason: "must be between 0 and 100"}
	}
	return nil
}

func (u DriverUpdate) apply(d *Driver, s *compensation.DriverSettings) {
	if u.Name != nil {
		d.Name = strings.TrimSpace(*u.Name)
	}
	if u.BirthDate != nil {
		d.BirthDate = *u.BirthDate
	}
	if u.HourlyWage != nil {
		s.HourlyWage = *u.HourlyWage
	}
	if u.NightHoursEnabled != nil {
		s.NightHoursEnabled = *u.NightHoursEnabled
	}
	if u.KilometerAllowanceEnabled != nil {
		s.KilometerAllowanceEnabled = *u.KilometerAllowanceEnabled
	}
	if u.HomeWorkDistanceKm != nil {
		s.HomeWorkDistanceKm = *u.HomeWorkDistanceKm
	}
	if u.PartTimePercentage != nil {
		s.PartTimePercentage = *u.PartTimePercentage
	}
}

// PutDriver creates or edits a driver, merging the update into what is
// stored. A new driver needs a birth date.
func (s *Service) PutDriver(ctx context.Context, u DriverUpdate) (Driver, compensation.DriverSettings, error) {
	if err := u.Validate(); err != nil {
		return Driver{}, compensation.DriverSettings{}, err
	}

	var (
		driver   Driver
		settings compensation.DriverSettings
	)
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		driver, err = st.Driver(ctx, u.ID)
		switch {
		case generic.IsNotFound(err):
			driver = Driver{ID: u.ID}
		case err != nil:
			return fmt.Errorf("failed to load driver: %w", err)
		}
		settings, err = st.DriverSettings(ctx, u.ID)
		switch {
		case generic.IsNotFound(err):
			settings = compensation.DefaultDriverSettings(u.ID)
		case err != nil:
			return fmt.Errorf("failed to load driver settings: %w", err)
		}

		u.apply(&driver, &settings)
		if driver.BirthDate.IsZero() {
			return &generic.ValidationError{Field: "birth_date", Reason: "required"}
		}

		if err := st.PutDriver(ctx, driver); err != nil {
			return err
		}
		return st.PutDriverSettings(ctx, settings)
	})
	if err != nil {
		return Driver{}, compensation.DriverSettings{}, err
	}
	s.Logger.InfoContext(ctx, "driver saved", "driver_id", driver.ID)
	return driver, settings, nil
}
