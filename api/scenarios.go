/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the store with drivers and rides that show specific features.
  Reference data (rate rows, hours codes) must already be seeded; cmd/server
  does that at startup.

AVAILABLE SCENARIOS:
  driver-week:   One driver, a full single-day work week in June 2024
  night-shift:   Late shifts for a driver with night hours enabled
  shared-ride:   A shared ride executed by two drivers, with container waiting
  open-dispute:  driver-week plus an admin correction awaiting the driver

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "driver-week"}

NOTE:
  Scenarios add data, they never reset. Loading twice books the rides twice.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/ride"
	"github.com/warp/ride-engine/vacation"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "driver-week",
		Name:        "Driver Week",
		Description: "Five single-day shifts with kilometer allowance, week allowed for signing",
	},
	{
		ID:          "night-shift",
		Name:        "Night Shift",
		Description: "Late shifts paying the night allowance",
	},
	{
		ID:          "shared-ride",
		Name:        "Shared Ride",
		Description: "Two drivers on one ride, one with exceeding container waiting",
	},
	{
		ID:          "open-dispute",
		Name:        "Open Dispute",
		Description: "Driver week with an admin correction of +0.5h awaiting the driver",
	},
}

var scenarioAdmin = generic.Actor{ID: "admin-demo", Role: generic.RoleAdmin, Context: "scenario"}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "driver-week":
		_, err = h.loadDriverWeekScenario(ctx)
	case "night-shift":
		err = h.loadNightShiftScenario(ctx)
	case "shared-ride":
		err = h.loadSharedRideScenario(ctx)
	case "open-dispute":
		err = h.loadOpenDisputeScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadDriverWeekScenario(ctx context.Context) ([]ride.Record, error) {
	driverID := generic.DriverID("drv-001")
	if err := h.putDemoDriver(ctx, driverID, "Jan de Vries", "1985-03-14", func(s *compensation.DriverSettings) {
		s.KilometerAllowanceEnabled = true
		s.HomeWorkDistanceKm = decimal.NewFromInt(25)
	}); err != nil {
		return nil, err
	}

	var saved []ride.Record
	monday := generic.NewTimePoint(2024, 6, 10)
	for i := 0; i < 5; i++ {
		rec, err := h.Service.SaveRide(ctx, ride.Record{
			DriverID:  driverID,
			RawInputs: demoInputs(monday.AddDays(i), "06:00", "18:00", "00:45", "normal"),
		})
		if err != nil {
			return nil, fmt.Errorf("ride %d: %w", i+1, err)
		}
		saved = append(saved, rec)
	}

	week, err := h.Service.GetOrCreateWeekApproval(ctx, driverID, monday)
	if err != nil {
		return nil, err
	}
	if _, err := h.Service.AllowWeek(ctx, week.ID, scenarioAdmin); err != nil {
		return nil, err
	}
	return saved, nil
}

func (h *Handler) loadNightShiftScenario(ctx context.Context) error {
	driverID := generic.DriverID("drv-002")
	if err := h.putDemoDriver(ctx, driverID, "Fatima El Amrani", "1990-11-02", func(s *compensation.DriverSettings) {
		s.NightHoursEnabled = true
	}); err != nil {
		return err
	}

	monday := generic.NewTimePoint(2024, 6, 17)
	for i := 0; i < 3; i++ {
		if _, err := h.Service.SaveRide(ctx, ride.Record{
			DriverID:  driverID,
			RawInputs: demoInputs(monday.AddDays(i), "14:00", "23:30", "00:30", "normal"),
		}); err != nil {
			return fmt.Errorf("ride %d: %w", i+1, err)
		}
	}
	return nil
}

func (h *Handler) loadSharedRideScenario(ctx context.Context) error {
	date := generic.NewTimePoint(2024, 6, 12)
	shared, err := h.Service.CreateSharedRide(ctx, ride.Ride{Date: date, Description: "Rotterdam - Venlo container run"})
	if err != nil {
		return err
	}

	drivers := []struct {
		id, name, birth string
		waiting         string
	}{
		{"drv-001", "Jan de Vries", "1985-03-14", "2.5"},
		{"drv-003", "Pieter Bakker", "1962-07-30", "0.5"},
	}
	for _, d := range drivers {
		if err := h.putDemoDriver(ctx, generic.DriverID(d.id), d.name, d.birth, nil); err != nil {
			return err
		}
		waiting := generic.MustParseDecimal(d.waiting)
		if _, err := h.Service.SaveExecution(ctx, ride.Execution{
			RideID:           shared.ID,
			DriverID:         generic.DriverID(d.id),
			RawInputs:        demoInputs(date, "05:30", "16:00", "00:45", "normal"),
			ContainerWaiting: &waiting,
		}); err != nil {
			return fmt.Errorf("execution for %s: %w", d.id, err)
		}
	}
	return nil
}

func (h *Handler) loadOpenDisputeScenario(ctx context.Context) error {
	rides, err := h.loadDriverWeekScenario(ctx)
	if err != nil {
		return err
	}
	_, err = h.Service.OpenDispute(ctx, rides[0].ID, scenarioAdmin, generic.MustParseDecimal("0.5"), "Loading time at the depot not booked")
	return err
}

// putDemoDriver stores a driver with default settings adjusted by tweak and
// an ongoing contract from 2020.
func (h *Handler) putDemoDriver(ctx context.Context, id generic.DriverID, name, birth string, tweak func(*compensation.DriverSettings)) error {
	birthDate, err := generic.ParseDate(birth)
	if err != nil {
		return err
	}
	store := h.Service.Store
	if err := store.PutDriver(ctx, payroll.Driver{ID: id, Name: name, BirthDate: birthDate}); err != nil {
		return err
	}

	settings := compensation.DefaultDriverSettings(id)
	settings.HourlyWage = generic.MustParseDecimal("17.85")
	if tweak != nil {
		tweak(&settings)
	}
	if err := store.PutDriverSettings(ctx, settings); err != nil {
		return err
	}
	return store.PutContract(ctx, vacation.Contract{
		ID:        "contract-" + string(id),
		DriverID:  id,
		StartDate: generic.NewTimePoint(2020, 1, 1),
	})
}

func demoInputs(date generic.TimePoint, start, end, rest, code string) ride.RawInputs {
	return ride.RawInputs{
		Date:      date,
		Start:     generic.MustClock(start),
		End:       generic.MustClock(end),
		RestTaken: generic.MustClock(rest),
		HoursCode: generic.HoursCodeID(code),
	}
}
