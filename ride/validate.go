package ride

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/generic"
)

// Validate rejects malformed raw inputs before any calculator runs.
func (in RawInputs) Validate() error {
	if in.Date.IsZero() {
		return &generic.ValidationError{Field: "date", Reason: "required"}
	}
	if in.Start.IsNegative() || in.Start.GreaterThan(generic.TwentyFour) {
		return &generic.ValidationError{Field: "start", Reason: "must be between 00:00 and 24:00"}
	}
	if in.End.IsNegative() || in.End.GreaterThan(generic.TwentyFour) {
		return &generic.ValidationError{Field: "end", Reason: "must be between 00:00 and 24:00"}
	}
	if in.End.LessThan(in.Start) {
		return &generic.ValidationError{Field: "end", Reason: "before start"}
	}
	if in.RestTaken.IsNegative() {
		return &generic.ValidationError{Field: "rest", Reason: "negative hours"}
	}
	if in.RestTaken.GreaterThan(in.End.Sub(in.Start)) {
		return &generic.ValidationError{Field: "rest", Reason: "longer than the shift"}
	}
	if in.ExtraKilometers.IsNegative() {
		return &generic.ValidationError{Field: "extra_kilometers", Reason: "negative distance"}
	}
	if in.Kilometers().IsNegative() {
		return &generic.ValidationError{Field: "odometer", Reason: "end before start"}
	}
	return nil
}

// Validate checks the execution's raw inputs and waiting time.
func (e Execution) Validate() error {
	if e.DriverID == "" {
		return &generic.ValidationError{Field: "driver_id", Reason: "required"}
	}
	if e.RideID == "" {
		return &generic.ValidationError{Field: "ride_id", Reason: "required"}
	}
	if e.ContainerWaiting != nil && e.ContainerWaiting.LessThan(decimal.Zero) {
		return &generic.ValidationError{Field: "container_waiting", Reason: "negative hours"}
	}
	return e.RawInputs.Validate()
}

// Validate checks the record's raw inputs.
func (r Record) Validate() error {
	if r.DriverID == "" {
		return &generic.ValidationError{Field: "driver_id", Reason: "required"}
	}
	return r.RawInputs.Validate()
}
