package ride

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/compensation"
)

// =============================================================================
// ADAPTERS - Map each record shape onto the calculator 1:1
// =============================================================================

func (in RawInputs) inputs() compensation.Inputs {
	return compensation.Inputs{
		Date:            in.Date,
		Start:           in.Start,
		End:             in.End,
		RestTaken:       in.RestTaken,
		Correction:      in.CorrectionHours,
		ExtraKilometers: in.ExtraKilometers,
		HoursCode:       in.HoursCode,
		HoursOption:     in.HoursOption,
	}
}

// ToInputs maps a legacy record onto calculator inputs. Legacy records never
// carry container waiting time.
func (r Record) ToInputs() compensation.Inputs {
	in := r.RawInputs.inputs()
	in.DriverID = r.DriverID
	return in
}

// Apply stores a calculation result on the record.
func (r *Record) Apply(res compensation.Result) {
	res.ExceedingContainerWaiting = nil
	r.Result = &res
}

// ToInputs maps an execution onto calculator inputs.
func (e Execution) ToInputs() compensation.Inputs {
	in := e.RawInputs.inputs()
	in.DriverID = e.DriverID
	if e.ContainerWaiting != nil {
		w := *e.ContainerWaiting
		in.ContainerWaiting = &w
	}
	return in
}

// Apply stores a calculation result on the execution.
func (e *Execution) Apply(res compensation.Result) {
	e.Result = &res
}

// SameInputs reports whether two raw input sets are identical, so callers can
// tell an edit from a re-save.
func (in RawInputs) SameInputs(o RawInputs) bool {
	return in.Date.Equal(o.Date) &&
		in.Start.Equal(o.Start) &&
		in.End.Equal(o.End) &&
		in.RestTaken.Equal(o.RestTaken) &&
		equalPtr(in.OdometerStart, o.OdometerStart) &&
		equalPtr(in.OdometerEnd, o.OdometerEnd) &&
		in.ExtraKilometers.Equal(o.ExtraKilometers) &&
		in.HoursCode == o.HoursCode &&
		in.HoursOption == o.HoursOption &&
		in.CorrectionHours.Equal(o.CorrectionHours)
}

func equalPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
