/*
Package ride defines the two shapes a driver's work day is recorded in.

SHAPES:
  Record:    legacy single-driver ride record
  Execution: one driver's execution of a shared Ride (newer shape)

  Both carry the same raw inputs and the same computed-field contract. The
  calculator is written once against compensation.Inputs/Result; each shape
  has an explicit adapter at its boundary (adapter.go).

COMPUTED FIELDS:
  Result is nil until the calculator has run for the current inputs. A nil
  result is "not yet computed", distinct from a result of zero, and is stored
  as NULL columns.
*/
package ride

import (
	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/generic"
)

// RawInputs are the hand-entered fields of a work day.
type RawInputs struct {
	Date            generic.TimePoint
	Start           decimal.Decimal // clock hours
	End             decimal.Decimal // clock hours
	RestTaken       decimal.Decimal
	OdometerStart   *decimal.Decimal
	OdometerEnd     *decimal.Decimal
	ExtraKilometers decimal.Decimal
	HoursCode       generic.HoursCodeID
	HoursOption     generic.HoursOptionID
	CorrectionHours decimal.Decimal
}

// Kilometers returns the odometer distance, zero when not recorded.
func (in RawInputs) Kilometers() decimal.Decimal {
	if in.OdometerStart == nil || in.OdometerEnd == nil {
		return decimal.Zero
	}
	return in.OdometerEnd.Sub(*in.OdometerStart)
}

// Record is the legacy single-driver ride record.
type Record struct {
	ID       generic.RideID
	DriverID generic.DriverID
	RawInputs

	Result *compensation.Result

	WeekApprovalID generic.WeekApprovalID
	Version        int
}

// Ride is a shared ride that one or more drivers execute.
type Ride struct {
	ID          generic.RideID
	Date        generic.TimePoint
	Description string
}

// Execution is one driver's execution of a shared ride.
type Execution struct {
	ID       generic.ExecutionID
	RideID   generic.RideID
	DriverID generic.DriverID
	RawInputs

	// Waiting time at a container terminal, only recorded on executions.
	ContainerWaiting *decimal.Decimal

	Result *compensation.Result

	WeekApprovalID generic.WeekApprovalID
	Version        int
}
