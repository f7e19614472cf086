package payroll

import (
	"context"

	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/ride"
	"github.com/warp/ride-engine/vacation"
)

// Driver is the slice of driver master data the core reads.
type Driver struct {
	ID        generic.DriverID
	Name      string
	BirthDate generic.TimePoint
}

// =============================================================================
// STORE - Persistence boundary of the core
// =============================================================================

// ReferenceStore holds the reference data calculations read. Lookups of a
// single row return an error matching generic.ErrNotFound when absent.
type ReferenceStore interface {
	compensation.References
	vacation.Source

	PutRateRow(ctx context.Context, row cao.RateRow) error
	PutHoursCode(ctx context.Context, code compensation.HoursCode) error
	PutHoursOption(ctx context.Context, option compensation.HoursOption) error
	Driver(ctx context.Context, id generic.DriverID) (Driver, error)
	PutDriver(ctx context.Context, driver Driver) error
	PutDriverSettings(ctx context.Context, settings compensation.DriverSettings) error
	PutContract(ctx context.Context, contract vacation.Contract) error
	PutEntitlement(ctx context.Context, entitlement vacation.Entitlement) error
}

// RideStore persists both ride record shapes. Updates are optimistic: the
// stored version must equal the given one, and is bumped on success.
type RideStore interface {
	GetRecord(ctx context.Context, id generic.RideID) (ride.Record, error)
	CreateRecord(ctx context.Context, rec ride.Record) error
	UpdateRecord(ctx context.Context, rec ride.Record) error
	ListRecords(ctx context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Record, error)

	GetRide(ctx context.Context, id generic.RideID) (ride.Ride, error)
	PutRide(ctx context.Context, r ride.Ride) error

	GetExecution(ctx context.Context, id generic.ExecutionID) (ride.Execution, error)
	CreateExecution(ctx context.Context, ex ride.Execution) error
	UpdateExecution(ctx context.Context, ex ride.Execution) error
	ListExecutions(ctx context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Execution, error)
}

// ApprovalStore persists week and period approvals. Create returns an error
// matching generic.ErrAlreadyExists when the (driver, week/period) key is
// taken.
type ApprovalStore interface {
	GetWeekApproval(ctx context.Context, id generic.WeekApprovalID) (*approval.WeekApproval, error)
	FindWeekApproval(ctx context.Context, driverID generic.DriverID, week generic.WeekKey) (*approval.WeekApproval, error)
	ListWeekApprovals(ctx context.Context, driverID generic.DriverID, period generic.PeriodKey) ([]*approval.WeekApproval, error)
	CreateWeekApproval(ctx context.Context, w *approval.WeekApproval) error
	UpdateWeekApproval(ctx context.Context, w *approval.WeekApproval) error

	GetPeriodApproval(ctx context.Context, id generic.PeriodApprovalID) (*approval.PeriodApproval, error)
	FindPeriodApproval(ctx context.Context, driverID generic.DriverID, period generic.PeriodKey) (*approval.PeriodApproval, error)
	CreatePeriodApproval(ctx context.Context, p *approval.PeriodApproval) error
	UpdatePeriodApproval(ctx context.Context, p *approval.PeriodApproval) error
}

// DisputeStore persists both dispute variants with their threads.
type DisputeStore interface {
	GetDispute(ctx context.Context, id generic.DisputeID) (*dispute.Dispute, error)
	FindOpenDispute(ctx context.Context, rideID generic.RideID) (*dispute.Dispute, error)
	CreateDispute(ctx context.Context, d *dispute.Dispute) error
	UpdateDispute(ctx context.Context, d *dispute.Dispute) error
	AddDisputeComment(ctx context.Context, id generic.DisputeID, c dispute.Comment) error

	GetExecutionDispute(ctx context.Context, id generic.DisputeID) (*dispute.ExecutionDispute, error)
	FindOpenExecutionDispute(ctx context.Context, executionID generic.ExecutionID) (*dispute.ExecutionDispute, error)
	CreateExecutionDispute(ctx context.Context, d *dispute.ExecutionDispute) error
	UpdateExecutionDispute(ctx context.Context, d *dispute.ExecutionDispute) error
	AddExecutionDisputeComment(ctx context.Context, id generic.DisputeID, c dispute.Comment) error
}

// Store is the full persistence surface of the core.
type Store interface {
	ReferenceStore
	RideStore
	ApprovalStore
	DisputeStore

	// WithTx runs fn in one unit of work: all writes made through the
	// Store passed to fn commit together or not at all. Calling WithTx on
	// that Store joins the outer unit of work.
	WithTx(ctx context.Context, fn func(Store) error) error
}
