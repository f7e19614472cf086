// Package store provides an in-memory payroll.Store for tests and dev.
package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/cao"
	"github.com/warp/ride-engine/compensation"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/payroll"
	"github.com/warp/ride-engine/ride"
	"github.com/warp/ride-engine/vacation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements payroll.Store. Entities are stored by value and handed
// out as copies, so callers never mutate stored state behind its back.
type Memory struct {
	mu   sync.Locker
	st   *state
	inTx bool
}

type state struct {
	rateRows     map[generic.RateRowID]cao.RateRow
	codes        map[generic.HoursCodeID]compensation.HoursCode
	options      map[generic.HoursOptionID]compensation.HoursOption
	drivers      map[generic.DriverID]payroll.Driver
	settings     map[generic.DriverID]compensation.DriverSettings
	contracts    map[string]vacation.Contract
	entitlements map[string]vacation.Entitlement

	records    map[generic.RideID]ride.Record
	rides      map[generic.RideID]ride.Ride
	executions map[generic.ExecutionID]ride.Execution

	weeks   map[generic.WeekApprovalID]approval.WeekApproval
	periods map[generic.PeriodApprovalID]approval.PeriodApproval

	disputes     map[generic.DisputeID]dispute.Dispute
	execDisputes map[generic.DisputeID]dispute.ExecutionDispute
}

func newState() *state {
	return &state{
		rateRows:     make(map[generic.RateRowID]cao.RateRow),
		codes:        make(map[generic.HoursCodeID]compensation.HoursCode),
		options:      make(map[generic.HoursOptionID]compensation.HoursOption),
		drivers:      make(map[generic.DriverID]payroll.Driver),
		settings:     make(map[generic.DriverID]compensation.DriverSettings),
		contracts:    make(map[string]vacation.Contract),
		entitlements: make(map[string]vacation.Entitlement),
		records:      make(map[generic.RideID]ride.Record),
		rides:        make(map[generic.RideID]ride.Ride),
		executions:   make(map[generic.ExecutionID]ride.Execution),
		weeks:        make(map[generic.WeekApprovalID]approval.WeekApproval),
		periods:      make(map[generic.PeriodApprovalID]approval.PeriodApproval),
		disputes:     make(map[generic.DisputeID]dispute.Dispute),
		execDisputes: make(map[generic.DisputeID]dispute.ExecutionDispute),
	}
}

// clone copies every table. Stored values are never mutated in place
// (comment threads are copy-on-append), so shallow map copies suffice.
func (s *state) clone() *state {
	return &state{
		rateRows:     maps.Clone(s.rateRows),
		codes:        maps.Clone(s.codes),
		options:      maps.Clone(s.options),
		drivers:      maps.Clone(s.drivers),
		settings:     maps.Clone(s.settings),
		contracts:    maps.Clone(s.contracts),
		entitlements: maps.Clone(s.entitlements),
		records:      maps.Clone(s.records),
		rides:        maps.Clone(s.rides),
		executions:   maps.Clone(s.executions),
		weeks:        maps.Clone(s.weeks),
		periods:      maps.Clone(s.periods),
		disputes:     maps.Clone(s.disputes),
		execDisputes: maps.Clone(s.execDisputes),
	}
}

func NewMemory() *Memory {
	return &Memory{mu: &sync.Mutex{}, st: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	view := &Memory{mu: nopLocker{}, st: m.st, inTx: true}
	if err := fn(view); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

// nopLocker is used by transactional views, which run under the parent's
// lock.
type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

func notFound(entity, id string) error {
	return &generic.NotFoundError{Entity: entity, ID: id}
}

func conflict(entity, id string, expected, actual int) error {
	return &generic.VersionConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) RateRows(_ context.Context) ([]cao.RateRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]cao.RateRow, 0, len(m.st.rateRows))
	for _, r := range m.st.rateRows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartDate.Before(rows[j].StartDate) })
	return rows, nil
}

func (m *Memory) PutRateRow(_ context.Context, row cao.RateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.rateRows[row.ID] = row
	return nil
}

func (m *Memory) HoursCode(_ context.Context, id generic.HoursCodeID) (compensation.HoursCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.codes[id]
	if !ok {
		return compensation.HoursCode{}, notFound("hours code", string(id))
	}
	return c, nil
}

func (m *Memory) PutHoursCode(_ context.Context, code compensation.HoursCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.codes[code.ID] = code
	return nil
}

func (m *Memory) HoursOption(_ context.Context, id generic.HoursOptionID) (compensation.HoursOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.options[id]
	if !ok {
		return compensation.HoursOption{}, notFound("hours option", string(id))
	}
	return o, nil
}

func (m *Memory) PutHoursOption(_ context.Context, option compensation.HoursOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.options[option.ID] = option
	return nil
}

func (m *Memory) PutDriver(_ context.Context, driver payroll.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.drivers[driver.ID] = driver
	return nil
}

func (m *Memory) Driver(_ context.Context, id generic.DriverID) (payroll.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.drivers[id]
	if !ok {
		return payroll.Driver{}, notFound("driver", string(id))
	}
	return d, nil
}

func (m *Memory) BirthDate(_ context.Context, driverID generic.DriverID) (generic.TimePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.drivers[driverID]
	if !ok {
		return generic.TimePoint{}, notFound("driver", string(driverID))
	}
	return d.BirthDate, nil
}

func (m *Memory) DriverSettings(_ context.Context, driverID generic.DriverID) (compensation.DriverSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.settings[driverID]
	if !ok {
		return compensation.DriverSettings{}, notFound("driver settings", string(driverID))
	}
	return s, nil
}

func (m *Memory) PutDriverSettings(_ context.Context, settings compensation.DriverSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.settings[settings.DriverID] = settings
	return nil
}

func (m *Memory) Contracts(_ context.Context, driverID generic.DriverID) ([]vacation.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vacation.Contract
	for _, c := range m.st.contracts {
		if c.DriverID == driverID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) PutContract(_ context.Context, contract vacation.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.contracts[contract.ID] = contract
	return nil
}

func (m *Memory) Entitlements(_ context.Context) ([]vacation.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]vacation.Entitlement, 0, len(m.st.entitlements))
	for _, e := range m.st.entitlements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinAge != out[j].MinAge {
			return out[i].MinAge < out[j].MinAge
		}
		return out[i].ValidFrom.Before(out[j].ValidFrom)
	})
	return out, nil
}

func (m *Memory) PutEntitlement(_ context.Context, entitlement vacation.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.entitlements[entitlement.ID] = entitlement
	return nil
}

// =============================================================================
// RIDES
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, id generic.RideID) (ride.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.records[id]
	if !ok {
		return ride.Record{}, notFound("ride record", string(id))
	}
	return r, nil
}

func (m *Memory) CreateRecord(_ context.Context, rec ride.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.records[rec.ID]; ok {
		return fmt.Errorf("ride record %s: %w", rec.ID, generic.ErrAlreadyExists)
	}
	m.st.records[rec.ID] = rec
	return nil
}

func (m *Memory) UpdateRecord(_ context.Context, rec ride.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.records[rec.ID]
	if !ok {
		return notFound("ride record", string(rec.ID))
	}
	if cur.Version != rec.Version {
		return conflict("ride record", string(rec.ID), rec.Version, cur.Version)
	}
	rec.Version++
	m.st.records[rec.ID] = rec
	return nil
}

func (m *Memory) ListRecords(_ context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ride.Record
	for _, r := range m.st.records {
		if r.DriverID == driverID && span.Contains(r.Date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetRide(_ context.Context, id generic.RideID) (ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.rides[id]
	if !ok {
		return ride.Ride{}, notFound("ride", string(id))
	}
	return r, nil
}

func (m *Memory) PutRide(_ context.Context, r ride.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.rides[r.ID] = r
	return nil
}

func (m *Memory) GetExecution(_ context.Context, id generic.ExecutionID) (ride.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.executions[id]
	if !ok {
		return ride.Execution{}, notFound("execution", string(id))
	}
	return e, nil
}

func (m *Memory) CreateExecution(_ context.Context, ex ride.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.executions[ex.ID]; ok {
		return fmt.Errorf("execution %s: %w", ex.ID, generic.ErrAlreadyExists)
	}
	m.st.executions[ex.ID] = ex
	return nil
}

func (m *Memory) UpdateExecution(_ context.Context, ex ride.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.executions[ex.ID]
	if !ok {
		return notFound("execution", string(ex.ID))
	}
	if cur.Version != ex.Version {
		return conflict("execution", string(ex.ID), ex.Version, cur.Version)
	}
	ex.Version++
	m.st.executions[ex.ID] = ex
	return nil
}

func (m *Memory) ListExecutions(_ context.Context, driverID generic.DriverID, span generic.Period) ([]ride.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ride.Execution
	for _, e := range m.st.executions {
		if e.DriverID == driverID && span.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// APPROVALS
// =============================================================================

func (m *Memory) GetWeekApproval(_ context.Context, id generic.WeekApprovalID) (*approval.WeekApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.st.weeks[id]
	if !ok {
		return nil, notFound("week approval", string(id))
	}
	return &w, nil
}

func (m *Memory) FindWeekApproval(_ context.Context, driverID generic.DriverID, week generic.WeekKey) (*approval.WeekApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.st.weeks {
		if w.DriverID == driverID && w.Week == week {
			return &w, nil
		}
	}
	return nil, notFound("week approval", fmt.Sprintf("%s/%s", driverID, week))
}

func (m *Memory) ListWeekApprovals(_ context.Context, driverID generic.DriverID, period generic.PeriodKey) ([]*approval.WeekApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*approval.WeekApproval
	for _, w := range m.st.weeks {
		w := w // per-iteration copy (Go 1.22+ loop semantics under go 1.21)
		if w.DriverID == driverID && w.Week.Period() == period {
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week.Week < out[j].Week.Week })
	return out, nil
}

func (m *Memory) CreateWeekApproval(_ context.Context, w *approval.WeekApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.st.weeks {
		if cur.ID == w.ID || (cur.DriverID == w.DriverID && cur.Week == w.Week) {
			return fmt.Errorf("week approval %s/%s: %w", w.DriverID, w.Week, generic.ErrAlreadyExists)
		}
	}
	m.st.weeks[w.ID] = *w
	return nil
}

func (m *Memory) UpdateWeekApproval(_ context.Context, w *approval.WeekApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.weeks[w.ID]
	if !ok {
		return notFound("week approval", string(w.ID))
	}
	if cur.Version != w.Version {
		return conflict("week approval", string(w.ID), w.Version, cur.Version)
	}
	next := *w
	next.Version++
	m.st.weeks[w.ID] = next
	return nil
}

func (m *Memory) GetPeriodApproval(_ context.Context, id generic.PeriodApprovalID) (*approval.PeriodApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.periods[id]
	if !ok {
		return nil, notFound("period approval", string(id))
	}
	return &p, nil
}

func (m *Memory) FindPeriodApproval(_ context.Context, driverID generic.DriverID, period generic.PeriodKey) (*approval.PeriodApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.periods {
		if p.DriverID == driverID && p.Period == period {
			return &p, nil
		}
	}
	return nil, notFound("period approval", fmt.Sprintf("%s/%s", driverID, period))
}

func (m *Memory) CreatePeriodApproval(_ context.Context, p *approval.PeriodApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.st.periods {
		if cur.ID == p.ID || (cur.DriverID == p.DriverID && cur.Period == p.Period) {
			return fmt.Errorf("period approval %s/%s: %w", p.DriverID, p.Period, generic.ErrAlreadyExists)
		}
	}
	m.st.periods[p.ID] = *p
	return nil
}

func (m *Memory) UpdatePeriodApproval(_ context.Context, p *approval.PeriodApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.periods[p.ID]
	if !ok {
		return notFound("period approval", string(p.ID))
	}
	if cur.Version != p.Version {
		return conflict("period approval", string(p.ID), p.Version, cur.Version)
	}
	next := *p
	next.Version++
	m.st.periods[p.ID] = next
	return nil
}

// =============================================================================
// DISPUTES
// =============================================================================

func (m *Memory) GetDispute(_ context.Context, id generic.DisputeID) (*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.disputes[id]
	if !ok {
		return nil, notFound("dispute", string(id))
	}
	return &d, nil
}

func (m *Memory) FindOpenDispute(_ context.Context, rideID generic.RideID) (*dispute.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.st.disputes {
		if d.RideID == rideID && d.Status.IsOpen() {
			return &d, nil
		}
	}
	return nil, notFound("open dispute for ride", string(rideID))
}

func (m *Memory) CreateDispute(_ context.Context, d *dispute.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.disputes[d.ID]; ok {
		return fmt.Errorf("dispute %s: %w", d.ID, generic.ErrAlreadyExists)
	}
	m.st.disputes[d.ID] = *d
	return nil
}

func (m *Memory) UpdateDispute(_ context.Context, d *dispute.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.disputes[d.ID]
	if !ok {
		return notFound("dispute", string(d.ID))
	}
	if cur.Version != d.Version {
		return conflict("dispute", string(d.ID), d.Version, cur.Version)
	}
	next := *d
	next.Comments = cur.Comments // the thread only grows through AddDisputeComment
	next.Version++
	m.st.disputes[d.ID] = next
	return nil
}

func (m *Memory) AddDisputeComment(_ context.Context, id generic.DisputeID, c dispute.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.disputes[id]
	if !ok {
		return notFound("dispute", string(id))
	}
	d.Comments = d.Comments.Append(c)
	m.st.disputes[id] = d
	return nil
}

func (m *Memory) GetExecutionDispute(_ context.Context, id generic.DisputeID) (*dispute.ExecutionDispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.execDisputes[id]
	if !ok {
		return nil, notFound("execution dispute", string(id))
	}
	return &d, nil
}

func (m *Memory) FindOpenExecutionDispute(_ context.Context, executionID generic.ExecutionID) (*dispute.ExecutionDispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.st.execDisputes {
		if d.ExecutionID == executionID && d.Status.IsOpen() {
			return &d, nil
		}
	}
	return nil, notFound("open dispute for execution", string(executionID))
}

func (m *Memory) CreateExecutionDispute(_ context.Context, d *dispute.ExecutionDispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.execDisputes[d.ID]; ok {
		return fmt.Errorf("execution dispute %s: %w", d.ID, generic.ErrAlreadyExists)
	}
	m.st.execDisputes[d.ID] = *d
	return nil
}

func (m *Memory) UpdateExecutionDispute(_ context.Context, d *dispute.ExecutionDispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.st.execDisputes[d.ID]
	if !ok {
		return notFound("execution dispute", string(d.ID))
	}
	if cur.Version != d.Version {
		return conflict("execution dispute", string(d.ID), d.Version, cur.Version)
	}
	next := *d
	next.Comments = cur.Comments
	next.Version++
	m.st.execDisputes[d.ID] = next
	return nil
}

func (m *Memory) AddExecutionDisputeComment(_ context.Context, id generic.DisputeID, c dispute.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.st.execDisputes[id]
	if !ok {
		return notFound("execution dispute", string(id))
	}
	d.Comments = d.Comments.Append(c)
	m.st.execDisputes[id] = d
	return nil
}

var _ payroll.Store = (*Memory)(nil)
