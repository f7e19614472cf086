package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/ride"
)

// =============================================================================
// RIDE COMMIT
// =============================================================================

// SaveRide validates, recomputes and stores a legacy ride record, then runs
// the approval cascade. An empty ID creates a new record; otherwise
// rec.Version must match the stored version.
func (s *Service) SaveRide(ctx context.Context, rec ride.Record) (ride.Record, error) {
	if err := rec.Validate(); err != nil {
		return ride.Record{}, err
	}

	var (
		saved  ride.Record
		change *RideChange
	)
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		saved, change, err = s.commitRecord(ctx, st, rec)
		return err
	})
	if err != nil {
		return ride.Record{}, err
	}
	s.notify(ctx, change)
	return saved, nil
}

func (s *Service) commitRecord(ctx context.Context, st Store, rec ride.Record) (ride.Record, *RideChange, error) {
	var prev *ride.Record
	if rec.ID == "" {
		rec.ID = generic.RideID(s.NewID())
		rec.Version = 0
	} else {
		cur, err := st.GetRecord(ctx, rec.ID)
		switch {
		case err == nil:
			prev = &cur
		case generic.IsNotFound(err):
			rec.Version = 0
		default:
			return ride.Record{}, nil, fmt.Errorf("failed to load ride record: %w", err)
		}
	}

	if prev != nil {
		if err := checkEdit("ride record", string(rec.ID), prev.Version, rec.Version, prev.DriverID, rec.DriverID); err != nil {
			return ride.Record{}, nil, err
		}
		if !prev.CorrectionHours.Equal(rec.CorrectionHours) {
			if err := s.guardCorrection(ctx, st, rec.ID); err != nil {
				return ride.Record{}, nil, err
			}
		}
	}

	res, err := s.calculate(ctx, st, rec.ToInputs())
	if err != nil {
		return ride.Record{}, nil, err
	}
	rec.Apply(res)

	if prev != nil && prev.Result != nil && prev.SameInputs(rec.RawInputs) && prev.Result.Equal(*rec.Result) {
		return *prev, nil, nil
	}

	week, err := s.getOrCreateWeek(ctx, st, rec.DriverID, rec.Date)
	if err != nil {
		return ride.Record{}, nil, err
	}
	rec.WeekApprovalID = week.ID

	if prev == nil {
		if err := st.CreateRecord(ctx, rec); err != nil {
			return ride.Record{}, nil, fmt.Errorf("failed to create ride record: %w", err)
		}
	} else {
		if err := st.UpdateRecord(ctx, rec); err != nil {
			return ride.Record{}, nil, fmt.Errorf("failed to update ride record: %w", err)
		}
		rec.Version++
	}

	affected := []generic.WeekApprovalID{week.ID}
	if prev != nil && prev.WeekApprovalID != "" && prev.WeekApprovalID != week.ID {
		affected = append(affected, prev.WeekApprovalID)
	}
	invalidated, err := s.cascade(ctx, st, affected)
	if err != nil {
		return ride.Record{}, nil, err
	}

	s.Logger.InfoContext(ctx, "ride record committed",
		"driver_id", rec.DriverID,
		"ride_id", rec.ID,
		"week", week.Week.String(),
		"decimal_hours", rec.Result.DecimalHours.String(),
		"invalidated", invalidated,
	)
	return rec, &RideChange{
		DriverID:    rec.DriverID,
		RideID:      string(rec.ID),
		Date:        rec.Date,
		Week:        week.Week,
		Invalidated: invalidated,
	}, nil
}

// CreateSharedRide stores a ride that drivers record executions against.
func (s *Service) CreateSharedRide(ctx context.Context, r ride.Ride) (ride.Ride, error) {
	if r.Date.IsZero() {
		return ride.Ride{}, &generic.ValidationError{Field: "date", Reason: "required"}
	}
	if r.ID == "" {
		r.ID = generic.RideID(s.NewID())
	}
	if err := s.Store.PutRide(ctx, r); err != nil {
		return ride.Ride{}, fmt.Errorf("failed to store ride: %w", err)
	}
	return r, nil
}

// SaveExecution is SaveRide for one driver's execution of a shared ride.
func (s *Service) SaveExecution(ctx context.Context, ex ride.Execution) (ride.Execution, error) {
	if err := ex.Validate(); err != nil {
		return ride.Execution{}, err
	}

	var (
		saved  ride.Execution
		change *RideChange
	)
	err := s.Store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetRide(ctx, ex.RideID); err != nil {
			return fmt.Errorf("failed to load ride %s: %w", ex.RideID, err)
		}
		var err error
		saved, change, err = s.commitExecution(ctx, st, ex)
		return err
	})
	if err != nil {
		return ride.Execution{}, err
	}
	s.notify(ctx, change)
	return saved, nil
}

func (s *Service) commitExecution(ctx context.Context, st Store, ex ride.Execution) (ride.Execution, *RideChange, error) {
	var prev *ride.Execution
	if ex.ID == "" {
		ex.ID = generic.ExecutionID(s.NewID())
		ex.Version = 0
	} else {
		cur, err := st.GetExecution(ctx, ex.ID)
		switch {
		case err == nil:
			prev = &cur
		case generic.IsNotFound(err):
			ex.Version = 0
		default:
			return ride.Execution{}, nil, fmt.Errorf("failed to load execution: %w", err)
		}
	}

	if prev != nil {
		if err := checkEdit("execution", string(ex.ID), prev.Version, ex.Version, prev.DriverID, ex.DriverID); err != nil {
			return ride.Execution{}, nil, err
		}
		if !prev.CorrectionHours.Equal(ex.CorrectionHours) {
			if err := s.guardExecutionCorrection(ctx, st, ex.ID); err != nil {
				return ride.Execution{}, nil, err
			}
		}
	}

	res, err := s.calculate(ctx, st, ex.ToInputs())
	if err != nil {
		return ride.Execution{}, nil, err
	}
	ex.Apply(res)

	if prev != nil && prev.Result != nil && prev.SameInputs(ex.RawInputs) &&
		equalWaiting(prev.ContainerWaiting, ex.ContainerWaiting) && prev.Result.Equal(*ex.Result) {
		return *prev, nil, nil
	}

	week, err := s.getOrCreateWeek(ctx, st, ex.DriverID, ex.Date)
	if err != nil {
		return ride.Execution{}, nil, err
	}
	ex.WeekApprovalID = week.ID

	if prev == nil {
		if err := st.CreateExecution(ctx, ex); err != nil {
			return ride.Execution{}, nil, fmt.Errorf("failed to create execution: %w", err)
		}
	} else {
		if err := st.UpdateExecution(ctx, ex); err != nil {
			return ride.Execution{}, nil, fmt.Errorf("failed to update execution: %w", err)
		}
		ex.Version++
	}

	affected := []generic.WeekApprovalID{week.ID}
	if prev != nil && prev.WeekApprovalID != "" && prev.WeekApprovalID != week.ID {
		affected = append(affected, prev.WeekApprovalID)
	}
	invalidated, err := s.cascade(ctx, st, affected)
	if err != nil {
		return ride.Execution{}, nil, err
	}

	s.Logger.InfoContext(ctx, "execution committed",
		"driver_id", ex.DriverID,
		"ride_id", ex.RideID,
		"execution_id", ex.ID,
		"week", week.Week.String(),
		"decimal_hours", ex.Result.DecimalHours.String(),
		"invalidated", invalidated,
	)
	return ex, &RideChange{
		DriverID:    ex.DriverID,
		RideID:      string(ex.ID),
		Date:        ex.Date,
		Week:        week.Week,
		Invalidated: invalidated,
	}, nil
}

func checkEdit(entity, id string, stored, given int, storedDriver, givenDriver generic.DriverID) error {
	if stored != given {
		return &generic.VersionConflictError{Entity: entity, ID: id, Expected: given, Actual: stored}
	}
	if storedDriver != givenDriver {
		return &generic.ValidationError{Field: "driver_id", Reason: "cannot move a ride to another driver"}
	}
	return nil
}

// guardCorrection blocks correction edits while a ride dispute is open.
func (s *Service) guardCorrection(ctx context.Context, st Store, id generic.RideID) error {
	open, err := st.FindOpenDispute(ctx, id)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to look up disputes: %w", err)
	}
	return &generic.StateError{Entity: "dispute", ID: string(open.ID), Current: string(open.Status), Action: "edit correction hours"}
}

func (s *Service) guardExecutionCorrection(ctx context.Context, st Store, id generic.ExecutionID) error {
	open, err := st.FindOpenExecutionDispute(ctx, id)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to look up disputes: %w", err)
	}
	return &generic.StateError{Entity: "execution dispute", ID: string(open.ID), Current: string(open.Status), Action: "edit correction hours"}
}

func equalWaiting(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (s *Service) notify(ctx context.Context, change *RideChange) {
	if change == nil || s.OnRideChanged == nil {
		return
	}
	s.OnRideChanged(ctx, *change)
}

// =============================================================================
// CASCADE
// =============================================================================

// cascade invalidates the given weeks and their periods where signed and
// refreshes the period totals. Reports whether anything was invalidated.
func (s *Service) cascade(ctx context.Context, st Store, weeks []generic.WeekApprovalID) (bool, error) {
	now := s.now()
	invalidated := false
	periods := make(map[generic.PeriodKey]generic.DriverID)

	for _, id := range weeks {
		w, err := st.GetWeekApproval(ctx, id)
		if err != nil {
			return false, fmt.Errorf("failed to load week approval %s: %w", id, err)
		}
		if w.Invalidate(now) {
			if err := st.UpdateWeekApproval(ctx, w); err != nil {
				return false, fmt.Errorf("failed to invalidate week approval: %w", err)
			}
			w.Version++
			invalidated = true
			s.Logger.InfoContext(ctx, "week approval invalidated",
				"driver_id", w.DriverID, "week", w.Week.String(), "status", w.Status)
		}
		periods[w.Week.Period()] = w.DriverID
	}

	for key, driverID := range periods {
		p, err := s.getOrCreatePeriod(ctx, st, driverID, key)
		if err != nil {
			return false, err
		}
		if p.Invalidate(now) {
			invalidated = true
			s.Logger.InfoContext(ctx, "period approval invalidated",
				"driver_id", p.DriverID, "period", p.Period.String(), "status", p.Status)
		}
		if err := s.refreshTotals(ctx, st, p); err != nil {
			return false, err
		}
		if err := st.UpdatePeriodApproval(ctx, p); err != nil {
			return false, fmt.Errorf("failed to update period approval: %w", err)
		}
		p.Version++
	}
	return invalidated, nil
}

// refreshTotals recomputes the cached totals of p from every computed ride
// in the period. The caller persists p.
func (s *Service) refreshTotals(ctx context.Context, st Store, p *approval.PeriodApproval) error {
	span := p.Period.Range()
	records, err := st.ListRecords(ctx, p.DriverID, span)
	if err != nil {
		return fmt.Errorf("failed to list ride records: %w", err)
	}
	executions, err := st.ListExecutions(ctx, p.DriverID, span)
	if err != nil {
		return fmt.Errorf("failed to list executions: %w", err)
	}

	hours, total := decimal.Zero, decimal.Zero
	for _, r := range records {
		if r.Result != nil {
			hours = hours.Add(r.Result.DecimalHours)
			total = total.Add(r.Result.Total())
		}
	}
	for _, e := range executions {
		if e.Result != nil {
			hours = hours.Add(e.Result.DecimalHours)
			total = total.Add(e.Result.Total())
		}
	}
	p.SetTotals(hours, total)
	return nil
}

// isConflict reports whether err is a lost race on a create.
func isConflict(err error) bool {
	return errors.Is(err, generic.ErrAlreadyExists)
}
