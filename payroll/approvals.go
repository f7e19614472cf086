package payroll

import (
	"context"
	"fmt"

	"github.com/warp/ride-engine/approval"
	"github.com/warp/ride-engine/generic"
	"github.com/warp/ride-engine/ride"
)

// =============================================================================
// LAZY CREATION
// =============================================================================

// GetOrCreateWeekApproval returns the approval of the week containing date,
// creating it (and its period) on first reference.
func (s *Service) GetOrCreateWeekApproval(ctx context.Context, driverID generic.DriverID, date generic.TimePoint) (*approval.WeekApproval, error) {
	var w *approval.WeekApproval
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		w, err = s.getOrCreateWeek(ctx, st, driverID, date)
		return err
	})
	return w, err
}

// GetOrCreatePeriodApproval returns the approval of the period containing
// date, creating it on first reference.
func (s *Service) GetOrCreatePeriodApproval(ctx context.Context, driverID generic.DriverID, date generic.TimePoint) (*approval.PeriodApproval, error) {
	var p *approval.PeriodApproval
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		p, err = s.getOrCreatePeriod(ctx, st, driverID, generic.PeriodOf(date))
		return err
	})
	return p, err
}

func (s *Service) getOrCreateWeek(ctx context.Context, st Store, driverID generic.DriverID, date generic.TimePoint) (*approval.WeekApproval, error) {
	if driverID == "" {
		return nil, &generic.ValidationError{Field: "driver_id", Reason: "required"}
	}
	key := generic.WeekOf(date)
	w, err := st.FindWeekApproval(ctx, driverID, key)
	if err == nil {
		return w, nil
	}
	if !generic.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up week approval: %w", err)
	}

	w = approval.NewWeekApproval(generic.WeekApprovalID(s.NewID()), driverID, date, s.now())
	switch err := st.CreateWeekApproval(ctx, w); {
	case err == nil:
		s.Logger.InfoContext(ctx, "week approval created", "driver_id", driverID, "week", key.String(), "status", w.Status)
	case isConflict(err):
		if w, err = st.FindWeekApproval(ctx, driverID, key); err != nil {
			return nil, fmt.Errorf("failed to re-fetch week approval: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to create week approval: %w", err)
	}

	// The winner of a create race may not have booked the period yet.
	if _, err := s.getOrCreatePeriod(ctx, st, driverID, key.Period()); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) getOrCreatePeriod(ctx context.Context, st Store, driverID generic.DriverID, key generic.PeriodKey) (*approval.PeriodApproval, error) {
	p, err := st.FindPeriodApproval(ctx, driverID, key)
	if err == nil {
		return p, nil
	}
	if !generic.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up period approval: %w", err)
	}

	p = approval.NewPeriodApproval(generic.PeriodApprovalID(s.NewID()), driverID, key.Range().Start, s.now())
	if err := st.CreatePeriodApproval(ctx, p); err != nil {
		if !isConflict(err) {
			return nil, fmt.Errorf("failed to create period approval: %w", err)
		}
		if p, err = st.FindPeriodApproval(ctx, driverID, key); err != nil {
			return nil, fmt.Errorf("failed to re-fetch period approval: %w", err)
		}
		return p, nil
	}
	s.Logger.InfoContext(ctx, "period approval created", "driver_id", driverID, "period", key.String(), "status", p.Status)
	return p, nil
}

// =============================================================================
// WEEK TRANSITIONS
// =============================================================================

// AllowWeek releases a week to its driver for signing. Admin only.
func (s *Service) AllowWeek(ctx context.Context, id generic.WeekApprovalID, actor generic.Actor) (*approval.WeekApproval, error) {
	return s.transitionWeek(ctx, id, "allowed", func(w *approval.WeekApproval) error {
		return w.Allow(actor, s.now())
	})
}

// SignWeek is the driver's signature on a week.
func (s *Service) SignWeek(ctx context.Context, id generic.WeekApprovalID, actor generic.Actor) (*approval.WeekApproval, error) {
	return s.transitionWeek(ctx, id, "signed", func(w *approval.WeekApproval) error {
		return w.Sign(actor, s.now())
	})
}

func (s *Service) transitionWeek(ctx context.Context, id generic.WeekApprovalID, verb string, apply func(*approval.WeekApproval) error) (*approval.WeekApproval, error) {
	var w *approval.WeekApproval
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if w, err = st.GetWeekApproval(ctx, id); err != nil {
			return err
		}
		if err := apply(w); err != nil {
			return err
		}
		if err := st.UpdateWeekApproval(ctx, w); err != nil {
			return fmt.Errorf("failed to update week approval: %w", err)
		}
		w.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "week approval "+verb, "driver_id", w.DriverID, "week", w.Week.String(), "status", w.Status)
	return w, nil
}

// GetWeekApproval loads one week approval.
func (s *Service) GetWeekApproval(ctx context.Context, id generic.WeekApprovalID) (*approval.WeekApproval, error) {
	return s.Store.GetWeekApproval(ctx, id)
}

// ListWeekApprovals returns the driver's week approvals inside a period.
func (s *Service) ListWeekApprovals(ctx context.Context, driverID generic.DriverID, period generic.PeriodKey) ([]*approval.WeekApproval, error) {
	return s.Store.ListWeekApprovals(ctx, driverID, period)
}

// =============================================================================
// PERIOD TRANSITIONS
// =============================================================================

// SignPeriod applies the driver's or admin's signature depending on actor.
// The driver can only sign once every week of the period is signed.
func (s *Service) SignPeriod(ctx context.Context, id generic.PeriodApprovalID, actor generic.Actor) (*approval.PeriodApproval, error) {
	var p *approval.PeriodApproval
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if p, err = st.GetPeriodApproval(ctx, id); err != nil {
			return err
		}
		weeks, err := st.ListWeekApprovals(ctx, p.DriverID, p.Period)
		if err != nil {
			return fmt.Errorf("failed to list week approvals: %w", err)
		}
		if err := p.Sign(actor, weeks, s.now()); err != nil {
			return err
		}
		if err := s.refreshTotals(ctx, st, p); err != nil {
			return err
		}
		if err := st.UpdatePeriodApproval(ctx, p); err != nil {
			return fmt.Errorf("failed to update period approval: %w", err)
		}
		p.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "period approval signed",
		"driver_id", p.DriverID,
		"period", p.Period.String(),
		"status", p.Status,
		"signed_by", actor.String(),
	)
	return p, nil
}

// PeriodReadiness derives whether the period can be signed.
func (s *Service) PeriodReadiness(ctx context.Context, id generic.PeriodApprovalID) (approval.Readiness, error) {
	p, err := s.Store.GetPeriodApproval(ctx, id)
	if err != nil {
		return "", err
	}
	weeks, err := s.Store.ListWeekApprovals(ctx, p.DriverID, p.Period)
	if err != nil {
		return "", fmt.Errorf("failed to list week approvals: %w", err)
	}
	return p.Readiness(weeks), nil
}

// RefreshPeriodTotals recomputes and stores the cached totals.
func (s *Service) RefreshPeriodTotals(ctx context.Context, id generic.PeriodApprovalID) (*approval.PeriodApproval, error) {
	var p *approval.PeriodApproval
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if p, err = st.GetPeriodApproval(ctx, id); err != nil {
			return err
		}
		if err := s.refreshTotals(ctx, st, p); err != nil {
			return err
		}
		if err := st.UpdatePeriodApproval(ctx, p); err != nil {
			return fmt.Errorf("failed to update period approval: %w", err)
		}
		p.Version++
		return nil
	})
	return p, err
}

// GetPeriodApproval loads one period approval.
func (s *Service) GetPeriodApproval(ctx context.Context, id generic.PeriodApprovalID) (*approval.PeriodApproval, error) {
	return s.Store.GetPeriodApproval(ctx, id)
}

// PeriodRides returns the computed rides of a period for reporting.
func (s *Service) PeriodRides(ctx context.Context, p *approval.PeriodApproval) (PeriodRides, error) {
	span := p.Period.Range()
	records, err := s.Store.ListRecords(ctx, p.DriverID, span)
	if err != nil {
		return PeriodRides{}, fmt.Errorf("failed to list ride records: %w", err)
	}
	executions, err := s.Store.ListExecutions(ctx, p.DriverID, span)
	if err != nil {
		return PeriodRides{}, fmt.Errorf("failed to list executions: %w", err)
	}
	weeks, err := s.Store.ListWeekApprovals(ctx, p.DriverID, p.Period)
	if err != nil {
		return PeriodRides{}, fmt.Errorf("failed to list week approvals: %w", err)
	}
	return PeriodRides{Period: p, Weeks: weeks, Records: records, Executions: executions}, nil
}

// PeriodRides is everything booked in one period approval.
type PeriodRides struct {
	Period     *approval.PeriodApproval
	Weeks      []*approval.WeekApproval
	Records    []ride.Record
	Executions []ride.Execution
}
