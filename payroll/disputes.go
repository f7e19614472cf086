package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/ride-engine/dispute"
	"github.com/warp/ride-engine/generic"
)

// =============================================================================
// RIDE-LEVEL DISPUTES
// =============================================================================

type ResolutionAction string

const (
	ActionAccept  ResolutionAction = "accept"
	ActionCounter ResolutionAction = "counter"
	ActionClose   ResolutionAction = "close"
)

// Resolution is one party's answer to a ride-level dispute.
type Resolution struct {
	Actor  generic.Actor
	Action ResolutionAction
	Hours  decimal.Decimal // counter proposal, ActionCounter only
}

// OpenDispute lets an admin propose an hours correction on a ride record.
func (s *Service) OpenDispute(ctx context.Context, rideID generic.RideID, opener generic.Actor, correction decimal.Decimal, reason string) (*dispute.Dispute, error) {
	var d *dispute.Dispute
	err := s.Store.WithTx(ctx, func(st Store) error {
		rec, err := st.GetRecord(ctx, rideID)
		if err != nil {
			return err
		}
		if err := s.ensureNoOpenDispute(ctx, st, rideID); err != nil {
			return err
		}
		d, err = dispute.Open(generic.DisputeID(s.NewID()), rec.ID, rec.DriverID, opener, correction, reason, s.now())
		if err != nil {
			return err
		}
		if err := st.CreateDispute(ctx, d); err != nil {
			return fmt.Errorf("failed to create dispute: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "dispute opened",
		"driver_id", d.DriverID,
		"ride_id", d.RideID,
		"dispute_id", d.ID,
		"correction", d.ProposedCorrection.String(),
	)
	return d, nil
}

func (s *Service) ensureNoOpenDispute(ctx context.Context, st Store, rideID generic.RideID) error {
	_, err := st.FindOpenDispute(ctx, rideID)
	switch {
	case err == nil:
		return &generic.ValidationError{Field: "ride_id", Reason: "ride already has an open dispute"}
	case generic.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("failed to look up disputes: %w", err)
	}
}

// ResolveDispute applies one party's answer. When the answer settles the
// dispute by acceptance, the correction is added to the ride's correction
// hours and the ride is recomputed and re-booked in the same unit of work.
func (s *Service) ResolveDispute(ctx context.Context, id generic.DisputeID, res Resolution) (*dispute.Dispute, error) {
	var (
		d      *dispute.Dispute
		change *RideChange
	)
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if d, err = st.GetDispute(ctx, id); err != nil {
			return err
		}

		now := s.now()
		switch res.Action {
		case ActionAccept:
			err = d.Accept(res.Actor, now)
		case ActionCounter:
			err = d.Counter(res.Actor, res.Hours)
		case ActionClose:
			err = d.Close(res.Actor, now)
		default:
			err = &generic.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", res.Action)}
		}
		if err != nil {
			return err
		}
		if err := st.UpdateDispute(ctx, d); err != nil {
			return fmt.Errorf("failed to update dispute: %w", err)
		}
		d.Version++

		if !d.Status.IsAccepted() {
			return nil
		}
		rec, err := st.GetRecord(ctx, d.RideID)
		if err != nil {
			return fmt.Errorf("failed to load disputed ride: %w", err)
		}
		rec.CorrectionHours = rec.CorrectionHours.Add(d.ProposedCorrection)
		_, change, err = s.commitRecord(ctx, st, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "dispute updated",
		"driver_id", d.DriverID,
		"ride_id", d.RideID,
		"dispute_id", d.ID,
		"status", d.Status,
	)
	s.notify(ctx, change)
	return d, nil
}

func (s *Service) AcceptDispute(ctx context.Context, id generic.DisputeID, actor generic.Actor) (*dispute.Dispute, error) {
	return s.ResolveDispute(ctx, id, Resolution{Actor: actor, Action: ActionAccept})
}

func (s *Service) CounterDispute(ctx context.Context, id generic.DisputeID, actor generic.Actor, hours decimal.Decimal) (*dispute.Dispute, error) {
	return s.ResolveDispute(ctx, id, Resolution{Actor: actor, Action: ActionCounter, Hours: hours})
}

func (s *Service) CloseDispute(ctx context.Context, id generic.DisputeID, actor generic.Actor) (*dispute.Dispute, error) {
	return s.ResolveDispute(ctx, id, Resolution{Actor: actor, Action: ActionClose})
}

// AddDisputeComment appends to a ride dispute's thread.
func (s *Service) AddDisputeComment(ctx context.Context, id generic.DisputeID, actor generic.Actor, body string) (dispute.Comment, error) {
	var c dispute.Comment
	err := s.Store.WithTx(ctx, func(st Store) error {
		d, err := st.GetDispute(ctx, id)
		if err != nil {
			return err
		}
		if c, err = d.AddComment(s.NewID(), actor, body, s.now()); err != nil {
			return err
		}
		return st.AddDisputeComment(ctx, id, c)
	})
	return c, err
}

// GetDispute loads a ride dispute with its thread.
func (s *Service) GetDispute(ctx context.Context, id generic.DisputeID) (*dispute.Dispute, error) {
	return s.Store.GetDispute(ctx, id)
}

// =============================================================================
// EXECUTION-LEVEL DISPUTES
// =============================================================================

// ExecutionResolution is the admin's settlement of an execution dispute.
type ExecutionResolution struct {
	Type       dispute.ResolutionType
	Notes      string
	Correction *decimal.Decimal
}

// OpenExecutionDispute lets a driver contest their own execution.
func (s *Service) OpenExecutionDispute(ctx context.Context, executionID generic.ExecutionID, opener generic.Actor, reason string) (*dispute.ExecutionDispute, error) {
	var d *dispute.ExecutionDispute
	err := s.Store.WithTx(ctx, func(st Store) error {
		ex, err := st.GetExecution(ctx, executionID)
		if err != nil {
			return err
		}
		_, err = st.FindOpenExecutionDispute(ctx, executionID)
		switch {
		case err == nil:
			return &generic.ValidationError{Field: "execution_id", Reason: "execution already has an open dispute"}
		case !generic.IsNotFound(err):
			return fmt.Errorf("failed to look up disputes: %w", err)
		}
		d, err = dispute.OpenExecution(generic.DisputeID(s.NewID()), ex.ID, ex.DriverID, opener, reason, s.now())
		if err != nil {
			return err
		}
		if err := st.CreateExecutionDispute(ctx, d); err != nil {
			return fmt.Errorf("failed to create execution dispute: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "execution dispute opened",
		"driver_id", d.DriverID,
		"execution_id", d.ExecutionID,
		"dispute_id", d.ID,
	)
	return d, nil
}

// ResolveExecutionDispute settles an execution dispute. An hours_corrected
// resolution adds its correction to the execution and recomputes it in the
// same unit of work.
func (s *Service) ResolveExecutionDispute(ctx context.Context, id generic.DisputeID, actor generic.Actor, res ExecutionResolution) (*dispute.ExecutionDispute, error) {
	var (
		d      *dispute.ExecutionDispute
		change *RideChange
	)
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if d, err = st.GetExecutionDispute(ctx, id); err != nil {
			return err
		}
		if err := d.Resolve(actor, res.Type, res.Notes, res.Correction, s.now()); err != nil {
			return err
		}
		if err := st.UpdateExecutionDispute(ctx, d); err != nil {
			return fmt.Errorf("failed to update execution dispute: %w", err)
		}
		d.Version++

		if !d.CorrectsHours() {
			return nil
		}
		ex, err := st.GetExecution(ctx, d.ExecutionID)
		if err != nil {
			return fmt.Errorf("failed to load disputed execution: %w", err)
		}
		ex.CorrectionHours = ex.CorrectionHours.Add(*d.Correction)
		_, change, err = s.commitExecution(ctx, st, ex)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "execution dispute resolved",
		"driver_id", d.DriverID,
		"execution_id", d.ExecutionID,
		"dispute_id", d.ID,
		"resolution", d.ResolutionType,
	)
	s.notify(ctx, change)
	return d, nil
}

// CloseExecutionDispute ends an execution dispute without resolution.
func (s *Service) CloseExecutionDispute(ctx context.Context, id generic.DisputeID, actor generic.Actor) (*dispute.ExecutionDispute, error) {
	var d *dispute.ExecutionDispute
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		if d, err = st.GetExecutionDispute(ctx, id); err != nil {
			return err
		}
		if err := d.Close(actor, s.now()); err != nil {
			return err
		}
		if err := st.UpdateExecutionDispute(ctx, d); err != nil {
			return fmt.Errorf("failed to update execution dispute: %w", err)
		}
		d.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// AddExecutionDisputeComment appends to an execution dispute's thread.
func (s *Service) AddExecutionDisputeComment(ctx context.Context, id generic.DisputeID, actor generic.Actor, body string) (dispute.Comment, error) {
	var c dispute.Comment
	err := s.Store.WithTx(ctx, func(st Store) error {
		d, err := st.GetExecutionDispute(ctx, id)
		if err != nil {
			return err
		}
		if c, err = d.AddComment(s.NewID(), actor, body, s.now()); err != nil {
			return err
		}
		return st.AddExecutionDisputeComment(ctx, id, c)
	})
	return c, err
}

// GetExecutionDispute loads an execution dispute with its thread.
func (s *Service) GetExecutionDispute(ctx context.Context, id generic.DisputeID) (*dispute.ExecutionDispute, error) {
	return s.Store.GetExecutionDispute(ctx, id)
}
