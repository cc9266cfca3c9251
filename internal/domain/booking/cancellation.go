package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// checkCancellationRequest enforces who may file a request: approved bookings without
// one already pending. A rejected request may be replaced by a new one.
func checkCancellationRequest(b *Booking) error {
	if b.Stage != StageApproved {
		return fmt.Errorf("%w: cancellation requires an approved booking, got %s", ErrInvalidStageTransition, b.Stage)
	}
	if b.HasPendingCancellation() {
		return ErrCancellationPending
	}
	return nil
}

func applyCancellationRequest(b *Booking, reason, description string, now time.Time) error {
	if err := checkCancellationRequest(b); err != nil {
		return err
	}
	b.CancellationRequest = &CancellationRequest{
		Reason:      reason,
		Description: description,
		Status:      CancellationPending,
		RequestedAt: now,
	}
	return nil
}

func validateResolution(decision Decision, adminNotes string) error {
	switch decision {
	case DecisionApprove:
		return nil
	case DecisionReject:
		if strings.TrimSpace(adminNotes) == "" {
			return requiredField("adminNotes")
		}
		return nil
	}
	return &ValidationError{
		Message: fmt.Sprintf("unknown decision %q", decision),
		Fields:  map[string]string{"decision": "oneof"},
	}
}

// applyResolution closes the pending request. Approval cancels the booking; rejection keeps it
// approved and retains the request for audit.
func applyResolution(b *Booking, decision Decision, adminEmail, adminNotes string, now time.Time) error {
	if err := validateResolution(decision, adminNotes); err != nil {
		return err
	}
	if !b.HasPendingCancellation() {
		return ErrNoPendingCancellation
	}

	req := b.CancellationRequest
	req.ResolvedAt = &now
	req.AdminEmail = adminEmail
	req.AdminNotes = adminNotes

	switch decision {
	case DecisionApprove:
		req.Status = CancellationApproved
		b.Stage = StageCancelled
		b.CancelledAt = &now
	case DecisionReject:
		req.Status = CancellationRejected
	}
	return nil
}

// CancellationWorkflow exposes the read views over cancellation state kept on bookings.
type CancellationWorkflow struct {
	store Store
}

func NewCancellationWorkflow(store Store) *CancellationWorkflow {
	return &CancellationWorkflow{store: store}
}

// ListPendingRequests returns approved bookings awaiting an admin decision. Limit and
// Offset page through them like any other list.
func (w *CancellationWorkflow) ListPendingRequests(ctx context.Context, f ListFilter) ([]Booking, error) {
	f.Stages = []Stage{StageApproved}
	f.CancellationStatus = CancellationPending
	return w.store.List(ctx, f)
}

func (w *CancellationWorkflow) ListCancelled(ctx context.Context, f ListFilter) ([]Booking, error) {
	f.Stages = []Stage{StageCancelled}
	return w.store.List(ctx, f)
}
