package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellation_RejectKeepsBookingApproved(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.approved(t)

	requested, err := env.svc.RequestCancellation(ctx, b.ID, "schedule conflict", "")
	require.NoError(t, err)
	require.NotNil(t, requested.CancellationRequest)
	assert.Equal(t, CancellationPending, requested.CancellationRequest.Status)
	assert.True(t, requested.CancellationRequest.RequestedAt.Equal(env.clock.Now()))

	pending, err := env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	_, err = env.svc.ResolveCancellation(ctx, b.ID, DecisionReject, "admin@example.com", "  ")
	require.ErrorIs(t, err, ErrValidation)
	assert.EqualError(t, err, "validation error: adminNotes required")

	rejected, err := env.svc.ResolveCancellation(ctx, b.ID, DecisionReject, "admin@example.com", "x")
	require.NoError(t, err)
	assert.Equal(t, StageApproved, rejected.Stage)
	assert.Equal(t, CancellationRejected, rejected.CancellationRequest.Status)
	assert.Equal(t, "x", rejected.CancellationRequest.AdminNotes)
	require.NotNil(t, rejected.CancellationRequest.ResolvedAt)

	active, err := env.svc.List(ctx, ListFilter{Stages: []Stage{StageApproved}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	pending, err = env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.svc.ResolveCancellation(ctx, b.ID, DecisionApprove, "admin@example.com", "")
	assert.ErrorIs(t, err, ErrNoPendingCancellation)
}

func TestCancellation_ApproveCancelsBooking(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.approved(t)

	_, err := env.svc.RequestCancellation(ctx, b.ID, "schedule conflict", "moved abroad")
	require.NoError(t, err)

	cancelled, err := env.svc.ResolveCancellation(ctx, b.ID, DecisionApprove, "admin@example.com", "refund issued")
	require.NoError(t, err)
	assert.Equal(t, StageCancelled, cancelled.Stage)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, CancellationApproved, cancelled.CancellationRequest.Status)
	assert.Equal(t, "moved abroad", cancelled.CancellationRequest.Description)
	assert.Equal(t, b.Reference(), cancelled.Reference())

	for _, stage := range []Stage{StagePending, StageApproved, StageFinished} {
		items, err := env.svc.List(ctx, ListFilter{Stages: []Stage{stage}})
		require.NoError(t, err)
		assert.Empty(t, items, stage)
	}

	items, err := env.svc.Cancellations().ListCancelled(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	_, err = env.svc.Finish(ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidStageTransition)
}

func TestCancellation_RequestRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pending := env.submit(t, aliceSubmission())
	_, err := env.svc.RequestCancellation(ctx, pending.ID, "changed plans", "")
	assert.ErrorIs(t, err, ErrInvalidStageTransition)

	approved := env.approved(t)
	_, err = env.svc.RequestCancellation(ctx, approved.ID, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	finished, err := env.svc.Finish(ctx, approved.ID)
	require.NoError(t, err)
	_, err = env.svc.RequestCancellation(ctx, finished.ID, "changed plans", "")
	assert.ErrorIs(t, err, ErrInvalidStageTransition)

	_, err = env.svc.ResolveCancellation(ctx, finished.ID, Decision("maybe"), "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancellation_SecondRoundReplacesRejectedRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.approved(t)

	_, err := env.svc.RequestCancellation(ctx, b.ID, "first", "")
	require.NoError(t, err)
	_, err = env.svc.ResolveCancellation(ctx, b.ID, DecisionReject, "admin@example.com", "not eligible")
	require.NoError(t, err)

	again, err := env.svc.RequestCancellation(ctx, b.ID, "second", "")
	require.NoError(t, err)
	assert.Equal(t, "second", again.CancellationRequest.Reason)
	assert.Equal(t, CancellationPending, again.CancellationRequest.Status)
	assert.Empty(t, again.CancellationRequest.AdminNotes)
	assert.Nil(t, again.CancellationRequest.ResolvedAt)
}

func TestCancellation_PendingRequestsPage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		b := env.approved(t)
		_, err := env.svc.RequestCancellation(ctx, b.ID, "schedule conflict", "")
		require.NoError(t, err)
	}

	all, err := env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	first, err := env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	rest, err := env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, rest, 1)
	assert.Equal(t, ids(all), append(ids(first), ids(rest)...))

	// the stage and status constraints cannot be widened by the caller
	narrowed, err := env.svc.Cancellations().ListPendingRequests(ctx, ListFilter{
		Stages:             []Stage{StagePending},
		CancellationStatus: CancellationRejected,
	})
	require.NoError(t, err)
	assert.Len(t, narrowed, 3)
}
