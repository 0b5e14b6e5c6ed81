package services

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"rsvp-server/models"
	"rsvp-server/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerFunc func(ctx context.Context, userID, eventID string) (*models.User, error)

func (f reconcilerFunc) Reconcile(ctx context.Context, userID, eventID string) (*models.User, error) {
	return f(ctx, userID, eventID)
}

func TestWorker_RepairsPartialRSVP(t *testing.T) {
	e := newEnv()
	host := e.seedUser(t, "host")
	u1 := e.seedUser(t, "u1")
	e1 := e.seedEvent(t, "Launch party", host)
	ctx := context.Background()
	engine := e.engine()

	_, err := engine.InviteUser(ctx, u1.ID.Hex(), e1.ID.Hex())
	require.NoError(t, err)
	e.events.fail(1)
	_, err = engine.RSVP(ctx, u1.ID.Hex(), e1.ID.Hex())
	require.True(t, errors.IsPartial(err))
	require.Len(t, e.queue.pending(), 1)

	worker := NewReconcileWorker(e.queue, engine, time.Second, discardLogger())
	resolved, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Empty(t, e.queue.pending())
	assertRSVPed(t, e, u1, e1)
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(context.Background(), "u1", "e1"))
	calls := 0
	failing := reconcilerFunc(func(ctx context.Context, userID, eventID string) (*models.User, error) {
		calls++
		return nil, &errors.PartialUpdateError{Op: "reconcile", UserID: userID, TargetID: eventID, Step: StepUpdateRoster}
	})

	worker := NewReconcileWorker(q, failing, time.Minute, discardLogger())
	worker.now = func() time.Time { return q.now }

	resolved, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Equal(t, 1, calls)

	pending := q.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, q.now.Add(time.Minute), q.due["u1:e1"])

	// Not due yet.
	_, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWorker_GivesUp(t *testing.T) {
	q := newFakeQueue()
	job := ReconcileJob{UserID: "u1", EventID: "e1", Attempts: reconcileMaxAttempts - 1}
	q.jobs[job.member()] = job
	q.due[job.member()] = q.now
	failing := reconcilerFunc(func(ctx context.Context, userID, eventID string) (*models.User, error) {
		return nil, errors.Store(context.DeadlineExceeded, "failed to update event")
	})

	resolved, err := NewReconcileWorker(q, failing, time.Minute, discardLogger()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Empty(t, q.pending())
}

func TestWorker_DropsUnrepairableJobs(t *testing.T) {
	for _, fail := range []error{
		errors.NotFound("user u1 not found"),
		errors.State("user has neither an invite nor an rsvp for this event"),
		errors.Validation("userId is not a valid object id"),
	} {
		q := newFakeQueue()
		require.NoError(t, q.Enqueue(context.Background(), "u1", "e1"))
		rec := reconcilerFunc(func(ctx context.Context, userID, eventID string) (*models.User, error) {
			return nil, fail
		})

		resolved, err := NewReconcileWorker(q, rec, time.Minute, discardLogger()).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, resolved)
		assert.Empty(t, q.pending())
	}
}

func TestWorker_RetriesPartialWithNotFoundCause(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(context.Background(), "u1", "e1"))
	rec := reconcilerFunc(func(ctx context.Context, userID, eventID string) (*models.User, error) {
		return nil, &errors.PartialUpdateError{
			Op: "reconcile", UserID: userID, TargetID: eventID,
			Step: StepUpdateRoster, Err: errors.NotFound("event %s not found", eventID),
		}
	})

	resolved, err := NewReconcileWorker(q, rec, time.Minute, discardLogger()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, resolved)
	pending := q.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestWorker_LogsPendingCount(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(context.Background(), "u1", "e1"))
	require.NoError(t, q.Enqueue(context.Background(), "u2", "e1"))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := reconcilerFunc(func(ctx context.Context, userID, eventID string) (*models.User, error) {
		if userID == "u1" {
			return &models.User{}, nil
		}
		return nil, errors.Store(context.DeadlineExceeded, "failed to update event")
	})

	w := NewReconcileWorker(q, rec, time.Minute, logger)
	resolved, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	w.logPending(context.Background(), resolved)

	assert.Contains(t, buf.String(), "reconcile pass finished")
	assert.Contains(t, buf.String(), "resolved=1")
	assert.Contains(t, buf.String(), "pending=1")
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q := newFakeQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewReconcileWorker(q, reconcilerFunc(nil), time.Millisecond, discardLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, backoff(time.Minute, 0))
	assert.Equal(t, 4*time.Minute, backoff(time.Minute, 2))
	assert.Equal(t, reconcileMaxBackoff, backoff(time.Minute, 20))
}

func TestParseMember(t *testing.T) {
	job, err := parseMember("64b7f0c2a1b2c3d4e5f60718:64b7f0c2a1b2c3d4e5f60719")
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", job.UserID)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60719", job.EventID)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718:64b7f0c2a1b2c3d4e5f60719", job.member())

	for _, bad := range []string{"", "abc", ":e1", "u1:"} {
		_, err := parseMember(bad)
		assert.Error(t, err, bad)
	}
}
