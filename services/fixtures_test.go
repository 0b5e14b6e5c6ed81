package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rsvp-server/models"
	"rsvp-server/store"
	"rsvp-server/utils/errors"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fault fails selected Apply calls, counted from 1. A failure either
// returns a store error or, with zeroMatch, matches nothing.
type fault struct {
	mu        sync.Mutex
	calls     int
	failAt    map[int]bool
	zeroMatch bool
}

func (f *fault) fail(calls ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt = map[int]bool{}
	for _, c := range calls {
		f.failAt[f.calls+c] = true
	}
}

func (f *fault) hit() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.failAt[f.calls] {
		return false, nil
	}
	if f.zeroMatch {
		return true, nil
	}
	return true, errors.Store(context.DeadlineExceeded, "simulated store fault")
}

type faultyUsers struct {
	store.UserStore
	fault
}

func (f *faultyUsers) Apply(ctx context.Context, filter store.Filter[models.User], update store.Update[models.User]) (int64, error) {
	if failed, err := f.hit(); failed {
		return 0, err
	}
	return f.UserStore.Apply(ctx, filter, update)
}

type faultyEvents struct {
	store.EventStore
	fault
}

func (f *faultyEvents) Apply(ctx context.Context, filter store.Filter[models.Event], update store.Update[models.Event]) (int64, error) {
	if failed, err := f.hit(); failed {
		return 0, err
	}
	return f.EventStore.Apply(ctx, filter, update)
}

// fakeQueue is an in-memory ReconcileQueue.
type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string]ReconcileJob
	due  map[string]time.Time
	now  time.Time
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		jobs: map[string]ReconcileJob{},
		due:  map[string]time.Time{},
		now:  time.Unix(1_700_000_000, 0),
	}
}

func (q *fakeQueue) Enqueue(ctx context.Context, userID, eventID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := ReconcileJob{UserID: userID, EventID: eventID}
	if _, ok := q.jobs[job.member()]; !ok {
		q.jobs[job.member()] = job
		q.due[job.member()] = q.now
	}
	return nil
}

func (q *fakeQueue) Due(ctx context.Context, limit int) ([]ReconcileJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []ReconcileJob
	for m, job := range q.jobs {
		if len(out) == limit {
			break
		}
		if !q.due[m].After(q.now) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (q *fakeQueue) Retry(ctx context.Context, job ReconcileJob, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempts++
	q.jobs[job.member()] = job
	q.due[job.member()] = at
	return nil
}

func (q *fakeQueue) Done(ctx context.Context, job ReconcileJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, job.member())
	delete(q.due, job.member())
	return nil
}

func (q *fakeQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) pending() []ReconcileJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReconcileJob, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j)
	}
	return out
}

// fakeTx runs fn directly. Writes are not rolled back.
type fakeTx struct {
	calls int
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type env struct {
	users  *faultyUsers
	events *faultyEvents
	queue  *fakeQueue
}

func newEnv() *env {
	return &env{
		users:  &faultyUsers{UserStore: store.NewMemoryUserStore()},
		events: &faultyEvents{EventStore: store.NewMemoryEventStore()},
		queue:  newFakeQueue(),
	}
}

func (e *env) engine(opts ...EngineOption) *RSVPEngine {
	opts = append([]EngineOption{WithReconcileQueue(e.queue)}, opts...)
	return NewRSVPEngine(e.users, e.events, discardLogger(), opts...)
}

func (e *env) seedUser(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{
		FirstName: "Test",
		LastName:  "User",
		Username:  username,
		Email:     username + "@example.com",
		CreatedAt: time.Now(),
	}
	id, err := e.users.Insert(context.Background(), u)
	require.NoError(t, err)
	return e.user(t, id.Hex())
}

func (e *env) seedEvent(t *testing.T, title string, creator *models.User) *models.Event {
	t.Helper()
	ev := &models.Event{
		Title:     title,
		Location:  "Hoboken",
		Date:      "2026-11-01",
		CreatorID: creator.ID,
		CreatedAt: time.Now(),
	}
	id, err := e.events.Insert(context.Background(), ev)
	require.NoError(t, err)
	return e.event(t, id.Hex())
}

func (e *env) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := NewUserService(e.users, "secret", discardLogger()).GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *env) event(t *testing.T, id string) *models.Event {
	t.Helper()
	ev, err := NewEventService(e.users, e.events, discardLogger()).GetEvent(context.Background(), id)
	require.NoError(t, err)
	return ev
}
