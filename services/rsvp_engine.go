package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rsvp-server/models"
	"rsvp-server/store"
	"rsvp-server/utils/errors"
	"rsvp-server/utils/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Steps of the invited -> rsvped transition. The user side (2, 3) always
// completes before the event side (4) starts, so an interrupted run can only
// leave the user ahead of the event.
const (
	StepCheckInvite = iota + 1
	StepPullInvite
	StepPushRSVPed
	StepUpdateRoster
)

var stepNames = map[int]string{
	StepCheckInvite:  "check invite",
	StepPullInvite:   "pull invite",
	StepPushRSVPed:   "push rsvped event",
	StepUpdateRoster: "move user from waitlist to rsvps",
}

// Enqueuer schedules a (user, event) pair for reconciliation.
type Enqueuer interface {
	Enqueue(ctx context.Context, userID, eventID string) error
}

// RSVPEngine moves users through invited -> rsvped while keeping the user's
// invited/rsvped lists and the event's waitlist/rsvps in agreement.
type RSVPEngine struct {
	users  store.UserStore
	events store.EventStore
	tx     store.TxManager
	queue  Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

type EngineOption func(*RSVPEngine)

// WithTransactions runs every transition in a single multi-document
// transaction. A failed step then aborts the whole transition.
func WithTransactions(tx store.TxManager) EngineOption {
	return func(e *RSVPEngine) { e.tx = tx }
}

// WithReconcileQueue hands every unrepaired partial update to q.
func WithReconcileQueue(q Enqueuer) EngineOption {
	return func(e *RSVPEngine) { e.queue = q }
}

func NewRSVPEngine(users store.UserStore, events store.EventStore, logger *slog.Logger, opts ...EngineOption) *RSVPEngine {
	e := &RSVPEngine{users: users, events: events, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InviteUser appends a snapshot of the event to the user's invited list.
// Inviting a user who already holds the invite is a no-op; inviting a user
// who already rsvped is a StateError.
func (e *RSVPEngine) InviteUser(ctx context.Context, userID, eventID string) (*models.User, error) {
	uid, eid, err := parsePair(userID, eventID)
	if err != nil {
		return nil, err
	}
	user, event, err := e.load(ctx, uid, eid)
	if err != nil {
		return nil, err
	}
	if user.HasRSVPed(eid) {
		return nil, errors.State("user already rsvped to this event")
	}
	if user.IsInvited(eid) {
		return user, nil
	}

	filter := store.UserByID(uid).And(store.UserNotInvitedTo(eid)).And(store.UserNotRSVPedTo(eid))
	matched, err := e.users.Apply(ctx, filter, store.PushInvite(event.Snapshot(e.now())))
	if err != nil {
		return nil, err
	}
	user, err = e.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	// Lost a race with another invite or rsvp for the same pair.
	if matched == 0 && user.HasRSVPed(eid) {
		return nil, errors.State("user already rsvped to this event")
	}
	e.logger.Info("user invited", "user_id", userID, "event_id", eventID)
	return user, nil
}

// RSVP confirms the user's attendance. The user must hold an invite for
// the event.
func (e *RSVPEngine) RSVP(ctx context.Context, userID, eventID string) (*models.User, error) {
	uid, eid, err := parsePair(userID, eventID)
	if err != nil {
		return nil, err
	}
	err = e.run(ctx, true, func(ctx context.Context, compensate bool) error {
		user, event, err := e.load(ctx, uid, eid)
		if err != nil {
			return err
		}
		invite, ok := user.Invite(eid)
		if !ok {
			return errors.State("user not invited to this event")
		}
		return e.fromInvite(ctx, "rsvp", user, event, invite, compensate)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("user rsvped", "user_id", userID, "event_id", eventID)
	return e.users.Get(ctx, uid)
}

// Reconcile re-reads both documents and applies whichever steps of the
// transition are missing. It is safe to call any number of times.
func (e *RSVPEngine) Reconcile(ctx context.Context, userID, eventID string) (*models.User, error) {
	uid, eid, err := parsePair(userID, eventID)
	if err != nil {
		return nil, err
	}
	err = e.run(ctx, false, func(ctx context.Context, compensate bool) error {
		user, event, err := e.load(ctx, uid, eid)
		if err != nil {
			return err
		}
		switch {
		case user.HasRSVPed(eid):
			if user.IsInvited(eid) {
				filter := store.UserByID(uid).And(store.UserRSVPedTo(eid))
				if _, err := e.users.Apply(ctx, filter, store.PullInvite(eid)); err != nil {
					return e.partial("reconcile", uid, eid, StepPullInvite, err)
				}
			}
			if event.HasRSVP(uid) && !event.IsWaitlisted(uid) {
				return nil
			}
			return e.updateRoster(ctx, "reconcile", user, eid)
		case user.IsInvited(eid):
			invite, _ := user.Invite(eid)
			return e.fromInvite(ctx, "reconcile", user, event, invite, compensate)
		default:
			return errors.State("user has neither an invite nor an rsvp for this event")
		}
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("rsvp reconciled", "user_id", userID, "event_id", eventID)
	return e.users.Get(ctx, uid)
}

// fromInvite runs steps 2 to 4 for a user currently holding invite.
func (e *RSVPEngine) fromInvite(ctx context.Context, op string, user *models.User, event *models.Event,
	invite models.EventSnapshot, compensate bool) error {
	uid, eid := user.ID, event.ID

	// The pull only matches while the invite is still there, so of two
	// concurrent calls exactly one gets past this step.
	matched, err := e.users.Apply(ctx, store.UserByID(uid).And(store.UserInvitedTo(eid)), store.PullInvite(eid))
	if err != nil {
		return err
	}
	if matched == 0 {
		return errors.State("user not invited to this event")
	}

	// The push also pulls the invite, so one that reappeared after step 2
	// cannot survive next to the rsvp.
	update := store.PushRSVPed(event.Snapshot(e.now())).And(store.PullInvite(eid))
	matched, err = e.users.Apply(ctx, store.UserByID(uid).And(store.UserNotRSVPedTo(eid)), update)
	if err == nil && matched == 0 {
		// Already rsvped by an earlier interrupted run.
		if current, gerr := e.users.Get(ctx, uid); gerr == nil && current.HasRSVPed(eid) {
			matched = 1
		}
	}
	if err != nil || matched == 0 {
		p := e.partial(op, uid, eid, StepPushRSVPed, err)
		if compensate {
			p.Compensated = e.restoreInvite(ctx, uid, invite)
		}
		return p
	}

	return e.updateRoster(ctx, op, user, eid)
}

// updateRoster is step 4: one write on the event document that drops the
// waitlist entry and adds the user to rsvps.
func (e *RSVPEngine) updateRoster(ctx context.Context, op string, user *models.User, eid primitive.ObjectID) error {
	uid := user.ID
	update := store.PullWaitlist(uid).And(store.PushRSVP(user.Snapshot(e.now())))
	matched, err := e.events.Apply(ctx, store.EventByID(eid).And(store.EventLacksRSVP(uid)), update)
	if err != nil {
		return e.partial(op, uid, eid, StepUpdateRoster, err)
	}
	if matched > 0 {
		return nil
	}
	// The user is already in rsvps; only a stale waitlist entry can remain.
	matched, err = e.events.Apply(ctx, store.EventByID(eid).And(store.EventHasRSVP(uid)), store.PullWaitlist(uid))
	if err == nil && matched == 0 {
		err = errors.NotFound("event %s not found", eid.Hex())
	}
	if err != nil {
		return e.partial(op, uid, eid, StepUpdateRoster, err)
	}
	return nil
}

// restoreInvite puts the invite back after step 3 failed, so the user is
// not left with neither an invite nor an rsvp.
func (e *RSVPEngine) restoreInvite(ctx context.Context, uid primitive.ObjectID, invite models.EventSnapshot) bool {
	ctx = context.WithoutCancel(ctx)
	filter := store.UserByID(uid).And(store.UserNotInvitedTo(invite.ID)).And(store.UserNotRSVPedTo(invite.ID))
	matched, err := e.users.Apply(ctx, filter, store.PushInvite(invite))
	if err != nil || matched == 0 {
		e.logger.Error("failed to restore invite", "user_id", uid.Hex(), "event_id", invite.ID.Hex(), "error", err)
		return false
	}
	return true
}

func (e *RSVPEngine) partial(op string, uid, eid primitive.ObjectID, step int, err error) *errors.PartialUpdateError {
	return &errors.PartialUpdateError{
		Op:       op,
		UserID:   uid.Hex(),
		TargetID: eid.Hex(),
		Step:     step,
		StepName: stepNames[step],
		Err:      err,
	}
}

// run executes fn either inside a transaction or as the ordered step
// protocol. Without a transaction, partial updates are logged and, when
// enqueue is set, scheduled for reconciliation.
func (e *RSVPEngine) run(ctx context.Context, enqueue bool, fn func(ctx context.Context, compensate bool) error) error {
	if e.tx != nil {
		err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
			return fn(ctx, false)
		})
		if p, ok := errors.AsPartial(err); ok {
			return aborted(p)
		}
		return err
	}

	err := fn(ctx, true)
	if p, ok := errors.AsPartial(err); ok {
		e.incident(ctx, p, enqueue)
	}
	return err
}

func (e *RSVPEngine) incident(ctx context.Context, p *errors.PartialUpdateError, enqueue bool) {
	e.logger.Error("consistency incident",
		"op", p.Op,
		"user_id", p.UserID,
		"event_id", p.TargetID,
		"step", p.Step,
		"step_name", p.StepName,
		"compensated", p.Compensated,
		"error", p.Err,
	)
	if !enqueue || e.queue == nil || p.Compensated {
		return
	}
	if err := e.queue.Enqueue(context.WithoutCancel(ctx), p.UserID, p.TargetID); err != nil {
		e.logger.Error("failed to enqueue reconcile", "user_id", p.UserID, "event_id", p.TargetID, "error", err)
	}
}

// aborted reports a step failure inside a transaction. Nothing was
// committed, so this is a plain store failure rather than a partial update.
func aborted(p *errors.PartialUpdateError) error {
	msg := fmt.Sprintf("%s aborted at step %d (%s)", p.Op, p.Step, p.StepName)
	if p.Err != nil {
		return errors.NewAPIError(errors.ErrStore.Code, msg, errors.ErrStore.Status, p.Err.Error())
	}
	return errors.NewAPIError(errors.ErrStore.Code, msg, errors.ErrStore.Status)
}

func (e *RSVPEngine) load(ctx context.Context, uid, eid primitive.ObjectID) (*models.User, *models.Event, error) {
	user, err := e.users.Get(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	event, err := e.events.Get(ctx, eid)
	if err != nil {
		return nil, nil, err
	}
	return user, event, nil
}

func parsePair(userID, eventID string) (primitive.ObjectID, primitive.ObjectID, error) {
	uid, err := validation.CheckObjectID(userID, "userId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	eid, err := validation.CheckObjectID(eventID, "eventId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return uid, eid, nil
}
