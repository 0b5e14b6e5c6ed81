package services

import (
	"context"
	"log/slog"
	"time"

	"rsvp-server/models"
	"rsvp-server/store"
	"rsvp-server/utils/errors"
	"rsvp-server/utils/validation"
)

type EventService struct {
	users  store.UserStore
	events store.EventStore
	logger *slog.Logger
	now    func() time.Time
}

type EventInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Location    string `json:"location" validate:"required,max=200"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
}

func NewEventService(users store.UserStore, events store.EventStore, logger *slog.Logger) *EventService {
	return &EventService{users: users, events: events, logger: logger, now: time.Now}
}

// CreateEvent stores a new event and records a snapshot of it in the
// creator's events_created list.
func (s *EventService) CreateEvent(ctx context.Context, creatorID string, input EventInput) (*models.Event, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	creator, err := validation.CheckObjectID(creatorID, "creatorId")
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, creator); err != nil {
		return nil, err
	}

	now := s.now()
	event := &models.Event{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Date:        input.Date,
		CreatorID:   creator,
		CreatedAt:   now,
	}
	id, err := s.events.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ID = id

	matched, err := s.users.Apply(ctx, store.UserByID(creator), store.PushCreated(event.Snapshot(now)))
	if err != nil || matched == 0 {
		p := &errors.PartialUpdateError{
			Op:       "create_event",
			UserID:   creator.Hex(),
			TargetID: id.Hex(),
			Step:     2,
			StepName: "record created event on creator",
			Err:      err,
		}
		s.logger.Error("consistency incident: event created without creator record",
			"user_id", creator.Hex(), "event_id", id.Hex(), "error", err)
		return nil, p
	}

	s.logger.Info("event created", "event_id", id.Hex(), "creator_id", creator.Hex())
	return s.events.Get(ctx, id)
}

func (s *EventService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	id, err := validation.CheckObjectID(eventID, "eventId")
	if err != nil {
		return nil, err
	}
	return s.events.Get(ctx, id)
}

// AddToWaitlist puts a snapshot of the user on the event's waitlist. It is
// the inviter's half of an invitation and is idempotent by user id.
func (s *EventService) AddToWaitlist(ctx context.Context, eventID, userID string) (*models.Event, error) {
	eid, err := validation.CheckObjectID(eventID, "eventId")
	if err != nil {
		return nil, err
	}
	uid, err := validation.CheckObjectID(userID, "userId")
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	filter := store.EventByID(eid).And(store.EventNotWaitlisted(uid)).And(store.EventLacksRSVP(uid))
	matched, err := s.events.Apply(ctx, filter, store.PushWaitlist(user.Snapshot(s.now())))
	if err != nil {
		return nil, err
	}
	event, err := s.events.Get(ctx, eid)
	if err != nil {
		return nil, err
	}
	if matched == 0 && event.HasRSVP(uid) {
		return nil, errors.State("user already rsvped to this event")
	}
	return event, nil
}
