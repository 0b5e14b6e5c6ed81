package store

import (
	"context"

	"rsvp-server/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore owns user documents. Apply reports how many documents matched
// the filter; callers treat zero as a failed write.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, filter Filter[models.User]) (*models.User, error)
	// List resolves ids in order, skipping ids that no longer exist.
	List(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Apply(ctx context.Context, filter Filter[models.User], update Update[models.User]) (int64, error)
}

// EventStore owns event documents.
type EventStore interface {
	Insert(ctx context.Context, event *models.Event) (primitive.ObjectID, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Event, error)
	FindOne(ctx context.Context, filter Filter[models.Event]) (*models.Event, error)
	Apply(ctx context.Context, filter Filter[models.Event], update Update[models.Event]) (int64, error)
}

// TxManager runs fn inside a multi-document transaction. Store calls made
// with the context handed to fn take part in the transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// initUserLists makes every array field non-nil so that $push, $pull and
// $addToSet never hit a null field.
func initUserLists(u *models.User) {
	if u.Followers == nil {
		u.Followers = []primitive.ObjectID{}
	}
	if u.Following == nil {
		u.Following = []primitive.ObjectID{}
	}
	if u.InvitedEvents == nil {
		u.InvitedEvents = []models.EventSnapshot{}
	}
	if u.RSVPedEvents == nil {
		u.RSVPedEvents = []models.EventSnapshot{}
	}
	if u.EventsCreated == nil {
		u.EventsCreated = []models.EventSnapshot{}
	}
}

func initEventLists(e *models.Event) {
	if e.Waitlist == nil {
		e.Waitlist = []models.UserSnapshot{}
	}
	if e.RSVPs == nil {
		e.RSVPs = []models.UserSnapshot{}
	}
}
