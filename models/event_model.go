package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Location    string             `json:"location" bson:"location"`
	Date        string             `json:"date" bson:"date"`
	CreatorID   primitive.ObjectID `json:"creator_id" bson:"creator_id"`
	Waitlist    []UserSnapshot     `json:"waitlist" bson:"waitlist"`
	RSVPs       []UserSnapshot     `json:"rsvps" bson:"rsvps"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// EventSnapshot is the copy of an event embedded in a user's invited,
// rsvped or created lists. Rosters are not copied.
type EventSnapshot struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Location    string             `json:"location" bson:"location"`
	Date        string             `json:"date" bson:"date"`
	CreatorID   primitive.ObjectID `json:"creator_id" bson:"creator_id"`
	SnapshotAt  time.Time          `json:"snapshot_at" bson:"snapshot_at"`
}

func (e *Event) Snapshot(at time.Time) EventSnapshot {
	return EventSnapshot{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Date:        e.Date,
		CreatorID:   e.CreatorID,
		SnapshotAt:  at,
	}
}

func (e *Event) IsWaitlisted(userID primitive.ObjectID) bool {
	return hasUser(e.Waitlist, userID)
}

func (e *Event) HasRSVP(userID primitive.ObjectID) bool {
	return hasUser(e.RSVPs, userID)
}

func hasUser(users []UserSnapshot, id primitive.ObjectID) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
