package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID              primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	FirstName       string               `json:"first_name" bson:"first_name"`
	LastName        string               `json:"last_name" bson:"last_name"`
	Email           string               `json:"email" bson:"email"`
	Username        string               `json:"username" bson:"username"`
	Phone           string               `json:"phone" bson:"phone"`
	DOB             string               `json:"dob" bson:"dob"`
	Gender          string               `json:"gender" bson:"gender"`
	HashedPassword  string               `json:"-" bson:"hashed_password"`
	IsVerified      bool                 `json:"is_verified" bson:"is_verified"`
	ProfilePhotoURL string               `json:"profile_photo_url" bson:"profile_photo_url"`
	Followers       []primitive.ObjectID `json:"followers" bson:"followers"`
	Following       []primitive.ObjectID `json:"following" bson:"following"`
	InvitedEvents   []EventSnapshot      `json:"invited_events" bson:"invited_events"`
	RSVPedEvents    []EventSnapshot      `json:"rsvped_events" bson:"rsvped_events"`
	EventsCreated   []EventSnapshot      `json:"events_created" bson:"events_created"`
	CreatedAt       time.Time            `json:"created_at" bson:"created_at"`
}

// UserSnapshot is the copy of a user embedded in an event's waitlist or
// rsvps. It carries no credentials and none of the user's own lists.
type UserSnapshot struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id"`
	FirstName       string             `json:"first_name" bson:"first_name"`
	LastName        string             `json:"last_name" bson:"last_name"`
	Email           string             `json:"email" bson:"email"`
	Username        string             `json:"username" bson:"username"`
	ProfilePhotoURL string             `json:"profile_photo_url" bson:"profile_photo_url"`
	SnapshotAt      time.Time          `json:"snapshot_at" bson:"snapshot_at"`
}

func (u *User) Snapshot(at time.Time) UserSnapshot {
	return UserSnapshot{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		Username:        u.Username,
		ProfilePhotoURL: u.ProfilePhotoURL,
		SnapshotAt:      at,
	}
}

func (u *User) IsInvited(eventID primitive.ObjectID) bool {
	return hasEvent(u.InvitedEvents, eventID)
}

func (u *User) HasRSVPed(eventID primitive.ObjectID) bool {
	return hasEvent(u.RSVPedEvents, eventID)
}

// Invite returns the invited snapshot for eventID, if any.
func (u *User) Invite(eventID primitive.ObjectID) (EventSnapshot, bool) {
	for _, e := range u.InvitedEvents {
		if e.ID == eventID {
			return e, true
		}
	}
	return EventSnapshot{}, false
}

func hasEvent(events []EventSnapshot, id primitive.ObjectID) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
