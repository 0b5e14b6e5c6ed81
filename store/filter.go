package store

import (
	"rsvp-server/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter selects documents of type T. Every clause has a Mongo query
// document and an equivalent predicate used by the in-memory store.
type Filter[T any] struct {
	clauses []bson.M
	preds   []func(*T) bool
}

func where[T any](clause bson.M, pred func(*T) bool) Filter[T] {
	return Filter[T]{clauses: []bson.M{clause}, preds: []func(*T) bool{pred}}
}

// And returns a filter matching documents that satisfy both f and other.
func (f Filter[T]) And(other Filter[T]) Filter[T] {
	out := Filter[T]{
		clauses: make([]bson.M, 0, len(f.clauses)+len(other.clauses)),
		preds:   make([]func(*T) bool, 0, len(f.preds)+len(other.preds)),
	}
	out.clauses = append(append(out.clauses, f.clauses...), other.clauses...)
	out.preds = append(append(out.preds, f.preds...), other.preds...)
	return out
}

func (f Filter[T]) Doc() bson.M {
	switch len(f.clauses) {
	case 0:
		return bson.M{}
	case 1:
		return f.clauses[0]
	}
	and := make(bson.A, len(f.clauses))
	for i, c := range f.clauses {
		and[i] = c
	}
	return bson.M{"$and": and}
}

func (f Filter[T]) Match(doc *T) bool {
	for _, p := range f.preds {
		if !p(doc) {
			return false
		}
	}
	return true
}

// Update is a single-document mutation of T, expressed both as a Mongo
// update document and as an in-memory mutation.
type Update[T any] struct {
	ops   map[string]bson.M
	steps []func(*T)
}

func op[T any](operator, field string, value any, step func(*T)) Update[T] {
	return Update[T]{
		ops:   map[string]bson.M{operator: {field: value}},
		steps: []func(*T){step},
	}
}

// And combines two updates into one atomic write. The updates must touch
// different fields.
func (u Update[T]) And(other Update[T]) Update[T] {
	out := Update[T]{ops: map[string]bson.M{}}
	for _, src := range []map[string]bson.M{u.ops, other.ops} {
		for operator, fields := range src {
			if out.ops[operator] == nil {
				out.ops[operator] = bson.M{}
			}
			for k, v := range fields {
				out.ops[operator][k] = v
			}
		}
	}
	out.steps = append(append(out.steps, u.steps...), other.steps...)
	return out
}

func (u Update[T]) Doc() bson.M {
	doc := bson.M{}
	for operator, fields := range u.ops {
		doc[operator] = fields
	}
	return doc
}

func (u Update[T]) ApplyTo(doc *T) {
	for _, s := range u.steps {
		s(doc)
	}
}

// User filters

func UserByID(id primitive.ObjectID) Filter[models.User] {
	return where(bson.M{"_id": id}, func(u *models.User) bool { return u.ID == id })
}

func UserByEmail(email string) Filter[models.User] {
	return where(bson.M{"email": email}, func(u *models.User) bool { return u.Email == email })
}

func UserByUsername(username string) Filter[models.User] {
	return where(bson.M{"username": username}, func(u *models.User) bool { return u.Username == username })
}

func UserInvitedTo(eventID primitive.ObjectID) Filter[models.User] {
	return where(bson.M{"invited_events._id": eventID}, func(u *models.User) bool { return u.IsInvited(eventID) })
}

func UserNotInvitedTo(eventID primitive.ObjectID) Filter[models.User] {
	return where(bson.M{"invited_events._id": bson.M{"$ne": eventID}}, func(u *models.User) bool { return !u.IsInvited(eventID) })
}

func UserRSVPedTo(eventID primitive.ObjectID) Filter[models.User] {
	return where(bson.M{"rsvped_events._id": eventID}, func(u *models.User) bool { return u.HasRSVPed(eventID) })
}

func UserNotRSVPedTo(eventID primitive.ObjectID) Filter[models.User] {
	return where(bson.M{"rsvped_events._id": bson.M{"$ne": eventID}}, func(u *models.User) bool { return !u.HasRSVPed(eventID) })
}

// User updates

func AddFollower(id primitive.ObjectID) Update[models.User] {
	return op("$addToSet", "followers", id, func(u *models.User) { u.Followers = addID(u.Followers, id) })
}

func RemoveFollower(id primitive.ObjectID) Update[models.User] {
	return op("$pull", "followers", id, func(u *models.User) { u.Followers = removeID(u.Followers, id) })
}

func AddFollowing(id primitive.ObjectID) Update[models.User] {
	return op("$addToSet", "following", id, func(u *models.User) { u.Following = addID(u.Following, id) })
}

func RemoveFollowing(id primitive.ObjectID) Update[models.User] {
	return op("$pull", "following", id, func(u *models.User) { u.Following = removeID(u.Following, id) })
}

func PushInvite(snap models.EventSnapshot) Update[models.User] {
	return op("$push", "invited_events", snap, func(u *models.User) { u.InvitedEvents = append(u.InvitedEvents, snap) })
}

func PullInvite(eventID primitive.ObjectID) Update[models.User] {
	return op("$pull", "invited_events", bson.M{"_id": eventID}, func(u *models.User) {
		u.InvitedEvents = removeEvent(u.InvitedEvents, eventID)
	})
}

func PushRSVPed(snap models.EventSnapshot) Update[models.User] {
	return op("$push", "rsvped_events", snap, func(u *models.User) { u.RSVPedEvents = append(u.RSVPedEvents, snap) })
}

func PushCreated(snap models.EventSnapshot) Update[models.User] {
	return op("$push", "events_created", snap, func(u *models.User) { u.EventsCreated = append(u.EventsCreated, snap) })
}

// Profile carries the editable profile fields.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
	Phone     string
	DOB       string
	Gender    string
}

func SetProfile(p Profile) Update[models.User] {
	fields := bson.M{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"username":   p.Username,
		"phone":      p.Phone,
		"dob":        p.DOB,
		"gender":     p.Gender,
	}
	return Update[models.User]{
		ops: map[string]bson.M{"$set": fields},
		steps: []func(*models.User){func(u *models.User) {
			u.FirstName, u.LastName = p.FirstName, p.LastName
			u.Email, u.Username = p.Email, p.Username
			u.Phone, u.DOB, u.Gender = p.Phone, p.DOB, p.Gender
		}},
	}
}

func SetVerified() Update[models.User] {
	return op("$set", "is_verified", true, func(u *models.User) { u.IsVerified = true })
}

func SetPasswordHash(hash string) Update[models.User] {
	return op("$set", "hashed_password", hash, func(u *models.User) { u.HashedPassword = hash })
}

func SetPhotoURL(url string) Update[models.User] {
	return op("$set", "profile_photo_url", url, func(u *models.User) { u.ProfilePhotoURL = url })
}

// Event filters

func EventByID(id primitive.ObjectID) Filter[models.Event] {
	return where(bson.M{"_id": id}, func(e *models.Event) bool { return e.ID == id })
}

func EventNotWaitlisted(userID primitive.ObjectID) Filter[models.Event] {
	return where(bson.M{"waitlist._id": bson.M{"$ne": userID}}, func(e *models.Event) bool { return !e.IsWaitlisted(userID) })
}

func EventHasRSVP(userID primitive.ObjectID) Filter[models.Event] {
	return where(bson.M{"rsvps._id": userID}, func(e *models.Event) bool { return e.HasRSVP(userID) })
}

func EventLacksRSVP(userID primitive.ObjectID) Filter[models.Event] {
	return where(bson.M{"rsvps._id": bson.M{"$ne": userID}}, func(e *models.Event) bool { return !e.HasRSVP(userID) })
}

// Event updates

func PushWaitlist(snap models.UserSnapshot) Update[models.Event] {
	return op("$push", "waitlist", snap, func(e *models.Event) { e.Waitlist = append(e.Waitlist, snap) })
}

func PullWaitlist(userID primitive.ObjectID) Update[models.Event] {
	return op("$pull", "waitlist", bson.M{"_id": userID}, func(e *models.Event) {
		e.Waitlist = removeUser(e.Waitlist, userID)
	})
}

func PushRSVP(snap models.UserSnapshot) Update[models.Event] {
	return op("$push", "rsvps", snap, func(e *models.Event) { e.RSVPs = append(e.RSVPs, snap) })
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if models.ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeEvent(events []models.EventSnapshot, id primitive.ObjectID) []models.EventSnapshot {
	out := events[:0]
	for _, e := range events {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func removeUser(users []models.UserSnapshot, id primitive.ObjectID) []models.UserSnapshot {
	out := users[:0]
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}
