package store

import (
	"context"
	"testing"

	"rsvp-server/models"
	"rsvp-server/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func insertUser(t *testing.T, s *MemoryUserStore, username string) primitive.ObjectID {
	t.Helper()
	id, err := s.Insert(context.Background(), &models.User{Username: username, Email: username + "@example.com"})
	require.NoError(t, err)
	return id
}

func TestMemoryUserStore_InsertGet(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	id := insertUser(t, s, "ann")

	u, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ann", u.Username)
	assert.NotNil(t, u.Followers)
	assert.NotNil(t, u.RSVPedEvents)

	// Reads are copies.
	u.Username = "changed"
	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ann", again.Username)

	_, err = s.Get(ctx, primitive.NewObjectID())
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryUserStore_UniqueKeys(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	insertUser(t, s, "ann")
	bob := insertUser(t, s, "bob")

	_, err := s.Insert(ctx, &models.User{Username: "ann", Email: "other@example.com"})
	assert.ErrorIs(t, err, errors.ErrConflict)

	_, err = s.Apply(ctx, UserByID(bob), SetProfile(Profile{Username: "bob", Email: "ann@example.com"}))
	assert.ErrorIs(t, err, errors.ErrConflict)
	u, err := s.Get(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
}

func TestMemoryUserStore_Apply(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	ann := insertUser(t, s, "ann")
	bob := insertUser(t, s, "bob")

	n, err := s.Apply(ctx, UserByID(ann), AddFollower(bob))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Matched but unchanged still counts.
	n, err = s.Apply(ctx, UserByID(ann), AddFollower(bob))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Apply(ctx, UserByID(primitive.NewObjectID()), AddFollower(bob))
	require.NoError(t, err)
	assert.Zero(t, n)

	eid := primitive.NewObjectID()
	n, err = s.Apply(ctx, UserByID(ann).And(UserInvitedTo(eid)), PullInvite(eid))
	require.NoError(t, err)
	assert.Zero(t, n)

	u, err := s.Get(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{bob}, u.Followers)
}

func TestMemoryUserStore_FindOneAndList(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()
	ann := insertUser(t, s, "ann")
	bob := insertUser(t, s, "bob")

	eid := primitive.NewObjectID()
	_, err := s.Apply(ctx, UserByID(bob), PushInvite(models.EventSnapshot{ID: eid, Title: "Party"}))
	require.NoError(t, err)

	found, err := s.FindOne(ctx, UserInvitedTo(eid))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, bob, found.ID)

	missing, err := s.FindOne(ctx, UserByUsername("cat"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	users, err := s.List(ctx, []primitive.ObjectID{bob, primitive.NewObjectID(), ann})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, bob, users[0].ID)
	assert.Equal(t, ann, users[1].ID)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryEventStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, &models.Event{Title: "x"})
	assert.ErrorIs(t, err, errors.ErrStore)
	_, err = s.Apply(ctx, EventByID(primitive.NewObjectID()), PullWaitlist(primitive.NewObjectID()))
	assert.ErrorIs(t, err, errors.ErrStore)
}

func TestMemoryEventStore_Roster(t *testing.T) {
	s := NewMemoryEventStore()
	ctx := context.Background()
	id, err := s.Insert(ctx, &models.Event{Title: "Party"})
	require.NoError(t, err)
	uid := primitive.NewObjectID()

	n, err := s.Apply(ctx, EventByID(id).And(EventNotWaitlisted(uid)), PushWaitlist(models.UserSnapshot{ID: uid}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.Apply(ctx, EventByID(id).And(EventNotWaitlisted(uid)), PushWaitlist(models.UserSnapshot{ID: uid}))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Apply(ctx, EventByID(id).And(EventLacksRSVP(uid)), PullWaitlist(uid).And(PushRSVP(models.UserSnapshot{ID: uid})))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ev, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, ev.Waitlist)
	assert.True(t, ev.HasRSVP(uid))

	found, err := s.FindOne(ctx, EventHasRSVP(uid))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	found, err = s.FindOne(ctx, EventByID(id).And(EventLacksRSVP(uid)))
	require.NoError(t, err)
	assert.Nil(t, found)
}
