package store

import (
	"context"
	"sync"

	"rsvp-server/models"
	"rsvp-server/utils/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryCollection keeps documents bson-encoded, so every read hands out an
// independent copy and updates are atomic per document.
type memoryCollection[T any] struct {
	mu     sync.Mutex
	kind   string
	docs   map[primitive.ObjectID][]byte
	order  []primitive.ObjectID
	id     func(*T) primitive.ObjectID
	setID  func(*T, primitive.ObjectID)
	unique func(*T) []string
}

func newMemoryCollection[T any](kind string, id func(*T) primitive.ObjectID, setID func(*T, primitive.ObjectID), unique func(*T) []string) *memoryCollection[T] {
	return &memoryCollection[T]{
		kind:   kind,
		docs:   map[primitive.ObjectID][]byte{},
		id:     id,
		setID:  setID,
		unique: unique,
	}
}

func (c *memoryCollection[T]) decode(raw []byte) (*T, error) {
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Store(err, "failed to decode "+c.kind)
	}
	return &doc, nil
}

// conflicts reports whether doc shares a unique key with any other document.
func (c *memoryCollection[T]) conflicts(doc *T) (bool, error) {
	if c.unique == nil {
		return false, nil
	}
	keys := map[string]bool{}
	for _, k := range c.unique(doc) {
		keys[k] = true
	}
	self := c.id(doc)
	for id, raw := range c.docs {
		if id == self {
			continue
		}
		other, err := c.decode(raw)
		if err != nil {
			return false, err
		}
		for _, k := range c.unique(other) {
			if keys[k] {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *memoryCollection[T]) insert(ctx context.Context, doc *T) (primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return primitive.NilObjectID, errors.Store(err, "failed to insert "+c.kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.id(doc)
	if id.IsZero() {
		id = primitive.NewObjectID()
		c.setID(doc, id)
	}
	if _, exists := c.docs[id]; exists {
		return primitive.NilObjectID, errors.Conflict("%s already exists", c.kind)
	}
	dup, err := c.conflicts(doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if dup {
		return primitive.NilObjectID, errors.Conflict("%s already exists", c.kind)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return primitive.NilObjectID, errors.Store(err, "failed to encode "+c.kind)
	}
	c.docs[id] = raw
	c.order = append(c.order, id)
	return id, nil
}

func (c *memoryCollection[T]) Get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Store(err, "failed to load "+c.kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.docs[id]
	if !ok {
		return nil, errors.NotFound("%s %s not found", c.kind, id.Hex())
	}
	return c.decode(raw)
}

func (c *memoryCollection[T]) FindOne(ctx context.Context, filter Filter[T]) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Store(err, "failed to query "+c.kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		doc, err := c.decode(c.docs[id])
		if err != nil {
			return nil, err
		}
		if filter.Match(doc) {
			return doc, nil
		}
	}
	return nil, nil
}

func (c *memoryCollection[T]) Apply(ctx context.Context, filter Filter[T], update Update[T]) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Store(err, "failed to update "+c.kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		doc, err := c.decode(c.docs[id])
		if err != nil {
			return 0, err
		}
		if !filter.Match(doc) {
			continue
		}
		update.ApplyTo(doc)
		dup, err := c.conflicts(doc)
		if err != nil {
			return 0, err
		}
		if dup {
			return 0, errors.Conflict("%s already exists", c.kind)
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return 0, errors.Store(err, "failed to encode "+c.kind)
		}
		c.docs[id] = raw
		return 1, nil
	}
	return 0, nil
}

type MemoryUserStore struct {
	*memoryCollection[models.User]
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{newMemoryCollection("user",
		func(u *models.User) primitive.ObjectID { return u.ID },
		func(u *models.User, id primitive.ObjectID) { u.ID = id },
		func(u *models.User) []string { return []string{"email:" + u.Email, "username:" + u.Username} },
	)}
}

func (s *MemoryUserStore) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	initUserLists(user)
	return s.insert(ctx, user)
}

func (s *MemoryUserStore) List(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.Get(ctx, id)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

type MemoryEventStore struct {
	*memoryCollection[models.Event]
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{newMemoryCollection[models.Event]("event",
		func(e *models.Event) primitive.ObjectID { return e.ID },
		func(e *models.Event, id primitive.ObjectID) { e.ID = id },
		nil,
	)}
}

func (s *MemoryEventStore) Insert(ctx context.Context, event *models.Event) (primitive.ObjectID, error) {
	initEventLists(event)
	return s.insert(ctx, event)
}
