package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rsvp-server/models"
	"rsvp-server/utils/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect opens a MongoDB client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

type mongoCollection[T any] struct {
	coll    *mongo.Collection
	kind    string
	timeout time.Duration
}

func (c mongoCollection[T]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c mongoCollection[T]) insert(ctx context.Context, doc *T) (primitive.ObjectID, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	result, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errors.Conflict("%s already exists", c.kind)
		}
		return primitive.NilObjectID, errors.Store(err, "failed to insert "+c.kind)
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.NewAPIError(errors.ErrStore.Code, "unexpected id type after insert", errors.ErrStore.Status)
	}
	return id, nil
}

func (c mongoCollection[T]) Get(ctx context.Context, id primitive.ObjectID) (*T, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	var doc T
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.NotFound("%s %s not found", c.kind, id.Hex())
	}
	if err != nil {
		return nil, errors.Store(err, "failed to load "+c.kind)
	}
	return &doc, nil
}

func (c mongoCollection[T]) FindOne(ctx context.Context, filter Filter[T]) (*T, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	var doc T
	err := c.coll.FindOne(ctx, filter.Doc()).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Store(err, "failed to query "+c.kind)
	}
	return &doc, nil
}

func (c mongoCollection[T]) Apply(ctx context.Context, filter Filter[T], update Update[T]) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	result, err := c.coll.UpdateOne(ctx, filter.Doc(), update.Doc())
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, errors.Conflict("%s already exists", c.kind)
		}
		return 0, errors.Store(err, "failed to update "+c.kind)
	}
	// Matched, not modified: an $addToSet of an existing member is a
	// successful no-op.
	return result.MatchedCount, nil
}

type MongoUserStore struct {
	mongoCollection[models.User]
	logger *slog.Logger
}

func NewMongoUserStore(db *mongo.Database, timeout time.Duration, logger *slog.Logger) *MongoUserStore {
	return &MongoUserStore{
		mongoCollection: mongoCollection[models.User]{coll: db.Collection("users"), kind: "user", timeout: timeout},
		logger:          logger,
	}
}

// EnsureIndexes creates the unique indexes on email and username.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := s.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoUserStore) Insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	initUserLists(user)
	return s.insert(ctx, user)
}

func (s *MongoUserStore) List(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Store(err, "failed to list users")
	}
	var found []models.User
	if err := cursor.All(ctx, &found); err != nil {
		return nil, errors.Store(err, "failed to decode users")
	}
	byID := make(map[primitive.ObjectID]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			s.logger.Debug("skipping stale user reference", "user_id", id.Hex())
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

type MongoEventStore struct {
	mongoCollection[models.Event]
}

func NewMongoEventStore(db *mongo.Database, timeout time.Duration) *MongoEventStore {
	return &MongoEventStore{mongoCollection[models.Event]{coll: db.Collection("events"), kind: "event", timeout: timeout}}
}

func (s *MongoEventStore) Insert(ctx context.Context, event *models.Event) (primitive.ObjectID, error) {
	initEventLists(event)
	return s.insert(ctx, event)
}

// MongoTxManager runs callbacks in a session transaction. MongoDB only
// supports this on replica sets and sharded clusters.
type MongoTxManager struct {
	client *mongo.Client
}

func NewMongoTxManager(client *mongo.Client) *MongoTxManager {
	return &MongoTxManager{client: client}
}

func (m *MongoTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return errors.Store(err, "failed to start session")
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
