package services

import (
	"context"
	"log/slog"

	"rsvp-server/models"
	"rsvp-server/store"
	"rsvp-server/utils/errors"
	"rsvp-server/utils/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SocialGraph maintains the follower/following edge between two users.
// Each edge is two writes, target side first; both are set operations so
// repeating either is harmless.
type SocialGraph struct {
	users  store.UserStore
	logger *slog.Logger
}

func NewSocialGraph(users store.UserStore, logger *slog.Logger) *SocialGraph {
	return &SocialGraph{users: users, logger: logger}
}

// Follow records that followerID follows targetID and returns the
// follower's updated profile.
func (g *SocialGraph) Follow(ctx context.Context, targetID, followerID string) (*models.User, error) {
	target, follower, err := g.resolve(ctx, targetID, followerID)
	if err != nil {
		return nil, err
	}
	return g.link(ctx, "follow", target, follower,
		store.AddFollower(follower), store.AddFollowing(target))
}

// Unfollow removes the edge. Unfollowing a user that is not followed is a
// no-op.
func (g *SocialGraph) Unfollow(ctx context.Context, targetID, followerID string) (*models.User, error) {
	target, follower, err := g.resolve(ctx, targetID, followerID)
	if err != nil {
		return nil, err
	}
	return g.link(ctx, "unfollow", target, follower,
		store.RemoveFollower(follower), store.RemoveFollowing(target))
}

func (g *SocialGraph) ListFollowers(ctx context.Context, userID string) ([]models.User, error) {
	user, err := g.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.users.List(ctx, user.Followers)
}

func (g *SocialGraph) ListFollowing(ctx context.Context, userID string) ([]models.User, error) {
	user, err := g.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.users.List(ctx, user.Following)
}

func (g *SocialGraph) get(ctx context.Context, userID string) (*models.User, error) {
	id, err := validation.CheckObjectID(userID, "userId")
	if err != nil {
		return nil, err
	}
	return g.users.Get(ctx, id)
}

// resolve validates both ids and checks that both users exist before any
// write is attempted.
func (g *SocialGraph) resolve(ctx context.Context, targetID, followerID string) (primitive.ObjectID, primitive.ObjectID, error) {
	target, err := validation.CheckObjectID(targetID, "targetId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	follower, err := validation.CheckObjectID(followerID, "followerId")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	if target == follower {
		return primitive.NilObjectID, primitive.NilObjectID, errors.Validation("users cannot follow themselves")
	}
	for _, id := range []primitive.ObjectID{target, follower} {
		if _, err := g.users.Get(ctx, id); err != nil {
			return primitive.NilObjectID, primitive.NilObjectID, err
		}
	}
	return target, follower, nil
}

func (g *SocialGraph) link(ctx context.Context, op string, target, follower primitive.ObjectID,
	targetUpdate, followerUpdate store.Update[models.User]) (*models.User, error) {
	matched, err := g.users.Apply(ctx, store.UserByID(target), targetUpdate)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errors.NotFound("user %s not found", target.Hex())
	}

	matched, err = g.users.Apply(ctx, store.UserByID(follower), followerUpdate)
	if err != nil || matched == 0 {
		p := &errors.PartialUpdateError{
			Op:       op,
			UserID:   follower.Hex(),
			TargetID: target.Hex(),
			Step:     2,
			StepName: "update follower's following",
			Err:      err,
		}
		if err == nil {
			p.Err = errors.NotFound("user %s not found", follower.Hex())
		}
		g.logger.Error("consistency incident: asymmetric follow edge",
			"op", op, "target_id", target.Hex(), "follower_id", follower.Hex(), "error", p.Err)
		return nil, p
	}

	g.logger.Debug("follow edge updated", "op", op, "target_id", target.Hex(), "follower_id", follower.Hex())
	return g.users.Get(ctx, follower)
}
