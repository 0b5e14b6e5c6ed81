package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rsvp-server/models"
	"rsvp-server/store"
	"rsvp-server/utils/errors"
	"rsvp-server/utils/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users     store.UserStore
	jwtSecret string
	logger    *slog.Logger
	now       func() time.Time
}

// ProfileInput carries the editable profile fields of a user.
type ProfileInput struct {
	FirstName string `json:"first_name" validate:"required,max=50,person_name"`
	LastName  string `json:"last_name" validate:"required,max=50,person_name"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,username"`
	Phone     string `json:"phone" validate:"required,phone"`
	DOB       string `json:"dob" validate:"required,datetime=2006-01-02"`
	Gender    string `json:"gender" validate:"required,oneof=male female other"`
}

// normalize puts email and username in the form the unique indexes
// compare.
func (p *ProfileInput) normalize() {
	p.Email = normalizeEmail(p.Email)
	p.Username = strings.TrimSpace(p.Username)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p ProfileInput) profile() store.Profile {
	return store.Profile{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Username:  p.Username,
		Phone:     p.Phone,
		DOB:       p.DOB,
		Gender:    p.Gender,
	}
}

func NewUserService(users store.UserStore, jwtSecret string, logger *slog.Logger) *UserService {
	return &UserService{
		users:     users,
		jwtSecret: jwtSecret,
		logger:    logger,
		now:       time.Now,
	}
}

// GetUser retrieves a user by id. Credentials never leave the service.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := validation.CheckObjectID(userID, "userId")
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.Validation("username is required")
	}
	user, err := s.users.FindOne(ctx, store.UserByUsername(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NotFound("user %s not found", username)
	}
	return user, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.Validation("email is required")
	}
	user, err := s.users.FindOne(ctx, store.UserByEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NotFound("user with email %s not found", email)
	}
	return user, nil
}

// UpdateProfile replaces the caller's profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, callerID string, input ProfileInput) (*models.User, error) {
	input.normalize()
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	return s.update(ctx, callerID, store.SetProfile(input.profile()))
}

func (s *UserService) VerifyUser(ctx context.Context, callerID string) (*models.User, error) {
	return s.update(ctx, callerID, store.SetVerified())
}

func (s *UserService) UpdatePassword(ctx context.Context, callerID, password string) (*models.User, error) {
	input := struct {
		Password string `validate:"required,min=6,max=72,password"`
	}{password}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "HASH_ERROR", "failed to hash password", errors.ErrInternal.Status)
	}
	return s.update(ctx, callerID, store.SetPasswordHash(string(hash)))
}

func (s *UserService) UpdatePhotoURL(ctx context.Context, callerID, url string) (*models.User, error) {
	input := struct {
		URL string `validate:"required,url"`
	}{url}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	return s.update(ctx, callerID, store.SetPhotoURL(url))
}

// update applies a single-document mutation. A write that matches no
// document is reported as not found, never as success.
func (s *UserService) update(ctx context.Context, userID string, update store.Update[models.User]) (*models.User, error) {
	id, err := validation.CheckObjectID(userID, "userId")
	if err != nil {
		return nil, err
	}
	matched, err := s.users.Apply(ctx, store.UserByID(id), update)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, errors.NotFound("user %s not found", id.Hex())
	}
	return s.users.Get(ctx, id)
}

func (s *UserService) insert(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	user.CreatedAt = s.now()
	return s.users.Insert(ctx, user)
}
