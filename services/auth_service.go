package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"rsvp-server/models"
	"rsvp-server/utils/errors"
	"rsvp-server/utils/validation"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// RegisterInput is the registration payload.
type RegisterInput struct {
	ProfileInput
	Password string `json:"password" validate:"required,min=6,max=72,password"`
}

// Register creates a new user and returns its id
func (s *UserService) Register(ctx context.Context, input RegisterInput) (string, error) {
	input.normalize()
	if err := validation.Struct(input); err != nil {
		return "", err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}

	user := models.User{
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Email:          input.Email,
		Username:       input.Username,
		Phone:          input.Phone,
		DOB:            input.DOB,
		Gender:         input.Gender,
		HashedPassword: string(passwordHash),
	}
	id, err := s.insert(ctx, &user)
	if err != nil {
		return "", err
	}
	s.logger.Info("user registered", "user_id", id.Hex(), "username", user.Username)
	return id.Hex(), nil
}

// Login authenticates a user and returns a JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.IsNotFound(err) {
		return "", errors.NewAPIError(errors.ErrUnauthorized.Code, "invalid username or password", http.StatusUnauthorized)
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", errors.NewAPIError(errors.ErrUnauthorized.Code, "invalid username or password", http.StatusUnauthorized)
	}
	return s.issueToken(user.ID.Hex())
}

func (s *UserService) issueToken(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userID": userID,
		"iat":    now.Unix(),
		"exp":    now.Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", errors.Wrap(err, "TOKEN_ERROR", "failed to sign token", http.StatusInternalServerError)
	}
	return signed, nil
}
