package services

import (
	"context"
	"net/http"
	"testing"

	"rsvp-server/utils/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration(username string) RegisterInput {
	return RegisterInput{
		ProfileInput: ProfileInput{
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     username + "@Example.com",
			Username:  username,
			Phone:     "201-555-0100",
			DOB:       "1990-12-09",
			Gender:    "female",
		},
		Password: "Cobol#1959",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()

	id, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "Cobol#1959", user.HashedPassword)
	assert.NotNil(t, user.InvitedEvents)
	assert.NotNil(t, user.Followers)

	token, err := svc.Login(ctx, "grace", "Cobol#1959")
	require.NoError(t, err)
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, id, claims["userID"])
	assert.Contains(t, claims, "exp")
}

func TestRegister_Errors(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, validRegistration("grace"))
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	bad := validRegistration("ada")
	bad.Password = "weak"
	_, err = svc.Register(ctx, bad)
	assert.True(t, errors.IsValidation(err))

	bad = validRegistration("ada")
	bad.DOB = "09/12/1990"
	_, err = svc.Register(ctx, bad)
	assert.True(t, errors.IsValidation(err))
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)

	for _, tc := range []struct{ username, password string }{
		{"grace", "Wrong#123"},
		{"nobody", "Cobol#1959"},
	} {
		_, err := svc.Login(ctx, tc.username, tc.password)
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	}
}

func TestUserUpdates(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()
	id, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)

	profile := validRegistration("admiral").ProfileInput
	profile.LastName = "Murray"
	user, err := svc.UpdateProfile(ctx, id, profile)
	require.NoError(t, err)
	assert.Equal(t, "admiral", user.Username)
	assert.Equal(t, "Murray", user.LastName)

	byName, err := svc.GetUserByUsername(ctx, "admiral")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID.Hex())
	_, err = svc.GetUserByUsername(ctx, "grace")
	assert.True(t, errors.IsNotFound(err))

	user, err = svc.VerifyUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	user, err = svc.UpdatePhotoURL(ctx, id, "https://cdn.example.com/grace.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/grace.png", user.ProfilePhotoURL)
	_, err = svc.UpdatePhotoURL(ctx, id, "not a url")
	assert.True(t, errors.IsValidation(err))

	_, err = svc.UpdatePassword(ctx, id, "Navy$1943")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "admiral", "Navy$1943")
	require.NoError(t, err)
}

func TestUserUpdates_UnknownUser(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ghost := "64b7f0c2a1b2c3d4e5f60718"

	_, err := svc.VerifyUser(context.Background(), ghost)
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.UpdateProfile(context.Background(), ghost, validRegistration("ghost").ProfileInput)
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.GetUser(context.Background(), "xyz")
	assert.True(t, errors.IsValidation(err))
}

func TestUpdateProfile_NormalizesEmail(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()
	grace, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)
	ada, err := svc.Register(ctx, validRegistration("ada"))
	require.NoError(t, err)

	profile := validRegistration("grace").ProfileInput
	profile.Email = "  Foo@X.com "
	profile.Username = " grace "
	user, err := svc.UpdateProfile(ctx, grace, profile)
	require.NoError(t, err)
	assert.Equal(t, "foo@x.com", user.Email)
	assert.Equal(t, "grace", user.Username)

	// A case variant of an existing email is the same email.
	profile = validRegistration("ada").ProfileInput
	profile.Email = "FOO@x.COM"
	_, err = svc.UpdateProfile(ctx, ada, profile)
	assert.ErrorIs(t, err, errors.ErrConflict)

	found, err := svc.GetUserByEmail(ctx, "Foo@X.com")
	require.NoError(t, err)
	assert.Equal(t, grace, found.ID.Hex())
}

func TestGetUserByEmail(t *testing.T) {
	e := newEnv()
	svc := NewUserService(e.users, "secret", discardLogger())
	ctx := context.Background()
	id, err := svc.Register(ctx, validRegistration("grace"))
	require.NoError(t, err)

	user, err := svc.GetUserByEmail(ctx, " GRACE@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID.Hex())

	_, err = svc.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.GetUserByEmail(ctx, "  ")
	assert.True(t, errors.IsValidation(err))
}
