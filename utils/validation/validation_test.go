package validation

import (
	"testing"

	"rsvp-server/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type signup struct {
	FirstName string `validate:"required,person_name"`
	Username  string `validate:"required,username"`
	Email     string `validate:"required,email"`
	Phone     string `validate:"required,phone"`
	Password  string `validate:"required,min=6,password"`
}

func TestStruct(t *testing.T) {
	ok := signup{FirstName: "Ada", Username: "ada_l", Email: "ada@example.com", Phone: "201-555-0100", Password: "Secr3t!"}
	require.NoError(t, Struct(ok))

	bad := ok
	bad.Email = "nope"
	bad.Password = "password"
	err := Struct(bad)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "Email failed email")
	assert.Contains(t, apiErr.Message, "Password failed password")
}

func TestCheckObjectID(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := CheckObjectID(" "+id.Hex()+" ", "eventId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = CheckObjectID("", "eventId")
	assert.True(t, errors.IsValidation(err))

	_, err = CheckObjectID("xyz", "eventId")
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "eventId")
}
