package validation

import (
	"fmt"
	"regexp"
	"strings"

	"rsvp-server/utils/errors"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	validate = newValidator()

	namePattern     = regexp.MustCompile(`^[A-Za-z][A-Za-z' -]*$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	phonePattern    = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	// Passwords need an upper case letter, a digit and a symbol.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(s, "0123456789") &&
			strings.ContainsAny(s, "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~")
	})
	return v
}

// Struct validates v against its `validate` tags and returns a
// ValidationError naming every failing field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("%v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.Validation("invalid input: %s", strings.Join(fields, "; "))
}

// CheckObjectID parses a hex object id. name is used in the error message.
func CheckObjectID(raw, name string) (primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return primitive.NilObjectID, errors.Validation("%s is required", name)
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errors.Validation("%s is not a valid object id", name)
	}
	return id, nil
}
