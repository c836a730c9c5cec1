package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// User-facing validation messages.
const (
	MsgUsernameRequired = "Username is required"
	MsgPasswordRequired = "Password is required"
)

// Credentials is a submitted username/password pair.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRegistration checks a registration form and returns the message
// to show the user, or "" when the form is acceptable. The username is
// checked before the password.
func ValidateRegistration(c Credentials) string {
	err := validate.Struct(c)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	if verrs[0].Field() == "Username" {
		return MsgUsernameRequired
	}
	return MsgPasswordRequired
}
