package auth

import (
	"chat-relay/errors"
	goerrors "errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// RegisterRequest mirrors the account creation payload: a handle, a contact
// address and a free-form password. Usernames arrive already lower-cased.
type RegisterRequest struct {
	Username string `validate:"required,max=64,handle"`
	Email    string `validate:"required,max=254,email"`
	Password string `validate:"required,max=128,notblank"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// A handle is what peers type to find each other: no spaces, no control characters
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r)
		}) < 0
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateRegister reports password problems as ErrInvalidPassword and
// returns the raw validation errors for every other field.
func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if goerrors.As(err, &fields) {
		for _, field := range fields {
			if field.StructField() == "Password" {
				return errors.ErrInvalidPassword
			}
		}
	}
	return err
}
