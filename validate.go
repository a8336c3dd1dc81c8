package session

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

var usernameFormat = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p loginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Username,
			validation.Required,
			validation.Length(3, 50),
		),
		validation.Field(
			&p.Password,
			validation.Required,
			validation.Length(8, 100),
		),
	)
}

type registerPayload struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (p registerPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Username,
			validation.Required,
			validation.Length(3, 50),
			validation.Match(usernameFormat),
		),
		validation.Field(
			&p.Password,
			validation.Required,
			validation.Length(8, 100),
		),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(stringEquals(p.Password, "passwords must match")),
		),
	)
}

func stringEquals(expected, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

// wrapValidation converts an ozzo validation result into the package's
// ErrValidation shape, keeping the per-field message as the user-facing text.
func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, ErrValidation.Category, err.Error()).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}
