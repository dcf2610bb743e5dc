package command

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/pkg/identityapi"
)

// Field order used when reporting form errors.
var (
	loginFormFields    = []string{"email", "password"}
	registerFormFields = []string{"email", "username", "name", "password", "password2"}
)

// Form messages shown before anything is sent to the identity service.
const (
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
)

// LoginForm is the input of authctl login.
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the form is filled in.
func (f LoginForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required),
	)
}

// RegisterForm is the input of authctl register.
type RegisterForm struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Validate checks the confirmation matches before the length rule, the
// order the registration page reported them in.
func (f RegisterForm) Validate() error {
	if f.Password != f.Password2 {
		return errors.New(MsgPasswordMismatch)
	}
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Password,
			validation.Required,
			validation.Length(domain.MinPasswordLength, 0).Error(MsgPasswordTooShort),
		),
		validation.Field(&f.Password2, validation.By(ValidateStringEquals(f.Password))),
	)
}

// Payload converts the form into the registration request body.
func (f RegisterForm) Payload() identityapi.RegistrationPayload {
	return identityapi.RegistrationPayload{
		Email:     f.Email,
		Username:  f.Username,
		Name:      f.Name,
		Password:  f.Password,
		Password2: f.Password2,
	}
}

// ValidateStringEquals returns a rule that requires the value to equal str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(MsgPasswordMismatch)
		}
		return nil
	}
}

// formMessage flattens a validation error into one line, fields in form
// order.
func formMessage(err error, order ...string) string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, name := range order {
		if fe, ok := verrs[name]; ok && fe != nil {
			parts = append(parts, name+": "+fe.Error())
		}
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
