// Package identityapi defines the JSON wire types of the identity service.
// The service is a Django REST backend using SimpleJWT token pairs.
package identityapi

import (
	"encoding/json"
	"log/slog"
)

// Error body fields produced by Django REST Framework validation errors.
const (
	FieldDetail         = "detail"
	FieldNonFieldErrors = "non_field_errors"
)

// LoginRequest is the body of POST /users/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogValue keeps the password out of logs.
func (r LoginRequest) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", r.Email))
}

// TokenResponse is the success body of POST /users/login/.
// Either field may be missing on a misbehaving server; callers must check.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (r TokenResponse) Complete() bool {
	return r.Access != "" && r.Refresh != ""
}

// LogValue reports which tokens are present, never their values.
func (r TokenResponse) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("has_access", r.Access != ""),
		slog.Bool("has_refresh", r.Refresh != ""),
	)
}

// RegistrationPayload is the body of POST /users/register/.
// Password confirmation and length rules are enforced by the form layer;
// the session manager forwards the payload as-is.
type RegistrationPayload struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// LogValue keeps both passwords out of logs.
func (p RegistrationPayload) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", p.Email),
		slog.String("username", p.Username),
	)
}

// RegistrationFields lists the payload fields in form order. The identity
// service reports validation failures keyed by these names.
var RegistrationFields = []string{"email", "username", "name", "password", "password2"}

// Profile is the body of GET /users/profile/. Unknown fields are kept in Raw.
type Profile struct {
	Email    string          `json:"email"`
	Username string          `json:"username"`
	Name     string          `json:"name"`
	Raw      json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the full document.
func (p *Profile) UnmarshalJSON(data []byte) error {
	type known Profile
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	*p = Profile(k)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

var (
	_ slog.LogValuer = LoginRequest{}
	_ slog.LogValuer = TokenResponse{}
	_ slog.LogValuer = RegistrationPayload{}
)
