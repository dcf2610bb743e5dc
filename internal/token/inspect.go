package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aelexs/authsession/internal/domain"
)

// Info is the display view of an access token.
type Info struct {
	Subject   string    `json:"sub,omitempty" yaml:"sub,omitempty"`
	UserID    string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	TokenType string    `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	ID        string    `json:"jti,omitempty" yaml:"jti,omitempty"`
	IssuedAt  time.Time `json:"iat,omitzero" yaml:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitzero" yaml:"exp,omitempty"`
}

// Expired reports whether exp has passed. A token without exp never
// expires by this check.
func (i Info) Expired(clock domain.Clock) bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return !clock.Now().Before(i.ExpiresAt)
}

// ExpiresIn returns the time left before exp, zero once expired or when
// exp is absent.
func (i Info) ExpiresIn(clock domain.Clock) time.Duration {
	if i.ExpiresAt.IsZero() {
		return 0
	}
	if d := i.ExpiresAt.Sub(clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Inspect decodes the claims of access without verifying its signature.
func Inspect(access domain.SecretString) (Info, error) {
	if access.IsEmpty() {
		return Info{}, fmt.Errorf("%w: empty token", domain.ErrMalformedToken)
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(access.Expose(), &claims); err != nil {
		return Info{}, fmt.Errorf("%w: %w", domain.ErrMalformedToken, err)
	}

	info := Info{
		Subject:   claims.Subject,
		UserID:    string(claims.UserID),
		TokenType: claims.TokenType,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = domain.FromUnix(claims.IssuedAt.Unix())
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = domain.FromUnix(claims.ExpiresAt.Unix())
	}
	return info, nil
}
