// Package token reads the claims of a stored access token. It never
// verifies signatures: the client holds no key, and the identity service
// remains the authority on validity.
package token

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the SimpleJWT access token claim set.
type Claims struct {
	jwt.RegisteredClaims
	UserID    UserID `json:"user_id"`
	TokenType string `json:"token_type"`
}

// UserID accepts both numeric and string user_id claims; Django primary
// keys are usually integers.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*u = UserID(n.String())
	return nil
}
