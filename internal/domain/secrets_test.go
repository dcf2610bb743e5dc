package domain_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/authsession/internal/domain"
)

func TestSecretString(t *testing.T) {
	secret := domain.SecretString("eyJhbGciOiJIUzI1NiJ9.payload.sig")

	t.Run("String returns REDACTED", func(t *testing.T) {
		assert.Equal(t, "[REDACTED]", secret.String())
	})

	t.Run("format verbs never leak", func(t *testing.T) {
		for _, verb := range []string{"%s", "%v", "%+v", "%#v", "%q"} {
			out := fmt.Sprintf(verb, secret)
			assert.NotContains(t, out, "payload", "verb %s leaked the secret", verb)
		}
	})

	t.Run("Expose returns actual value", func(t *testing.T) {
		assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.payload.sig", secret.Expose())
	})

	t.Run("IsEmpty", func(t *testing.T) {
		assert.False(t, secret.IsEmpty())
		assert.True(t, domain.SecretString("").IsEmpty())
	})

	t.Run("slog output contains REDACTED", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		logger.Info("stored", "token", secret)

		assert.Contains(t, buf.String(), "[REDACTED]")
		assert.NotContains(t, buf.String(), "payload")
	})
}
