package domain

import "log/slog"

// SecretString wraps credentials (passwords, access and refresh tokens).
// It implements slog.LogValuer and fmt.Stringer so a token handed to a
// logger or a format verb renders as a placeholder.
type SecretString string

// String returns a redacted placeholder, never the actual value.
func (s SecretString) String() string {
	return "[REDACTED]"
}

// GoString covers the %#v verb.
func (s SecretString) GoString() string {
	return `domain.SecretString("[REDACTED]")`
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Expose returns the actual secret value.
// Call it only at the boundary that needs the raw credential: the wire
// encoder, the store writer, the Authorization header.
func (s SecretString) Expose() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}

var _ slog.LogValuer = SecretString("")
