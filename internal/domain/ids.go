// Package domain contains the core types and sentinels of the session client.
// No infrastructure dependencies allowed - this is the innermost ring.
package domain

import "github.com/google/uuid"

// RequestID correlates one identity call across client logs and server
// logs. It travels as the X-Request-ID header.
type RequestID struct {
	value string
}

// GenerateRequestID creates a new random RequestID.
func GenerateRequestID() RequestID {
	return RequestID{value: uuid.NewString()}
}

func (id RequestID) String() string { return id.value }
