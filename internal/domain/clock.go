package domain

import "time"

// Clock provides the current time. Token inspection compares expiry claims
// against it, so tests can pin "now" without sleeping.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// FromUnix converts epoch seconds (the JWT NumericDate unit) to UTC time.
// Zero maps to the zero time so absent claims stay distinguishable.
func FromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

var _ Clock = RealClock{}
