package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/domain/domaintest"
)

func TestRealClock(t *testing.T) {
	clock := domain.RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	assert.False(t, got.Before(before), "clock.Now() should not be before reference time")
	assert.False(t, got.After(after), "clock.Now() should not be after reference time")
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.True(t, clock.Now().Equal(fixedTime))
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		clock.Advance(90 * time.Minute)

		assert.True(t, clock.Now().Equal(fixedTime.Add(90*time.Minute)))
	})
}

func TestFromUnix(t *testing.T) {
	t.Run("zero stays zero", func(t *testing.T) {
		assert.True(t, domain.FromUnix(0).IsZero())
	})

	t.Run("converts seconds to UTC time", func(t *testing.T) {
		got := domain.FromUnix(1769853045)

		assert.Equal(t, int64(1769853045), got.Unix())
		assert.Equal(t, time.UTC, got.Location())
	})
}
