package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

func TestIsQuotaError(t *testing.T) {
	assert.False(t, IsQuotaError(nil))
	assert.False(t, IsQuotaError(errors.New("connection refused")))
	assert.True(t, IsQuotaError(errors.New("ERR max requests limit exceeded")))
	assert.True(t, IsQuotaError(errors.New("daily quota reached")))
	assert.True(t, IsQuotaError(errors.New("Max Commands EXCEEDED")))
}

func TestBreakerTripsOnlyOnQuotaErrors(t *testing.T) {
	clock := &stubClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	b := New("test", WithClock(clock))

	assert.True(t, b.Allow())

	b.Record(nil)
	b.Record(errors.New("i/o timeout"))
	assert.True(t, b.Allow())
	assert.Equal(t, 0, b.TripCount())

	b.Record(errors.New("quota exceeded"))
	assert.False(t, b.Allow())
	assert.True(t, b.Open())
	assert.Equal(t, 1, b.TripCount())
}

func TestBreakerCooldownElapses(t *testing.T) {
	clock := &stubClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	var transitions []State
	b := New("test",
		WithClock(clock),
		WithOnStateChange(func(_ string, _, to State) {
			transitions = append(transitions, to)
		}),
	)

	b.Record(errors.New("limit reached"))
	assert.Equal(t, DefaultCooldown, b.Remaining())

	clock.now = clock.now.Add(DefaultCooldown - time.Minute)
	assert.False(t, b.Allow())

	// The close is speculative: no probe, the next call just goes through.
	clock.now = clock.now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	assert.False(t, b.Open())
	assert.Equal(t, time.Duration(0), b.Remaining())
	assert.Equal(t, []State{StateOpen, StateClosed}, transitions)
}

func TestBreakerCustomCooldownAndReset(t *testing.T) {
	clock := &stubClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	b := New("test", WithClock(clock), WithCooldown(time.Hour))

	b.Record(errors.New("quota exceeded"))
	assert.Equal(t, time.Hour, b.Remaining())

	b.Reset()
	assert.True(t, b.Allow())
	assert.Equal(t, 1, b.TripCount())
}

func TestBreakerRetrip(t *testing.T) {
	clock := &stubClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	b := New("test", WithClock(clock), WithCooldown(time.Hour))

	b.Record(errors.New("quota exceeded"))
	clock.now = clock.now.Add(2 * time.Hour)
	assert.True(t, b.Allow())

	// Quota still exhausted: the speculative call fails and re-trips.
	b.Record(errors.New("quota exceeded"))
	assert.False(t, b.Allow())
	assert.Equal(t, 2, b.TripCount())
}
