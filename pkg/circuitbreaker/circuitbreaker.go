// Package circuitbreaker implements a cooldown-style circuit breaker for the
// cache backend. Unlike a classic failure-counting breaker, this one trips on
// a single provider-reported quota/limit error and stays open for a fixed
// cooldown window (free-tier KV providers report quota exhaustion that will
// not clear for hours, so probing earlier is pointless).
// No external dependencies beyond the internal clock abstraction.
package circuitbreaker

import (
	"strings"
	"sync"
	"time"

	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

// State represents the current state of the breaker.
type State int

const (
	// StateClosed is the normal state - calls are allowed through.
	StateClosed State = iota
	// StateOpen is the tripped state - calls are blocked until the cooldown elapses.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// DefaultCooldown is how long the breaker stays open after a quota error.
const DefaultCooldown = 24 * time.Hour

// IsQuotaError reports whether a provider error looks like a quota/limit
// rejection. Matching is substring-based because providers report these as
// free-form text ("max requests limit exceeded", "quota exceeded", ...).
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "exceeded")
}

// Config holds breaker configuration.
type Config struct {
	// Name identifies this breaker (for logging).
	Name string

	// Cooldown is how long to stay open after tripping.
	// Default: DefaultCooldown (24h).
	Cooldown time.Duration

	// Classify determines whether an error should trip the breaker.
	// If nil, IsQuotaError is used.
	Classify func(error) bool

	// Clock supplies the current time. If nil, the system clock is used.
	Clock timeutil.Clock

	// OnStateChange is called when the breaker state changes.
	OnStateChange func(name string, from, to State)
}

// Option is a functional option for configuring the breaker.
type Option func(*Config)

// WithCooldown sets the cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithClassify sets the trip-classification function.
func WithClassify(fn func(error) bool) Option {
	return func(c *Config) {
		c.Classify = fn
	}
}

// WithClock sets the clock used for cooldown accounting.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// Breaker implements the cooldown circuit breaker.
type Breaker struct {
	config Config

	mu        sync.Mutex
	state     State
	openUntil time.Time
	tripCount int
}

// New creates a new Breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	config := Config{
		Name:     name,
		Cooldown: DefaultCooldown,
		Classify: IsQuotaError,
		Clock:    timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Classify == nil {
		config.Classify = IsQuotaError
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{}
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. When the cooldown has elapsed the
// breaker closes speculatively and the call is allowed through; no active
// health probe is performed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}

	if !b.config.Clock.Now().Before(b.openUntil) {
		b.setState(StateClosed)
		return true
	}
	return false
}

// Record inspects the result of a call and trips the breaker if the error is
// classified as a quota/limit rejection. Non-quota errors never trip it; the
// provider may be flaky without being rate limited.
func (b *Breaker) Record(err error) {
	if err == nil || !b.config.Classify(err) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.openUntil = b.config.Clock.Now().Add(b.config.Cooldown)
	b.tripCount++
	b.setState(StateOpen)
}

// Open reports whether the breaker is currently open (cooldown running).
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.config.Clock.Now().Before(b.openUntil) {
		b.setState(StateClosed)
	}
	return b.state == StateOpen
}

// Remaining returns the time left on the cooldown, or zero when closed.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}
	remaining := b.openUntil.Sub(b.config.Clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TripCount returns how many times the breaker has tripped since creation.
func (b *Breaker) TripCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripCount
}

// Reset closes the breaker immediately, discarding any running cooldown.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.openUntil = time.Time{}
	b.setState(StateClosed)
}

// Name returns the name of the breaker.
func (b *Breaker) Name() string {
	return b.config.Name
}

// setState transitions to a new state. Caller must hold b.mu.
func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, oldState, newState)
	}
}
