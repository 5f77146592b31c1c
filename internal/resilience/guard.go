package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/staybook/staybook-cli/internal/output"
)

// Guard gates API requests to one host. It rejects requests inside a
// Retry-After window or while the circuit breaker is open, and records each
// outcome afterwards. It satisfies api.Guard.
type Guard struct {
	store   *Store
	host    string
	config  Config
	breaker *CircuitBreaker
	now     func() time.Time
}

// NewGuard creates a guard for host (an origin such as
// "https://api.example.com").
func NewGuard(store *Store, host string, config Config) *Guard {
	g := &Guard{
		store:  store,
		host:   host,
		config: config.withDefaults(),
		now:    time.Now,
	}
	g.breaker = NewCircuitBreaker(store, host, g.config)
	g.breaker.now = func() time.Time { return g.now() }
	return g
}

// Before runs ahead of every request. Store failures never block.
func (g *Guard) Before(context.Context) error {
	state, err := g.store.Load()
	if err != nil {
		return nil //nolint:nilerr // fail open
	}
	hs := state.Host(g.host)
	if wait := hs.BlockedFor(g.now()); wait > 0 {
		return output.ErrRateLimit(seconds(wait))
	}

	if ok, wait := g.breaker.Allow(); !ok {
		return &output.Error{
			Code:      output.CodeNetwork,
			Message:   "API temporarily unavailable",
			Hint:      fmt.Sprintf("Recent requests to %s kept failing. Try again in %d seconds", g.host, seconds(wait)),
			Retryable: true,
		}
	}
	return nil
}

// After records the outcome of a request. status is zero when no response
// arrived. A 429 opens the Retry-After window without counting as a failure;
// transport errors and 5xx count against the breaker; anything else is a
// success. Canceled requests are ignored.
func (g *Guard) After(status int, retryAfter time.Duration, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	switch {
	case status == 429:
		g.block(retryAfter)
	case status >= 500 || (status == 0 && isTransportFailure(err)):
		_ = g.breaker.RecordFailure()
	case status > 0:
		_ = g.breaker.RecordSuccess()
	}
}

func (g *Guard) block(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = g.config.DefaultRetryAfter
	}
	retryAfter = min(retryAfter, g.config.MaxRetryAfter)
	until := g.now().Add(retryAfter)

	_ = g.store.Update(func(s *State) error {
		h := s.host(g.host)
		if until.After(h.RetryAfterUntil) {
			h.RetryAfterUntil = until
		}
		s.UpdatedAt = g.now()
		return nil
	})
}

func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	e := output.AsError(err)
	return e == nil || e.Code == output.CodeNetwork || e.Code == output.CodeTimeout
}

// Status describes the guard for a host.
type Status struct {
	Host       string        `json:"host"`
	Circuit    string        `json:"circuit"`
	Failures   int           `json:"failures"`
	RetryAfter time.Duration `json:"retry_after"`
	OpenFor    time.Duration `json:"open_for"`
}

// Healthy reports whether requests currently go through.
func (s Status) Healthy() bool {
	return s.Circuit != CircuitOpen && s.RetryAfter == 0
}

// Status returns the current state for the guard's host.
func (g *Guard) Status() (Status, error) {
	state, err := g.store.Load()
	if err != nil {
		return Status{Host: g.host, Circuit: CircuitClosed}, err
	}
	now := g.now()
	h := state.Host(g.host)
	st := Status{
		Host:       g.host,
		Circuit:    h.Breaker.State,
		Failures:   h.Breaker.Failures,
		RetryAfter: h.BlockedFor(now),
	}
	if st.Circuit == "" {
		st.Circuit = CircuitClosed
	}
	if h.Breaker.IsOpen() {
		st.OpenFor = g.config.OpenTimeout - now.Sub(h.Breaker.OpenedAt)
		if st.OpenFor <= 0 {
			st.Circuit = CircuitHalfOpen
			st.OpenFor = 0
		}
	}
	return st, nil
}

// Reset forgets everything recorded for the guard's host.
func (g *Guard) Reset() error {
	return g.breaker.Reset()
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
