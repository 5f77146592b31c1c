package resilience

import (
	"time"
)

// StateVersion is the current state schema version.
const StateVersion = 2

// State is the persisted request health, keyed by API host.
type State struct {
	Version   int                   `json:"version"`
	Hosts     map[string]*HostState `json:"hosts"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// HostState tracks one API host.
type HostState struct {
	Breaker BreakerState `json:"breaker"`

	// RetryAfterUntil is set from a 429 Retry-After header. No request to the
	// host is sent before it passes.
	RetryAfterUntil time.Time `json:"retry_after_until,omitzero"`
}

// BreakerState is the circuit breaker for one host.
//
//   - closed: requests flow; consecutive failures are counted
//   - open: requests fail fast until the open timeout passes
//   - half_open: requests are let through to probe the server
type BreakerState struct {
	State         string    `json:"state"`
	Failures      int       `json:"failures"`
	Successes     int       `json:"successes"`
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`
	OpenedAt      time.Time `json:"opened_at,omitzero"`
}

// Circuit breaker states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// IsClosed reports whether requests flow normally.
func (b *BreakerState) IsClosed() bool {
	return b.State == "" || b.State == CircuitClosed
}

// IsOpen reports whether requests fail fast.
func (b *BreakerState) IsOpen() bool {
	return b.State == CircuitOpen
}

// IsHalfOpen reports whether the breaker is probing.
func (b *BreakerState) IsHalfOpen() bool {
	return b.State == CircuitHalfOpen
}

// BlockedFor returns how long until the Retry-After window ends, or zero.
func (h *HostState) BlockedFor(now time.Time) time.Duration {
	if h.RetryAfterUntil.IsZero() || !now.Before(h.RetryAfterUntil) {
		return 0
	}
	return h.RetryAfterUntil.Sub(now)
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Hosts:     make(map[string]*HostState),
		UpdatedAt: time.Now(),
	}
}

// Host returns the state for host, or a closed breaker if none is recorded.
// The returned value is not added to s.
func (s *State) Host(host string) HostState {
	if h := s.Hosts[host]; h != nil {
		return *h
	}
	return HostState{Breaker: BreakerState{State: CircuitClosed}}
}

// host returns the mutable state for host, creating it.
func (s *State) host(host string) *HostState {
	h := s.Hosts[host]
	if h == nil {
		h = &HostState{Breaker: BreakerState{State: CircuitClosed}}
		s.Hosts[host] = h
	}
	return h
}
