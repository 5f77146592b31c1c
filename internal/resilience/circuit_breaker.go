package resilience

import (
	"time"
)

// CircuitBreaker is a per-host circuit breaker persisted in a Store, so
// separate CLI invocations share it.
type CircuitBreaker struct {
	config Config
	store  *Store
	host   string
	now    func() time.Time
}

// NewCircuitBreaker creates a breaker for host. Zero config fields take
// their defaults.
func NewCircuitBreaker(store *Store, host string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config: config.withDefaults(),
		store:  store,
		host:   host,
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed. When it may not, it also
// returns how long the breaker stays open. An open breaker whose timeout has
// passed moves to half-open and lets requests through. Store errors allow
// the request.
func (cb *CircuitBreaker) Allow() (bool, time.Duration) {
	state, err := cb.store.Load()
	if err != nil {
		return true, 0
	}
	b := state.Host(cb.host).Breaker
	if !b.IsOpen() {
		return true, 0
	}

	now := cb.now()
	if wait := cb.config.OpenTimeout - now.Sub(b.OpenedAt); wait > 0 {
		return false, wait
	}

	_ = cb.store.Update(func(s *State) error {
		h := s.host(cb.host)
		// Another process may have moved it already.
		if h.Breaker.IsOpen() && now.Sub(h.Breaker.OpenedAt) >= cb.config.OpenTimeout {
			h.Breaker.State = CircuitHalfOpen
			h.Breaker.Successes = 0
			h.Breaker.Failures = 0
			s.UpdatedAt = now
		}
		return nil
	})
	return true, 0
}

// RecordSuccess records a request that reached a healthy server.
func (cb *CircuitBreaker) RecordSuccess() error {
	state, err := cb.store.Load()
	if err == nil {
		b := state.Host(cb.host).Breaker
		if b.IsClosed() && b.Failures == 0 {
			return nil
		}
	}

	return cb.store.Update(func(s *State) error {
		b := &s.host(cb.host).Breaker
		switch {
		case b.IsHalfOpen():
			b.Successes++
			if b.Successes >= cb.config.SuccessThreshold {
				*b = BreakerState{State: CircuitClosed, LastFailureAt: b.LastFailureAt}
			}
		case b.IsClosed():
			b.Failures = 0
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}

// RecordFailure records a network failure or server error.
func (cb *CircuitBreaker) RecordFailure() error {
	return cb.store.Update(func(s *State) error {
		b := &s.host(cb.host).Breaker
		now := cb.now()
		b.LastFailureAt = now

		switch {
		case b.IsClosed():
			b.Failures++
			if b.Failures >= cb.config.FailureThreshold {
				b.State = CircuitOpen
				b.OpenedAt = now
			}
		case b.IsHalfOpen():
			b.State = CircuitOpen
			b.OpenedAt = now
			b.Successes = 0
		}
		s.UpdatedAt = now
		return nil
	})
}

// State returns the breaker state as a caller would see it now: an open
// breaker past its timeout reports half_open.
func (cb *CircuitBreaker) State() (string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	b := state.Host(cb.host).Breaker
	switch {
	case b.IsOpen() && cb.now().Sub(b.OpenedAt) >= cb.config.OpenTimeout:
		return CircuitHalfOpen, nil
	case b.State == "":
		return CircuitClosed, nil
	}
	return b.State, nil
}

// Reset closes the breaker and clears the host's Retry-After window.
func (cb *CircuitBreaker) Reset() error {
	return cb.store.Update(func(s *State) error {
		delete(s.Hosts, cb.host)
		s.UpdatedAt = cb.now()
		return nil
	})
}
