package resilience

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testHost = "https://api.example.com"

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(NewStore(t.TempDir()), testHost, cfg)
	cb.now = clk.now
	return cb, clk
}

func TestCircuitBreakerDefaultsClosed(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{})

	state, err := cb.State()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != CircuitClosed {
		t.Errorf("expected closed state, got %s", state)
	}
	if ok, _ := cb.Allow(); !ok {
		t.Error("expected request to be allowed when circuit is closed")
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 3, OpenTimeout: 30 * time.Second})

	for range 3 {
		if err := cb.RecordFailure(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	state, _ := cb.State()
	if state != CircuitOpen {
		t.Errorf("expected open state, got %s", state)
	}
	ok, wait := cb.Allow()
	if ok {
		t.Error("expected request to be rejected when circuit is open")
	}
	if wait != 30*time.Second {
		t.Errorf("expected 30s wait, got %v", wait)
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 3})

	_ = cb.RecordFailure()
	_ = cb.RecordFailure()
	if err := cb.RecordSuccess(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = cb.RecordFailure()
	_ = cb.RecordFailure()

	state, _ := cb.State()
	if state != CircuitClosed {
		t.Errorf("expected closed state after interleaved success, got %s", state)
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb, clk := newTestBreaker(t, Config{FailureThreshold: 1, OpenTimeout: 10 * time.Second})

	_ = cb.RecordFailure()
	clk.advance(11 * time.Second)

	state, _ := cb.State()
	if state != CircuitHalfOpen {
		t.Errorf("expected half_open state, got %s", state)
	}
	if ok, _ := cb.Allow(); !ok {
		t.Fatal("expected probe request to be allowed")
	}

	if err := cb.RecordSuccess(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ = cb.State()
	if state != CircuitClosed {
		t.Errorf("expected closed state after successful probe, got %s", state)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(t, Config{FailureThreshold: 1, OpenTimeout: 10 * time.Second})

	_ = cb.RecordFailure()
	clk.advance(11 * time.Second)
	cb.Allow()
	_ = cb.RecordFailure()

	if ok, _ := cb.Allow(); ok {
		t.Error("expected failed probe to reopen the circuit")
	}
}

func TestCircuitBreakerHostsAreIndependent(t *testing.T) {
	store := NewStore(t.TempDir())
	prod := NewCircuitBreaker(store, testHost, Config{FailureThreshold: 1})
	dev := NewCircuitBreaker(store, "http://localhost:8080", Config{FailureThreshold: 1})

	_ = prod.RecordFailure()

	if ok, _ := prod.Allow(); ok {
		t.Error("expected prod circuit to be open")
	}
	if ok, _ := dev.Allow(); !ok {
		t.Error("expected dev circuit to be unaffected")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t, Config{FailureThreshold: 1})

	_ = cb.RecordFailure()
	if err := cb.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := cb.Allow(); !ok {
		t.Error("expected reset circuit to allow requests")
	}
}

func TestStoreCorruptFileStartsOver(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := os.WriteFile(filepath.Join(dir, StateFileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Hosts) != 0 {
		t.Errorf("expected empty state, got %v", state.Hosts)
	}
}

func TestStoreUpdateErrorWritesNothing(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Update(func(s *State) error {
		s.host(testHost).Breaker.Failures = 4
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(store.Path()); !os.IsNotExist(statErr) {
		t.Errorf("expected no state file, got %v", statErr)
	}
}

func TestStoreClear(t *testing.T) {
	store := NewStore(t.TempDir())
	_ = store.Update(func(s *State) error {
		s.host(testHost).Breaker.Failures = 1
		return nil
	})

	if err := store.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clearing twice: %v", err)
	}
	state, _ := store.Load()
	if len(state.Hosts) != 0 {
		t.Errorf("expected empty state after clear, got %v", state.Hosts)
	}
}

func TestDefaultStateDir(t *testing.T) {
	t.Setenv("STAYBOOK_CACHE_DIR", "/tmp/sb-cache")
	if got := NewStore("").Dir(); got != filepath.Join("/tmp/sb-cache", DefaultDirName) {
		t.Errorf("unexpected dir %q", got)
	}

	t.Setenv("STAYBOOK_CACHE_DIR", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	if got := NewStore("").Dir(); got != filepath.Join("/tmp/xdg", "staybook", DefaultDirName) {
		t.Errorf("unexpected dir %q", got)
	}
}
