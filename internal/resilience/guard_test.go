package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/staybook/staybook-cli/internal/output"
)

func newTestGuard(t *testing.T, cfg Config) (*Guard, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewGuard(NewStore(t.TempDir()), testHost, cfg)
	g.now = clk.now
	return g, clk
}

func TestGuardAllowsByDefault(t *testing.T) {
	g, _ := newTestGuard(t, Config{})

	if err := g.Before(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := g.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Healthy() || st.Circuit != CircuitClosed {
		t.Errorf("expected healthy closed status, got %+v", st)
	}
}

func TestGuardRetryAfterWindow(t *testing.T) {
	g, clk := newTestGuard(t, Config{})

	g.After(429, 20*time.Second, output.ErrRateLimit(20))

	err := g.Before(context.Background())
	var e *output.Error
	if !errors.As(err, &e) || e.Code != output.CodeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if e.Hint != "Try again in 20 seconds" {
		t.Errorf("unexpected hint %q", e.Hint)
	}

	clk.advance(21 * time.Second)
	if err := g.Before(context.Background()); err != nil {
		t.Errorf("expected window to have passed, got %v", err)
	}
}

func TestGuardRetryAfterDefaultsAndCap(t *testing.T) {
	g, _ := newTestGuard(t, Config{DefaultRetryAfter: 5 * time.Second, MaxRetryAfter: time.Minute})

	g.After(429, 0, nil)
	st, _ := g.Status()
	if st.RetryAfter != 5*time.Second {
		t.Errorf("expected default 5s window, got %v", st.RetryAfter)
	}

	g.After(429, time.Hour, nil)
	st, _ = g.Status()
	if st.RetryAfter != time.Minute {
		t.Errorf("expected window capped at 1m, got %v", st.RetryAfter)
	}
	if st.Failures != 0 {
		t.Errorf("429 must not count as a failure, got %d", st.Failures)
	}
}

func TestGuardOpensOnServerErrors(t *testing.T) {
	g, clk := newTestGuard(t, Config{FailureThreshold: 2, OpenTimeout: 30 * time.Second})

	g.After(503, 0, output.ErrAPI(503, "down"))
	g.After(0, 0, output.ErrNetwork(errors.New("connection refused")))

	err := g.Before(context.Background())
	var e *output.Error
	if !errors.As(err, &e) || e.Code != output.CodeNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
	if !strings.Contains(e.Hint, "30 seconds") {
		t.Errorf("unexpected hint %q", e.Hint)
	}

	st, _ := g.Status()
	if st.Healthy() || st.Circuit != CircuitOpen || st.OpenFor != 30*time.Second {
		t.Errorf("unexpected status %+v", st)
	}

	clk.advance(31 * time.Second)
	if err := g.Before(context.Background()); err != nil {
		t.Fatalf("expected probe to be allowed, got %v", err)
	}
	g.After(200, 0, nil)
	st, _ = g.Status()
	if st.Circuit != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", st.Circuit)
	}
}

func TestGuardClientErrorsCountAsSuccess(t *testing.T) {
	g, _ := newTestGuard(t, Config{FailureThreshold: 2})

	g.After(500, 0, nil)
	g.After(404, 0, output.ErrNotFound("Room", "9"))
	g.After(500, 0, nil)

	if err := g.Before(context.Background()); err != nil {
		t.Errorf("expected a 404 to reset the failure count, got %v", err)
	}
}

func TestGuardIgnoresCanceledRequests(t *testing.T) {
	g, _ := newTestGuard(t, Config{FailureThreshold: 1})

	g.After(0, 0, &output.Error{Code: output.CodeNetwork, Message: "Request canceled", Cause: context.Canceled})

	if err := g.Before(context.Background()); err != nil {
		t.Errorf("expected canceled request to be ignored, got %v", err)
	}
}

func TestGuardReset(t *testing.T) {
	g, _ := newTestGuard(t, Config{FailureThreshold: 1})

	g.After(502, 0, nil)
	g.After(429, time.Minute, nil)
	if err := g.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Before(context.Background()); err != nil {
		t.Errorf("expected reset guard to allow requests, got %v", err)
	}
}
