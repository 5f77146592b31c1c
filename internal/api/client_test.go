package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staybook/staybook-cli/internal/observability"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
)

const (
	refreshURL  = "/api/v1/auth/refresh"
	upcomingURL = "/api/v1/bookings/upcoming"
)

// recorder tracks what the fake server saw, per path.
type recorder struct {
	mu      sync.Mutex
	calls   map[string]int
	auth    map[string][]string
	bodies  map[string][]string
	headers map[string][]http.Header
}

func newRecorder() *recorder {
	return &recorder{
		calls:   make(map[string]int),
		auth:    make(map[string][]string),
		bodies:  make(map[string][]string),
		headers: make(map[string][]http.Header),
	}
}

func (rec *recorder) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.calls[r.URL.Path]++
	rec.auth[r.URL.Path] = append(rec.auth[r.URL.Path], r.Header.Get("Authorization"))
	rec.bodies[r.URL.Path] = append(rec.bodies[r.URL.Path], string(body))
	rec.headers[r.URL.Path] = append(rec.headers[r.URL.Path], r.Header.Clone())
}

func (rec *recorder) count(path string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.calls[path]
}

func (rec *recorder) authFor(path string) []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.auth[path]...)
}

func (rec *recorder) bodiesFor(path string) []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.bodies[path]...)
}

func (rec *recorder) headersFor(path string) []http.Header {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]http.Header(nil), rec.headers[path]...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type testEnv struct {
	client *Client
	mgr    *session.Manager
	store  *session.MemoryStore
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, handler http.Handler, mode RefreshMode) *testEnv {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	mgr := session.NewManager(store)
	c, err := NewClient(mgr, Options{BaseURL: srv.URL + "/api/v1", RefreshMode: mode})
	require.NoError(t, err)
	return &testEnv{client: c, mgr: mgr, store: store, srv: srv}
}

func (e *testEnv) login(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, e.mgr.Save(&session.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      json.RawMessage(`{"fullName":"Lan Tran"}`),
	}))
}

func (e *testEnv) assertCleared(t *testing.T) {
	t.Helper()
	for _, k := range []string{session.KeyAccessToken, session.KeyRefreshToken, session.KeyUserProfile} {
		_, ok, err := e.store.Get(k)
		require.NoError(t, err)
		assert.False(t, ok, "%s should be cleared", k)
	}
}

// brokenStore fails every operation.
type brokenStore struct{ err error }

func (s brokenStore) Get(string) (string, bool, error) { return "", false, s.err }
func (s brokenStore) Set(string, string) error         { return s.err }
func (s brokenStore) Remove(...string) error           { return s.err }

// =============================================================================
// Request interceptor
// =============================================================================

func TestBearerAttachedWhenTokenSet(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	}), RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)
	_, err = env.client.Post(context.Background(), "reviews", map[string]any{"roomId": 1, "rating": 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer A"}, rec.authFor(upcomingURL))
	assert.Equal(t, []string{"Bearer A"}, rec.authFor("/api/v1/reviews"))
}

func TestNoAuthorizationWhenAnonymous(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	}), RefreshSingleFlight)

	_, err := env.client.Get(context.Background(), "rooms", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.count("/api/v1/rooms"))
	assert.Equal(t, []string{""}, rec.authFor("/api/v1/rooms"))
}

func TestExplicitAuthorizationNotOverwritten(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true}`)
	}), RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "rooms",
		Header: http.Header{"Authorization": []string{"Bearer explicit"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer explicit"}, rec.authFor("/api/v1/rooms"))
}

func TestStoreReadFailureFailsOpen(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true}`)
	}))
	t.Cleanup(srv.Close)

	mgr := session.NewManager(brokenStore{err: errors.New("keychain locked")})
	c, err := NewClient(mgr, Options{BaseURL: srv.URL + "/api/v1/"})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "rooms", nil)
	require.NoError(t, err, "a store failure must not fail the request")
	assert.Equal(t, []string{""}, rec.authFor("/api/v1/rooms"))

	// With a token cached from an earlier refresh, that token is used instead.
	c.setDefaultBearer("cached")
	_, err = c.Get(context.Background(), "rooms", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Bearer cached"}, rec.authFor("/api/v1/rooms"))
}

func TestStandardHeaders(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true}`)
	}), RefreshSingleFlight)

	_, err := env.client.Post(context.Background(), "/auth/login", map[string]string{"email": "lan@gmail.com"})
	require.NoError(t, err)

	headers := rec.headersFor("/api/v1/auth/login")
	require.Len(t, headers, 1)
	h := headers[0]
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.True(t, strings.HasPrefix(h.Get("User-Agent"), "staybook/"))
	_, err = uuid.Parse(h.Get(RequestIDHeader))
	assert.NoError(t, err, "request id should be a UUID")

	assert.JSONEq(t, `{"email":"lan@gmail.com"}`, rec.bodiesFor("/api/v1/auth/login")[0])
}

func TestQueryParameters(t *testing.T) {
	var gotQuery url.Values
	var mu sync.Mutex
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQuery = r.URL.Query()
		mu.Unlock()
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	}), RefreshSingleFlight)

	_, err := env.client.Get(context.Background(), "hotels/search", url.Values{"keyword": {"sea view"}, "city": {"Đà Nẵng"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "sea view", gotQuery.Get("keyword"))
	assert.Equal(t, "Đà Nẵng", gotQuery.Get("city"))
}

// =============================================================================
// Session refresher
// =============================================================================

// refreshingServer answers 401 to any token other than valid, and issues
// valid from the refresh endpoint.
func refreshingServer(rec *recorder, valid, refreshBody string, refreshStatus int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, refreshStatus, refreshBody)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, 401, `{"success":false,"message":"Token expired"}`)
			return
		}
		writeJSON(w, 200, `{"success":true,"message":"OK","data":[{"id":1},{"id":2}]}`)
	})
	return mux
}

func TestRefreshAndReplayOnce(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"accessToken":"B"}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	resp, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)

	bookings, err := Decode[[]map[string]any](resp)
	require.NoError(t, err)
	assert.Len(t, bookings, 2)

	assert.Equal(t, 1, rec.count(refreshURL), "exactly one refresh")
	assert.Equal(t, []string{"Bearer A", "Bearer B"}, rec.authFor(upcomingURL), "exactly one replay, with the new token")

	// The refresh goes out on the bare transport with the stored refresh token.
	assert.Equal(t, []string{""}, rec.authFor(refreshURL))
	assert.JSONEq(t, `{"refreshToken":"R"}`, rec.bodiesFor(refreshURL)[0])

	s, err := env.mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "B", s.AccessToken)
	assert.Equal(t, "R", s.RefreshToken, "refresh token kept when none is returned")
	assert.Equal(t, "B", env.client.DefaultBearer())
}

func TestReplayReusesBody(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"token":"B"}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	body := map[string]any{"roomId": 7, "checkIn": "2026-12-24", "checkOut": "2026-12-26", "adultsCount": 2}
	_, err := env.client.Post(context.Background(), "bookings", body)
	require.NoError(t, err)

	bodies := rec.bodiesFor("/api/v1/bookings")
	require.Len(t, bodies, 2)
	assert.JSONEq(t, bodies[0], bodies[1])
}

func TestReplay401IsFinal(t *testing.T) {
	rec := newRecorder()
	// The refresh succeeds but the server still rejects the new token.
	env := newTestEnv(t, refreshingServer(rec, "never", `{"accessToken":"B"}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.Error(t, err)

	e := output.AsError(err)
	assert.Equal(t, 401, e.HTTPStatus)
	assert.False(t, e.SessionEnded, "a rejected replay is surfaced as is")
	assert.Equal(t, 1, rec.count(refreshURL))
	assert.Equal(t, 2, rec.count(upcomingURL), "no third attempt")
}

func TestRefreshFailureClearsSessionAndReturnsOriginal(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"message":"Invalid refresh token"}`, 401), RefreshSingleFlight)
	env.login(t, "A", "R")
	require.NoError(t, env.mgr.MarkOnboardingSeen())
	env.client.setDefaultBearer("A")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.Error(t, err)

	e := output.AsError(err)
	assert.Equal(t, output.CodeAuth, e.Code)
	assert.Equal(t, 401, e.HTTPStatus)
	assert.Equal(t, "Token expired", e.Message, "the original error, not the refresh error")
	assert.True(t, e.SessionEnded)
	assert.True(t, output.IsSessionEnded(err))

	assert.Equal(t, 1, rec.count(upcomingURL), "no replay after a failed refresh")
	env.assertCleared(t)
	assert.Empty(t, env.client.DefaultBearer())

	seen, err := env.mgr.OnboardingSeen()
	require.NoError(t, err)
	assert.True(t, seen, "onboarding flag survives")
}

func TestRefreshFailureModes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", 500, `{"message":"boom"}`},
		{"no token in payload", 200, `{"success":true,"data":{}}`},
		{"unparsable payload", 200, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			env := newTestEnv(t, refreshingServer(rec, "B", tt.body, tt.status), RefreshSingleFlight)
			env.login(t, "A", "R")

			_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)

			assert.True(t, output.IsSessionEnded(err))
			assert.Equal(t, "Token expired", output.AsError(err).Message)
			env.assertCleared(t)
		})
	}
}

func TestRefreshTransportFailureEndsSession(t *testing.T) {
	rec := newRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
		// Drop the connection without a response.
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 401, `{"message":"Token expired"}`)
	})
	env := newTestEnv(t, mux, RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)

	assert.True(t, output.IsSessionEnded(err))
	env.assertCleared(t)
}

func TestNoRefreshTokenEndsSession(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"token":"B"}`, 200), RefreshSingleFlight)
	require.NoError(t, env.mgr.SetTokens("A", ""))

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)

	assert.True(t, output.IsSessionEnded(err))
	assert.Equal(t, 0, rec.count(refreshURL))
	assert.Equal(t, 1, rec.count(upcomingURL))
	env.assertCleared(t)
}

func TestRefreshTokenWithoutAccessToken(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"accessToken":"B"}`, 200), RefreshSingleFlight)
	require.NoError(t, env.store.Set(session.KeyRefreshToken, "R"))

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.count(refreshURL))
	assert.Equal(t, []string{"", "Bearer B"}, rec.authFor(upcomingURL))
	s, err := env.mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "B", s.AccessToken)
	assert.Equal(t, "R", s.RefreshToken)
}

func TestExplicitAuthorizationRefreshesInsteadOfSwapping(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"accessToken":"B"}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "bookings/upcoming",
		Header: http.Header{"Authorization": []string{"Bearer explicit"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.count(refreshURL))
	assert.Equal(t, []string{"Bearer explicit", "Bearer B"}, rec.authFor(upcomingURL))
}

func TestExplicitAuthorizationWithoutSession(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"accessToken":"B"}`, 200), RefreshSingleFlight)

	_, err := env.client.Do(context.Background(), &Request{
		Method: http.MethodGet,
		Path:   "bookings/upcoming",
		Header: http.Header{"Authorization": []string{"Bearer explicit"}},
	})

	e := output.AsError(err)
	require.NotNil(t, e)
	assert.Equal(t, 401, e.HTTPStatus)
	assert.False(t, e.SessionEnded)
	assert.Zero(t, rec.count(refreshURL))
}

func TestCallerDeadlineDuringRefreshKeepsSession(t *testing.T) {
	for _, mode := range []RefreshMode{RefreshSingleFlight, RefreshIndependent} {
		t.Run(string(mode), func(t *testing.T) {
			rec := newRecorder()
			mux := http.NewServeMux()
			mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				time.Sleep(200 * time.Millisecond)
				writeJSON(w, 200, `{"accessToken":"B"}`)
			})
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				writeJSON(w, 401, `{"success":false,"message":"Token expired"}`)
			})
			env := newTestEnv(t, mux, mode)
			env.login(t, "A", "R")

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := env.client.Get(ctx, "bookings/upcoming", nil)

			e := output.AsError(err)
			require.NotNil(t, e)
			assert.Equal(t, output.CodeTimeout, e.Code)
			assert.False(t, e.SessionEnded)

			if mode == RefreshSingleFlight {
				// The shared refresh finishes on its own and stores its token.
				assert.Eventually(t, func() bool {
					s, err := env.mgr.Load()
					return err == nil && s.AccessToken == "B"
				}, 2*time.Second, 10*time.Millisecond)
			}

			s, err := env.mgr.Load()
			require.NoError(t, err)
			assert.Equal(t, "R", s.RefreshToken)
			assert.JSONEq(t, `{"fullName":"Lan Tran"}`, string(s.Profile))
			assert.Contains(t, []string{"A", "B"}, s.AccessToken)
		})
	}
}

func TestForcedRefreshCanceledKeepsSession(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"accessToken":"B"}`, 200), RefreshIndependent)
	env.login(t, "A", "R")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := env.client.Refresh(ctx)

	require.Error(t, err)
	assert.False(t, output.IsSessionEnded(err))
	s, err := env.mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "A", s.AccessToken)
	assert.Equal(t, "R", s.RefreshToken)
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"success":true,"data":{"token":"B","refreshToken":"R2"}}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)

	s, err := env.mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "B", s.AccessToken)
	assert.Equal(t, "R2", s.RefreshToken)
	assert.JSONEq(t, `{"fullName":"Lan Tran"}`, string(s.Profile), "profile untouched by refresh")
}

func TestNon401ErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   string
		msg    string
	}{
		{400, `{"success":false,"message":"Validation failed","errors":{"phone":"must start with 0"}}`, output.CodeValidation, "Validation failed"},
		{403, `{"message":"Not your booking"}`, output.CodeForbidden, "Not your booking"},
		{404, `{"success":false,"message":"Room not found"}`, output.CodeNotFound, "Room not found"},
		{409, `{"success":false,"message":"Room already booked"}`, output.CodeConflict, "Room already booked"},
		{422, `{"message":"Check-out must be after check-in"}`, output.CodeValidation, "Check-out must be after check-in"},
		{500, `<html>oops</html>`, output.CodeAPI, "Server error (500)"},
		{502, ``, output.CodeAPI, "Server error (502)"},
		{418, `{"error":"teapot"}`, output.CodeAPI, "teapot"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			rec := newRecorder()
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				writeJSON(w, tt.status, tt.body)
			}), RefreshSingleFlight)
			env.login(t, "A", "R")

			_, err := env.client.Get(context.Background(), "rooms/1", nil)
			require.Error(t, err)

			e := output.AsError(err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.msg, e.Message)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, 1, rec.count("/api/v1/rooms/1"))
			assert.Equal(t, 0, rec.count(refreshURL))

			s, _ := env.mgr.Load()
			assert.Equal(t, "A", s.AccessToken, "session untouched")
		})
	}
}

func TestValidationDetails(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, `{"success":false,"message":"Validation failed","errors":{"email":"must end with @gmail.com"}}`)
	}), RefreshSingleFlight)

	_, err := env.client.Post(context.Background(), "auth/register", map[string]string{"email": "x@yahoo.com"})

	e := output.AsError(err)
	assert.JSONEq(t, `{"email":"must end with @gmail.com"}`, string(e.Details))
}

func TestRateLimitRetryAfter(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		writeJSON(w, 429, `{}`)
	}), RefreshSingleFlight)

	_, err := env.client.Get(context.Background(), "rooms", nil)

	e := output.AsError(err)
	assert.Equal(t, output.CodeRateLimit, e.Code)
	assert.Equal(t, "Try again in 12 seconds", e.Hint)
}

func TestTimeoutIsNotRetried(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}), RefreshSingleFlight)

	_, err := env.client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "rooms", Timeout: 50 * time.Millisecond})

	e := output.AsError(err)
	assert.Equal(t, output.CodeTimeout, e.Code)
	assert.Equal(t, 1, rec.count("/api/v1/rooms"))
}

func TestNetworkError(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler(), RefreshSingleFlight)
	env.srv.Close()

	_, err := env.client.Get(context.Background(), "rooms", nil)

	e := output.AsError(err)
	assert.Equal(t, output.CodeNetwork, e.Code)
	assert.True(t, e.Retryable)
}

// =============================================================================
// Refresh modes
// =============================================================================

// concurrentUnauthorized issues n concurrent requests that all receive their
// first 401 only once every one of them has reached the server.
func concurrentUnauthorized(t *testing.T, mode RefreshMode, n int) (*testEnv, *recorder, []error) {
	t.Helper()
	rec := newRecorder()

	var barrier sync.WaitGroup
	barrier.Add(n)
	var issued int
	var issuedMu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		issuedMu.Lock()
		issued++
		token := fmt.Sprintf("B%d", issued)
		issuedMu.Unlock()
		writeJSON(w, 200, fmt.Sprintf(`{"accessToken":%q}`, token))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.Header.Get("Authorization") == "Bearer A" {
			barrier.Done()
			barrier.Wait()
			writeJSON(w, 401, `{"message":"Token expired"}`)
			return
		}
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	})

	env := newTestEnv(t, mux, mode)
	env.login(t, "A", "R")

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.client.Get(context.Background(), fmt.Sprintf("bookings/%d", i), nil)
		}()
	}
	wg.Wait()
	return env, rec, errs
}

func TestIndependentModeRefreshesPerRequest(t *testing.T) {
	_, rec, errs := concurrentUnauthorized(t, RefreshIndependent, 2)

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, rec.count(refreshURL), "each failing request runs its own refresh")
	for i := range 2 {
		assert.Equal(t, 2, rec.count(fmt.Sprintf("/api/v1/bookings/%d", i)), "one replay each")
	}
}

func TestSingleFlightModeCoalescesRefresh(t *testing.T) {
	_, rec, errs := concurrentUnauthorized(t, RefreshSingleFlight, 5)

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, rec.count(refreshURL), "concurrent 401s share one refresh")
	for i := range 5 {
		auths := rec.authFor(fmt.Sprintf("/api/v1/bookings/%d", i))
		assert.Equal(t, []string{"Bearer A", "Bearer B1"}, auths)
	}
}

func TestIndependentModeSequentialRequests(t *testing.T) {
	rec := newRecorder()
	first := map[string]bool{}
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"token":"B"}`)
	})
	// Each path rejects its first attempt, whatever the token.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		mu.Lock()
		seen := first[r.URL.Path]
		first[r.URL.Path] = true
		mu.Unlock()
		if !seen {
			writeJSON(w, 401, `{"message":"Token expired"}`)
			return
		}
		writeJSON(w, 200, `{"success":true}`)
	})
	env := newTestEnv(t, mux, RefreshIndependent)
	env.login(t, "A", "R")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)
	_, err = env.client.Get(context.Background(), "bookings/past", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.count(refreshURL))
}

func TestRefreshHooks(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(refreshingServer(rec, "B", `{"token":"B"}`, 200))
	t.Cleanup(srv.Close)

	collector := observability.NewSessionCollector()
	mgr := session.NewManager(session.NewMemoryStore())
	require.NoError(t, mgr.SetTokens("A", "R"))
	c, err := NewClient(mgr, Options{
		BaseURL: srv.URL + "/api/v1/",
		Hooks:   observability.NewCLIHooks(0, collector, nil),
	})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)

	summary := collector.Summary()
	assert.Equal(t, 2, summary.TotalRequests, "refresh call is not routed through request hooks")
	assert.Equal(t, 1, summary.Replays)
	assert.Equal(t, 1, summary.Refreshes)
	assert.Zero(t, summary.FailedRefreshes)
}

func TestForcedRefresh(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"token":"B","refreshToken":"R2"}`, 200), RefreshSingleFlight)
	env.login(t, "A", "R")

	require.NoError(t, env.client.Refresh(context.Background()))

	s, _ := env.mgr.Load()
	assert.Equal(t, "B", s.AccessToken)
	assert.Equal(t, "R2", s.RefreshToken)
}

func TestForcedRefreshFailureEndsSession(t *testing.T) {
	rec := newRecorder()
	env := newTestEnv(t, refreshingServer(rec, "B", `{"message":"expired"}`, 401), RefreshSingleFlight)
	env.login(t, "A", "R")

	err := env.client.Refresh(context.Background())

	assert.True(t, output.IsSessionEnded(err))
	env.assertCleared(t)
}

func TestAnonymousClientNeverRefreshes(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(refreshingServer(rec, "B", `{"token":"B"}`, 200))
	t.Cleanup(srv.Close)

	c, err := NewClient(nil, Options{BaseURL: srv.URL + "/api/v1/"})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "bookings/upcoming", nil)
	e := output.AsError(err)
	assert.Equal(t, 401, e.HTTPStatus)
	assert.False(t, e.SessionEnded)
	assert.Equal(t, 0, rec.count(refreshURL))
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(nil, Options{BaseURL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestBaseURLGetsTrailingSlash(t *testing.T) {
	c, err := NewClient(nil, Options{BaseURL: "http://localhost:8080/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/", c.BaseURL())
	assert.Equal(t, RefreshSingleFlight, c.RefreshMode())
}

// =============================================================================
// Guard
// =============================================================================

type guardOutcome struct {
	status     int
	retryAfter time.Duration
	err        error
}

type fakeGuard struct {
	mu       sync.Mutex
	block    error
	outcomes []guardOutcome
}

func (g *fakeGuard) Before(context.Context) error {
	return g.block
}

func (g *fakeGuard) After(status int, retryAfter time.Duration, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, guardOutcome{status, retryAfter, err})
}

func newGuardedClient(t *testing.T, handler http.Handler, guard Guard) *testEnv {
	t.Helper()
	env := newTestEnv(t, handler, RefreshSingleFlight)
	c, err := NewClient(env.mgr, Options{BaseURL: env.srv.URL + "/api/v1", Guard: guard})
	require.NoError(t, err)
	env.client = c
	return env
}

func TestGuardBlocksBeforeSending(t *testing.T) {
	rec := newRecorder()
	guard := &fakeGuard{block: output.ErrRateLimit(7)}
	env := newGuardedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	}), guard)

	_, err := env.client.Get(context.Background(), "rooms", nil)

	e := output.AsError(err)
	require.NotNil(t, e)
	assert.Equal(t, output.CodeRateLimit, e.Code)
	assert.Zero(t, rec.count("/api/v1/rooms"))
	assert.Empty(t, guard.outcomes)
}

func TestGuardSeesEachAttempt(t *testing.T) {
	guard := &fakeGuard{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings/upcoming", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer stale" {
			writeJSON(w, 401, `{"message":"expired"}`)
			return
		}
		writeJSON(w, 200, `{"success":true,"data":[]}`)
	})
	mux.HandleFunc(refreshURL, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"success":true,"data":{"accessToken":"fresh"}}`)
	})
	env := newGuardedClient(t, mux, guard)
	env.login(t, "stale", "r1")

	_, err := env.client.Get(context.Background(), "bookings/upcoming", nil)
	require.NoError(t, err)

	require.Len(t, guard.outcomes, 2)
	assert.Equal(t, 401, guard.outcomes[0].status)
	assert.Equal(t, 200, guard.outcomes[1].status)
	assert.NoError(t, guard.outcomes[1].err)
}

func TestGuardGetsRetryAfter(t *testing.T) {
	guard := &fakeGuard{}
	env := newGuardedClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		writeJSON(w, 429, `{}`)
	}), guard)

	_, err := env.client.Get(context.Background(), "rooms", nil)
	require.Error(t, err)

	require.Len(t, guard.outcomes, 1)
	assert.Equal(t, 429, guard.outcomes[0].status)
	assert.Equal(t, 12*time.Second, guard.outcomes[0].retryAfter)
}

func TestGuardSeesTransportFailures(t *testing.T) {
	guard := &fakeGuard{}
	env := newGuardedClient(t, http.NotFoundHandler(), guard)
	env.srv.Close()

	_, err := env.client.Get(context.Background(), "rooms", nil)
	require.Error(t, err)

	require.Len(t, guard.outcomes, 1)
	assert.Zero(t, guard.outcomes[0].status)
	assert.Equal(t, output.CodeNetwork, output.AsError(guard.outcomes[0].err).Code)
}
