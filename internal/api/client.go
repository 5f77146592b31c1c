// Package api provides the authenticated HTTP client for the hotel-booking API.
//
// Every call goes through one pipeline: the request interceptor attaches the
// stored bearer token, the transport sends it, and a 401 on a first attempt
// hands control to the session refresher, which refreshes once and replays
// the request once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staybook/staybook-cli/internal/observability"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
	"github.com/staybook/staybook-cli/internal/version"
)

const (
	// DefaultTimeout applies when neither the request nor the client sets one.
	DefaultTimeout = 30 * time.Second

	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 10 << 20

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshMode RefreshMode

	// Transport overrides the HTTP transport (tests, proxies).
	Transport http.RoundTripper
	Hooks     observability.Hooks
	Logger    *slog.Logger
	UserAgent string

	// Guard gates each HTTP attempt. Nil sends everything.
	Guard Guard
}

// Guard decides whether a request may be sent and observes how it ended.
// status is zero when no response arrived; retryAfter comes from the
// Retry-After header.
type Guard interface {
	Before(ctx context.Context) error
	After(status int, retryAfter time.Duration, err error)
}

type noopGuard struct{}

func (noopGuard) Before(context.Context) error    { return nil }
func (noopGuard) After(int, time.Duration, error) {}

// Client is the authenticated API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	timeout    time.Duration
	userAgent  string
	sessions   session.Provider
	hooks      observability.Hooks
	guard      Guard
	logger     *slog.Logger
	refresher  *refresher

	mu            sync.RWMutex
	defaultBearer string
}

// NewClient creates a client for opts.BaseURL. sessions may be nil for a
// client that never authenticates.
func NewClient(sessions session.Provider, opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, output.ErrUsageHint(fmt.Sprintf("invalid base URL %q", opts.BaseURL), "Expected something like http://localhost:8080/api/v1/")
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	c := &Client{
		// Deadlines come from per-request contexts, not http.Client.Timeout.
		httpClient: &http.Client{Transport: transport},
		baseURL:    base,
		timeout:    opts.Timeout,
		userAgent:  opts.UserAgent,
		sessions:   sessions,
		hooks:      opts.Hooks,
		guard:      opts.Guard,
		logger:     opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = version.UserAgent()
	}
	if c.hooks == nil {
		c.hooks = observability.NoopHooks{}
	}
	if c.guard == nil {
		c.guard = noopGuard{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	mode := opts.RefreshMode
	if mode == "" {
		mode = RefreshSingleFlight
	}
	c.refresher = &refresher{client: c, mode: mode}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// RefreshMode returns how concurrent refreshes are coordinated.
func (c *Client) RefreshMode() RefreshMode {
	return c.refresher.mode
}

// Sessions returns the session provider (nil for anonymous clients).
func (c *Client) Sessions() session.Provider {
	return c.sessions
}

// Hooks returns the observability hooks requests are reported to.
func (c *Client) Hooks() observability.Hooks {
	return c.hooks
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// DefaultBearer returns the last token obtained by a refresh in this process.
func (c *Client) DefaultBearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultBearer
}

func (c *Client) setDefaultBearer(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultBearer = token
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Do sends req through the full pipeline. A 401 on the first attempt
// triggers at most one refresh and at most one replay when a bearer was sent
// or a refresh token is stored; a 401 on the replay is returned as is. When
// the refresh fails the stored session is cleared and the original 401 is
// returned with SessionEnded set. A caller whose context ends during the
// refresh gets the context error and the session is left alone.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, output.ErrUsage("nil request")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	explicit := req.Header.Get("Authorization") != ""
	resp, sentToken, err := c.dispatch(ctx, req)
	if err == nil {
		return resp, nil
	}

	unauthorized, is401 := isUnauthorized(err)
	if !is401 || req.retried || c.sessions == nil {
		return nil, err
	}
	if (sentToken == "" || explicit) && !c.hasRefreshToken() {
		return nil, err
	}

	// Only a token the interceptor attached can be compared with the store
	// to detect a refresh that already finished.
	stale := sentToken
	if explicit {
		stale = ""
	}
	token, err := c.refresher.tokenFor(ctx, stale)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(ctx, ctx.Err())
		}
		c.logger.Debug("session refresh failed", "path", req.Path, "error", err)
		c.endSession()
		return nil, output.ErrSessionEnded(unauthorized)
	}

	replay := req.clone()
	replay.retried = true
	replay.Header.Set("Authorization", "Bearer "+token)
	resp, _, err = c.dispatch(ctx, replay)
	return resp, err
}

// hasRefreshToken reports whether the store holds a refresh token.
func (c *Client) hasRefreshToken() bool {
	s, err := c.sessions.Load()
	return err == nil && s != nil && s.RefreshToken != ""
}

// EndSession clears stored credentials and forgets the in-memory bearer.
func (c *Client) EndSession() error {
	c.setDefaultBearer("")
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Clear()
}

func (c *Client) endSession() {
	if err := c.EndSession(); err != nil {
		c.logger.Warn("clearing session failed", "error", err)
	}
}

// dispatch runs the request interceptor and sends one HTTP request. It
// returns the bearer token that was sent, if any.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, string, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, "", err
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	sentToken := c.intercept(httpReq)

	if err := c.guard.Before(ctx); err != nil {
		c.logger.Debug("request held back", "method", req.Method, "path", req.Path, "error", err)
		return nil, sentToken, err
	}

	info := observability.RequestInfo{
		Method:    req.Method,
		URL:       target,
		Attempt:   1,
		RequestID: httpReq.Header.Get(RequestIDHeader),
	}
	if req.retried {
		info.Attempt = 2
	}
	ctx = c.hooks.OnRequestStart(ctx, info)
	start := time.Now()

	resp, err := c.send(httpReq)
	result := observability.RequestResult{Duration: time.Since(start), Error: err}
	var retryAfter time.Duration
	if resp != nil {
		result.StatusCode = resp.StatusCode
		retryAfter = time.Duration(parseRetryAfter(resp.Header.Get("Retry-After"))) * time.Second
	}
	c.hooks.OnRequestEnd(ctx, info, result)
	c.guard.After(result.StatusCode, retryAfter, err)

	if err != nil {
		return nil, sentToken, err
	}
	return resp, sentToken, nil
}

// intercept attaches the stored bearer unless the request already carries
// Authorization. A store failure never blocks the request: it falls back to
// the in-memory default bearer, or no header.
func (c *Client) intercept(req *http.Request) string {
	if auth := req.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c.sessions == nil {
		return ""
	}

	token := ""
	s, err := c.sessions.Load()
	if err != nil {
		c.logger.Warn("reading access token failed; sending request without stored token", "error", err)
		token = c.DefaultBearer()
	} else if s != nil {
		token = s.AccessToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return token
}

// send performs the HTTP round trip and maps non-2xx statuses to errors.
func (c *Client) send(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(req.Context(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(req.Context(), err)
	}

	c.logger.Debug("api response", "method", req.Method, "url", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, statusError(resp.StatusCode, resp.Header, body)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// resolve joins a relative path onto the base URL.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", output.ErrUsage(fmt.Sprintf("invalid request path %q", path))
	}
	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
