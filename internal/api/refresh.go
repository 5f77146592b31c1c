package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/staybook/staybook-cli/internal/observability"
	"github.com/staybook/staybook-cli/internal/output"
)

// RefreshMode selects how concurrent 401s are handled.
type RefreshMode string

const (
	// RefreshSingleFlight shares one in-flight refresh between all requests
	// that fail with 401 at the same time.
	RefreshSingleFlight RefreshMode = "single-flight"

	// RefreshIndependent lets every failing request run its own refresh.
	RefreshIndependent RefreshMode = "independent"
)

// RefreshPath is the refresh endpoint, relative to the base URL.
const RefreshPath = "auth/refresh"

// ErrNoRefreshToken is returned when a refresh is needed but none is stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

type refresher struct {
	client *Client
	mode   RefreshMode
	group  singleflight.Group
}

// outcome is the shared result of a single-flight refresh.
type outcome struct {
	token     string
	refreshed bool
}

// tokenFor returns the access token a failed request should be replayed
// with. sentToken is the bearer the request carried; an empty sentToken
// forces a refresh.
func (r *refresher) tokenFor(ctx context.Context, sentToken string) (string, error) {
	info := observability.RefreshInfo{Mode: string(r.mode)}
	start := time.Now()

	if r.mode == RefreshIndependent {
		token, err := r.client.refreshOnce(ctx)
		r.client.hooks.OnRefresh(ctx, info, observability.RefreshResult{Duration: time.Since(start), Error: err})
		return token, err
	}

	leader := false
	// The shared refresh must outlive any single caller's cancellation.
	ch := r.group.DoChan("refresh", func() (any, error) {
		// A request sent with an older token than the stored one raced a
		// refresh that already finished: replay with the stored token.
		if token := r.newerToken(sentToken); token != "" {
			return outcome{token: token}, nil
		}
		leader = true
		token, err := r.client.refreshOnce(context.WithoutCancel(ctx))
		return outcome{token: token, refreshed: true}, err
	})

	select {
	case res := <-ch:
		out, _ := res.Val.(outcome)
		if out.refreshed || res.Err != nil {
			info.Shared = !leader
			r.client.hooks.OnRefresh(ctx, info, observability.RefreshResult{Duration: time.Since(start), Error: res.Err})
		}
		if res.Err != nil {
			return "", res.Err
		}
		return out.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// newerToken returns the stored access token when it differs from sent.
func (r *refresher) newerToken(sent string) string {
	if sent == "" {
		return ""
	}
	s, err := r.client.sessions.Load()
	if err != nil || s.AccessToken == sent {
		return ""
	}
	return s.AccessToken
}

// refreshOnce performs the refresh call on the bare transport: no request
// interceptor, no 401 handling. On success the new tokens are persisted and
// become the default bearer.
func (c *Client) refreshOnce(ctx context.Context) (string, error) {
	s, err := c.sessions.Load()
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if s == nil || s.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target, err := c.resolve(RefreshPath, nil)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]string{"refreshToken": s.RefreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("refresh rejected: %w", statusError(resp.StatusCode, resp.Header, body))
	}

	tokens, err := ExtractTokens(body)
	if err != nil {
		return "", fmt.Errorf("refresh response: %w", err)
	}
	if err := c.sessions.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return "", fmt.Errorf("saving refreshed token: %w", err)
	}
	c.setDefaultBearer(tokens.AccessToken)
	c.logger.Debug("session refreshed", "rotated_refresh_token", tokens.RefreshToken != "")
	return tokens.AccessToken, nil
}

// Refresh forces a refresh outside the 401 path. A failure ends the session
// the same way a failed 401 refresh does, unless ctx ended first.
func (c *Client) Refresh(ctx context.Context) error {
	if c.sessions == nil {
		return output.ErrAuth("Not logged in")
	}
	if _, err := c.refresher.tokenFor(ctx, ""); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, ctx.Err())
		}
		c.endSession()
		e := output.ErrSessionEnded(output.ErrAuth("Session refresh failed"))
		e.Cause = err
		return e
	}
	return nil
}

// TokenPair is an access token with an optional rotated refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type tokenFields struct {
	Token             string `json:"token"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshToken      string `json:"refreshToken"`
	RefreshTokenSnake string `json:"refresh_token"`
}

func (f tokenFields) pair() TokenPair {
	return TokenPair{
		AccessToken:  firstNonEmpty(f.Token, f.AccessToken, f.AccessTokenSnake),
		RefreshToken: firstNonEmpty(f.RefreshToken, f.RefreshTokenSnake),
	}
}

// ExtractTokens reads tokens from an auth response. The access token may be
// named token, accessToken or access_token, at the top level or inside an
// envelope's data.
func ExtractTokens(body []byte) (TokenPair, error) {
	var top struct {
		tokenFields
		Data *tokenFields `json:"data"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return TokenPair{}, fmt.Errorf("unparsable token payload: %w", err)
	}
	p := top.tokenFields.pair()
	if p.AccessToken == "" && top.Data != nil {
		p = top.Data.pair()
	}
	if p.AccessToken == "" {
		return TokenPair{}, errors.New("no access token in payload")
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
