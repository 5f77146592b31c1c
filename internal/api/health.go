package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/staybook/staybook-cli/internal/output"
)

// HealthPath is the server's health endpoint, relative to the origin.
const HealthPath = "/actuator/health"

// HealthTimeout bounds the health check regardless of the client timeout.
const HealthTimeout = 5 * time.Second

// Health is the result of a reachability check.
type Health struct {
	URL        string        `json:"url"`
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Status     string        `json:"status,omitempty"`
	Latency    time.Duration `json:"-"`
	LatencyMS  int64         `json:"latency_ms"`
}

// Ping checks that the server answers on its health endpoint. It sends no
// credentials and never refreshes.
func (c *Client) Ping(ctx context.Context) (*Health, error) {
	origin := *c.baseURL
	origin.Path = HealthPath
	origin.RawQuery = ""
	h := &Health{URL: origin.String()}

	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return h, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	h.Latency = time.Since(start)
	h.LatencyMS = h.Latency.Milliseconds()
	if err != nil {
		return h, transportError(ctx, err)
	}
	defer resp.Body.Close()

	h.Reachable = true
	h.StatusCode = resp.StatusCode

	var body struct {
		Status string `json:"status"`
	}
	if b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		_ = json.Unmarshal(b, &body) // Plain-text health bodies are fine
	}
	h.Status = body.Status

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return h, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Health check failed (HTTP %d)", resp.StatusCode))
	}
	if h.Status == "" {
		h.Status = "UP"
	}
	return h, nil
}
