// Package observability provides metrics collection and tracing for CLI operations.
package observability

import (
	"fmt"
	"sync"
	"time"
)

// RequestMetrics holds timing and status information for a single HTTP request.
type RequestMetrics struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Error      error
}

// OperationMetrics holds timing information for a domain operation.
type OperationMetrics struct {
	Service   string
	Operation string
	Duration  time.Duration
	Error     error
}

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalRequests   int
	Replays         int
	TotalOperations int
	FailedOps       int
	Refreshes       int
	SharedRefreshes int
	FailedRefreshes int
	TotalLatency    time.Duration
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and keeps counters only.
type SessionCollector struct {
	mu sync.Mutex

	startTime       time.Time
	totalRequests   int
	replays         int
	totalOperations int
	failedOps       int
	refreshes       int
	sharedRefreshes int
	failedRefreshes int
	totalLatency    time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordRequest records metrics for an HTTP request.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.Attempt > 1 {
		c.replays++
	}
}

// RecordOperation records metrics for a domain operation.
func (c *SessionCollector) RecordOperation(m OperationMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalOperations++
	if m.Error != nil {
		c.failedOps++
	}
}

// RecordRefresh records a refresh outcome. Shared refreshes joined one
// already in flight and did not hit the server themselves.
func (c *SessionCollector) RecordRefresh(shared bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if shared {
		c.sharedRefreshes++
		return
	}
	c.refreshes++
	if err != nil {
		c.failedRefreshes++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:       c.startTime,
		EndTime:         time.Now(),
		TotalRequests:   c.totalRequests,
		Replays:         c.replays,
		TotalOperations: c.totalOperations,
		FailedOps:       c.failedOps,
		Refreshes:       c.refreshes,
		SharedRefreshes: c.sharedRefreshes,
		FailedRefreshes: c.failedRefreshes,
		TotalLatency:    c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.replays = 0
	c.totalOperations = 0
	c.failedOps = 0
	c.refreshes = 0
	c.sharedRefreshes = 0
	c.failedRefreshes = 0
	c.totalLatency = 0
}

// ToMap converts the metrics for inclusion in response meta.
func (m SessionMetrics) ToMap() map[string]any {
	return map[string]any{
		"requests":         m.TotalRequests,
		"replays":          m.Replays,
		"operations":       m.TotalOperations,
		"failed_ops":       m.FailedOps,
		"refreshes":        m.Refreshes,
		"shared_refreshes": m.SharedRefreshes,
		"failed_refreshes": m.FailedRefreshes,
		"latency_ms":       m.TotalLatency.Milliseconds(),
		"duration_ms":      m.EndTime.Sub(m.StartTime).Milliseconds(),
	}
}

// SessionMetricsFromMap is the inverse of ToMap. Numbers may arrive as int,
// int64 or float64 depending on whether the map went through JSON.
func SessionMetricsFromMap(m map[string]any) SessionMetrics {
	num := func(key string) int64 {
		switch v := m[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
		return 0
	}
	start := time.Unix(0, 0)
	return SessionMetrics{
		StartTime:       start,
		EndTime:         start.Add(time.Duration(num("duration_ms")) * time.Millisecond),
		TotalRequests:   int(num("requests")),
		Replays:         int(num("replays")),
		TotalOperations: int(num("operations")),
		FailedOps:       int(num("failed_ops")),
		Refreshes:       int(num("refreshes")),
		SharedRefreshes: int(num("shared_refreshes")),
		FailedRefreshes: int(num("failed_refreshes")),
		TotalLatency:    time.Duration(num("latency_ms")) * time.Millisecond,
	}
}

// FormatParts renders the non-zero counters as short labels.
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if d := m.EndTime.Sub(m.StartTime); d > 0 {
		parts = append(parts, fmt.Sprintf("%dms", d.Milliseconds()))
	}
	if m.TotalRequests > 0 {
		parts = append(parts, plural(m.TotalRequests, "request"))
	}
	if m.Replays > 0 {
		parts = append(parts, plural(m.Replays, "replay"))
	}
	if m.Refreshes > 0 {
		parts = append(parts, plural(m.Refreshes, "refresh"))
	}
	if m.FailedRefreshes > 0 {
		parts = append(parts, fmt.Sprintf("%d failed refresh", m.FailedRefreshes))
	}
	if m.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.FailedOps))
	}
	return parts
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if word == "refresh" {
		return fmt.Sprintf("%d refreshes", n)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
