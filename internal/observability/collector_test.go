package observability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCollector_RecordRequest(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/bookings/past", Attempt: 1, StatusCode: 401, Duration: 50 * time.Millisecond})
	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/bookings/past", Attempt: 2, StatusCode: 200, Duration: 10 * time.Millisecond})

	summary := c.Summary()
	assert.Equal(t, 2, summary.TotalRequests)
	assert.Equal(t, 1, summary.Replays)
	assert.Equal(t, 60*time.Millisecond, summary.TotalLatency)
}

func TestSessionCollector_RecordOperation(t *testing.T) {
	c := NewSessionCollector()

	c.RecordOperation(OperationMetrics{Service: "Rooms", Operation: "List"})
	c.RecordOperation(OperationMetrics{Service: "Bookings", Operation: "Cancel", Error: errors.New("conflict")})

	summary := c.Summary()
	assert.Equal(t, 2, summary.TotalOperations)
	assert.Equal(t, 1, summary.FailedOps)
}

func TestSessionCollector_RecordRefresh(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRefresh(false, nil)
	c.RecordRefresh(true, nil)
	c.RecordRefresh(true, nil)
	c.RecordRefresh(false, errors.New("401"))

	summary := c.Summary()
	assert.Equal(t, 2, summary.Refreshes)
	assert.Equal(t, 2, summary.SharedRefreshes)
	assert.Equal(t, 1, summary.FailedRefreshes)
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequest(RequestMetrics{Duration: time.Second})
	c.RecordRefresh(false, nil)

	c.Reset()

	summary := c.Summary()
	assert.Zero(t, summary.TotalRequests)
	assert.Zero(t, summary.Refreshes)
	assert.Zero(t, summary.TotalLatency)
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordRequest(RequestMetrics{Attempt: 1})
			c.RecordRefresh(true, nil)
		}()
	}
	wg.Wait()

	summary := c.Summary()
	assert.Equal(t, 50, summary.TotalRequests)
	assert.Equal(t, 50, summary.SharedRefreshes)
}

func TestSessionMetrics_MapRoundTrip(t *testing.T) {
	start := time.Unix(0, 0)
	m := SessionMetrics{
		StartTime:     start,
		EndTime:       start.Add(250 * time.Millisecond),
		TotalRequests: 3,
		Replays:       1,
		Refreshes:     1,
		TotalLatency:  90 * time.Millisecond,
	}

	// Through JSON every number becomes float64.
	asJSON := map[string]any{}
	for k, v := range m.ToMap() {
		switch n := v.(type) {
		case int:
			asJSON[k] = float64(n)
		case int64:
			asJSON[k] = float64(n)
		}
	}

	got := SessionMetricsFromMap(asJSON)
	assert.Equal(t, 3, got.TotalRequests)
	assert.Equal(t, 1, got.Replays)
	assert.Equal(t, 1, got.Refreshes)
	assert.Equal(t, 90*time.Millisecond, got.TotalLatency)
	assert.Equal(t, 250*time.Millisecond, got.EndTime.Sub(got.StartTime))
}

func TestSessionMetrics_FormatParts(t *testing.T) {
	start := time.Unix(0, 0)
	m := SessionMetrics{
		StartTime:       start,
		EndTime:         start.Add(120 * time.Millisecond),
		TotalRequests:   3,
		Replays:         1,
		Refreshes:       1,
		FailedRefreshes: 0,
	}

	parts := m.FormatParts()
	require.Len(t, parts, 4)
	assert.Equal(t, []string{"120ms", "3 requests", "1 replay", "1 refresh"}, parts)

	m.Refreshes = 2
	assert.Contains(t, m.FormatParts(), "2 refreshes")

	assert.Empty(t, SessionMetrics{}.FormatParts())
}
