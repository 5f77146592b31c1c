package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// sensitiveParams are query parameter names scrubbed from trace output.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"accesstoken":   true,
	"refresh_token": true,
	"refreshtoken":  true,
	"token":         true,
	"otp":           true,
	"password":      true,
	"secret":        true,
}

// TraceWriter outputs human-readable trace information to stderr.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

func (t *TraceWriter) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] "+format+"\n", append([]any{elapsed}, args...)...)
}

// WriteOperationStart writes an operation start trace line.
// Format: [0.234s] Calling Bookings.Create
func (t *TraceWriter) WriteOperationStart(op OperationInfo) {
	t.printf("Calling %s.%s", op.Service, op.Operation)
}

// WriteOperationEnd writes an operation completion trace line.
// Format: [0.234s] Completed Bookings.Create (234ms)
func (t *TraceWriter) WriteOperationEnd(op OperationInfo, err error, duration time.Duration) {
	if err != nil {
		t.printf("Failed %s.%s: %v", op.Service, op.Operation, err)
		return
	}
	t.printf("Completed %s.%s (%dms)", op.Service, op.Operation, duration.Milliseconds())
}

// WriteRequestStart writes a request start trace line.
// Format: [0.234s]   -> GET /api/v1/bookings/upcoming
// Replays are marked and sensitive query parameters are redacted.
func (t *TraceWriter) WriteRequestStart(info RequestInfo) {
	if info.Attempt > 1 {
		t.printf("  -> %s %s (replay)", info.Method, scrubURL(info.URL))
		return
	}
	t.printf("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd writes a request completion trace line.
// Format: [0.234s]   <- 200 (45ms)
func (t *TraceWriter) WriteRequestEnd(_ RequestInfo, result RequestResult) {
	if result.Error != nil && result.StatusCode == 0 {
		t.printf("  <- ERROR: %v", result.Error)
		return
	}
	t.printf("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

// WriteRefresh writes a session refresh trace line.
// Format: [0.234s] Session refreshed (single-flight, 120ms)
func (t *TraceWriter) WriteRefresh(info RefreshInfo, result RefreshResult) {
	how := info.Mode
	if info.Shared {
		how += ", shared"
	}
	if result.Error != nil {
		t.printf("Session refresh failed (%s): %v", how, result.Error)
		return
	}
	t.printf("Session refreshed (%s, %dms)", how, result.Duration.Milliseconds())
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubURL redacts sensitive query parameters from a URL for safe logging.
// Returns a safe placeholder if the URL cannot be parsed.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}

	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
