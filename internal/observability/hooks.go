package observability

import (
	"context"
	"sync"
	"time"
)

// OperationInfo describes a domain operation such as Bookings.Create.
type OperationInfo struct {
	Service    string // e.g. "Bookings", "Rooms"
	Operation  string // e.g. "Create", "List"
	ResourceID int64
	IsMutation bool
}

// RequestInfo describes one HTTP request. Attempt is 1 for the original
// send and 2 for the replay after a refresh.
type RequestInfo struct {
	Method    string
	URL       string
	Attempt   int
	RequestID string
}

// RequestResult is the outcome of one HTTP request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Error      error
}

// RefreshInfo describes a session refresh triggered by a 401.
type RefreshInfo struct {
	Mode string // "single-flight" or "independent"
	// Shared is true when the caller joined a refresh already in flight.
	Shared bool
}

// RefreshResult is the outcome of a session refresh.
type RefreshResult struct {
	Duration time.Duration
	Error    error
}

// Hooks receives lifecycle events from the API client and domain services.
type Hooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRefresh(ctx context.Context, info RefreshInfo, result RefreshResult)
}

// NoopHooks ignores every event.
type NoopHooks struct{}

func (NoopHooks) OnOperationStart(ctx context.Context, _ OperationInfo) context.Context { return ctx }
func (NoopHooks) OnOperationEnd(context.Context, OperationInfo, error, time.Duration)     {}
func (NoopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context     { return ctx }
func (NoopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)              {}
func (NoopHooks) OnRefresh(context.Context, RefreshInfo, RefreshResult)                 {}

var _ Hooks = (*CLIHooks)(nil)

// CLIHooks implements Hooks for CLI observability.
// Verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Operations and refreshes
//   - 2: Operations, refreshes and HTTP requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

// OnOperationStart is called when a domain operation begins.
func (h *CLIHooks) OnOperationStart(ctx context.Context, op OperationInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 1 && writer != nil {
		writer.WriteOperationStart(op)
	}
	return ctx
}

// OnOperationEnd is called when a domain operation completes.
func (h *CLIHooks) OnOperationEnd(_ context.Context, op OperationInfo, err error, duration time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordOperation(OperationMetrics{
			Service:   op.Service,
			Operation: op.Operation,
			Duration:  duration,
			Error:     err,
		})
	}
	if level >= 1 && writer != nil {
		writer.WriteOperationEnd(op, err, duration)
	}
}

// OnRequestStart is called before an HTTP request is sent.
func (h *CLIHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
	return ctx
}

// OnRequestEnd is called after an HTTP request completes.
func (h *CLIHooks) OnRequestEnd(_ context.Context, info RequestInfo, result RequestResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRequest(RequestMetrics{
			Method:     info.Method,
			URL:        info.URL,
			Attempt:    info.Attempt,
			StatusCode: result.StatusCode,
			Duration:   result.Duration,
			Error:      result.Error,
		})
	}
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(info, result)
	}
}

// OnRefresh is called after a session refresh attempt.
func (h *CLIHooks) OnRefresh(_ context.Context, info RefreshInfo, result RefreshResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRefresh(info.Shared, result.Error)
	}
	if level >= 1 && writer != nil {
		writer.WriteRefresh(info, result)
	}
}
