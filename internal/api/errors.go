package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/staybook/staybook-cli/internal/output"
)

// errorBody covers the envelope and the bare {"message"} / {"error"} shapes
// the server uses for failures.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// statusError maps a non-2xx response to a structured error, keeping the
// server's message and field errors when the body carries them.
func statusError(status int, header http.Header, body []byte) *output.Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb) // Non-JSON bodies fall back to generic messages
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	var details json.RawMessage
	if len(eb.Errors) > 0 && string(eb.Errors) != "null" {
		details = eb.Errors
	}
	or := func(fallback string) string {
		if msg != "" {
			return msg
		}
		return fallback
	}

	var e *output.Error
	switch {
	case status == http.StatusUnauthorized:
		e = output.ErrAuth(or("Authentication required"))
	case status == http.StatusForbidden:
		e = output.ErrForbidden(or("Access denied"))
	case status == http.StatusNotFound:
		e = &output.Error{Code: output.CodeNotFound, Message: or("Resource not found"), HTTPStatus: status}
	case status == http.StatusConflict:
		e = output.ErrConflict(or("Conflict"))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e = output.ErrValidation(status, or("Invalid request"), nil)
	case status == http.StatusTooManyRequests:
		e = output.ErrRateLimit(parseRetryAfter(header.Get("Retry-After")))
	case status >= 500:
		e = output.ErrAPI(status, or(fmt.Sprintf("Server error (%d)", status)))
	default:
		e = output.ErrAPI(status, or(fmt.Sprintf("Request failed (HTTP %d)", status)))
	}
	e.Details = details
	return e
}

// transportError maps a failure to get any response at all.
func transportError(ctx context.Context, err error) *output.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output.ErrTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return output.ErrTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return &output.Error{Code: output.CodeNetwork, Message: "Request canceled", Cause: err}
	}
	return output.ErrNetwork(err)
}

func isUnauthorized(err error) (*output.Error, bool) {
	var e *output.Error
	if errors.As(err, &e) && e.HTTPStatus == http.StatusUnauthorized {
		return e, true
	}
	return nil, false
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		return seconds
	}
	return 0
}
