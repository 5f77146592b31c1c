package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/staybook/staybook-cli/internal/output"
)

// Envelope is the server's standard response wrapper.
type Envelope[T any] struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      *T              `json:"data"`
	Errors    json.RawMessage `json:"errors,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Decode unwraps the envelope in resp and returns its data. A missing data
// field decodes to the zero value; success=false is an error even on a 2xx.
// Bodies that are not envelopes (no "success" field) decode directly as T.
func Decode[T any](resp *Response) (T, error) {
	var zero T
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return zero, nil
	}

	if !isEnvelope(resp.Body) {
		var v T
		if err := json.Unmarshal(resp.Body, &v); err != nil {
			return zero, invalidResponse(resp.StatusCode, err)
		}
		return v, nil
	}

	var env Envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return zero, invalidResponse(resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "Request was not successful"
		}
		e := output.ErrAPI(resp.StatusCode, msg)
		if len(env.Errors) > 0 && string(env.Errors) != "null" {
			e.Details = env.Errors
		}
		return zero, e
	}
	if env.Data == nil {
		return zero, nil
	}
	return *env.Data, nil
}

// Message returns the envelope message of resp, or "" when there is none.
func Message(resp *Response) string {
	if resp == nil || !isEnvelope(resp.Body) {
		return ""
	}
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return ""
	}
	return env.Message
}

func isEnvelope(body []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

func invalidResponse(status int, err error) *output.Error {
	e := output.ErrAPI(status, fmt.Sprintf("Invalid response from server: %v", err))
	e.Cause = err
	return e
}
