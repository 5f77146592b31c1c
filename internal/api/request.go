package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Request describes one API call. Path is relative to the client's base URL
// ("bookings/upcoming"); an absolute URL is used as is.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    any
	Timeout time.Duration

	// retried is set on the single replay that follows a refresh.
	retried bool
}

// Retried reports whether this request is the replay after a refresh.
func (r *Request) Retried() bool {
	return r.retried
}

// clone copies the request so a replay never shares header maps with the
// original.
func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// Response is a successful (2xx) HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Unmarshal decodes the raw body into v.
func (r *Response) Unmarshal(v any) error {
	return json.Unmarshal(r.Body, v)
}
