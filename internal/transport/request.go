// Package transport sends the HTTP requests that carry injected payloads and
// measures their round-trip time.
package transport

import (
	"maps"
	"time"
)

// Request is one HTTP request to the target.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Cookies     map[string]string
	Body        string
	ContentType string

	// Timeout overrides the client timeout when positive. Time-based probes
	// raise it above the sleep delay.
	Timeout time.Duration
}

// Clone returns a deep copy of the Request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = maps.Clone(r.Headers)
	c.Cookies = maps.Clone(r.Cookies)
	return &c
}
