package transport

import (
	"net/http"
	"time"
)

// Response is the target's answer to a Request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// Duration is the round-trip time of the final attempt.
	Duration time.Duration

	// URL is the final URL after any redirects.
	URL string
}

// BodyString returns the response body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// NotFound reports a 404 answer.
func (r *Response) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}
