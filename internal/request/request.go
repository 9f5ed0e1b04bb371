// Package request places payloads into the injectable parameter, sends them
// and turns the answers into pages and boolean signals.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x6d61/sqlsiphon/internal/detector"
	"github.com/0x6d61/sqlsiphon/internal/technique"
	"github.com/0x6d61/sqlsiphon/internal/technique/boolean"
	"github.com/0x6d61/sqlsiphon/internal/technique/timebased"
	"github.com/0x6d61/sqlsiphon/internal/transport"
)

// ErrNotFound is returned by QueryPage when Raise404 is set and the target
// answers 404.
var ErrNotFound = errors.New("request: page not found")

// DefaultTimeout is the base request timeout.
const DefaultTimeout = 30 * time.Second

// Page is the target's answer to one payload.
type Page struct {
	Payload    string
	Body       []byte
	StatusCode int
	Duration   time.Duration
}

// String returns the page body.
func (p *Page) String() string {
	return string(p.Body)
}

// Options tunes a single QueryPage call.
type Options struct {
	// TimeBased raises the request timeout above the sleep delay.
	TimeBased bool

	// Raise404 turns a 404 answer into ErrNotFound.
	Raise404 bool
}

// Requester sends payloads for one injection point.
type Requester struct {
	client  transport.Client
	target  technique.Target
	param   technique.Parameter
	logger  *slog.Logger
	timeout time.Duration

	content *boolean.Comparator
	timing  *timebased.Timing

	calMu    sync.Mutex
	requests atomic.Int64
}

// Option configures a Requester.
type Option func(*Requester)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Requester) { r.logger = l }
}

// WithComparator sets the content comparator of boolean probes.
func WithComparator(c *boolean.Comparator) Option {
	return func(r *Requester) { r.content = c }
}

// WithTiming sets the response-time comparator of time-based probes.
func WithTiming(t *timebased.Timing) Option {
	return func(r *Requester) { r.timing = t }
}

// WithTimeout sets the base request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a Requester for the point's target and parameter.
func New(client transport.Client, point *technique.Point, opts ...Option) *Requester {
	r := &Requester{
		client:  client,
		target:  point.Target,
		param:   point.Parameter,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.content == nil {
		r.content = boolean.New()
	}
	if r.timing == nil {
		r.timing = timebased.New(5)
	}
	return r
}

// Requests returns the number of requests sent so far.
func (r *Requester) Requests() int64 {
	return r.requests.Load()
}

// QueryPage sends value as the parameter value and returns the page.
func (r *Requester) QueryPage(ctx context.Context, value string, opts Options) (*Page, error) {
	req := r.Build(value)
	req.Timeout = r.timeout
	if opts.TimeBased {
		req.Timeout = r.timing.Timeout(r.timeout)
	}

	r.requests.Add(1)
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if opts.Raise404 && resp.NotFound() {
		return nil, ErrNotFound
	}
	if errs := detector.FindSQLErrors(resp.Body); len(errs) > 0 {
		r.logger.Debug("page carries a database error", "dbms", errs[0].DBMS, "message", errs[0].Message)
	}
	return &Page{
		Payload:    value,
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Duration:   resp.Duration,
	}, nil
}

// Evaluate sends value and reports whether the injected condition held: the
// page matched the true page, or for time-based probes the answer was
// delayed. The first call of each kind measures the baseline.
func (r *Requester) Evaluate(ctx context.Context, value string, timeBased bool) (bool, error) {
	if err := r.calibrate(ctx, timeBased); err != nil {
		return false, err
	}
	page, err := r.QueryPage(ctx, value, Options{TimeBased: timeBased})
	if err != nil {
		return false, err
	}
	if timeBased {
		return r.timing.Delayed(page.Duration), nil
	}
	return r.content.Match(page.Body), nil
}

func (r *Requester) calibrate(ctx context.Context, timeBased bool) error {
	r.calMu.Lock()
	defer r.calMu.Unlock()

	if timeBased {
		if r.timing.Ready() {
			return nil
		}
		samples := make([]time.Duration, 0, timebased.BaselineSamples)
		for range timebased.BaselineSamples {
			page, err := r.QueryPage(ctx, r.param.Value, Options{})
			if err != nil {
				return fmt.Errorf("request: timing baseline: %w", err)
			}
			samples = append(samples, page.Duration)
		}
		r.timing.Calibrate(samples...)
		r.logger.Debug("timing baseline measured", "threshold", r.timing.Threshold())
		return nil
	}

	if r.content.Ready() {
		return nil
	}
	page, err := r.QueryPage(ctx, r.param.Value, Options{})
	if err != nil {
		return fmt.Errorf("request: content baseline: %w", err)
	}
	r.content.SetBaseline(page.Body)
	r.logger.Debug("content baseline recorded", "bytes", len(page.Body))
	return nil
}

// Build returns the target request with the injectable parameter set to
// value.
func (r *Requester) Build(value string) *transport.Request {
	req := &transport.Request{
		Method:      r.target.Method,
		URL:         r.target.URL,
		Body:        r.target.Body,
		ContentType: r.target.ContentType,
		Headers:     cloneMap(r.target.Headers),
		Cookies:     cloneMap(r.target.Cookies),
	}
	if req.Body != "" && req.ContentType == "" {
		req.ContentType = "application/x-www-form-urlencoded"
	}

	switch r.param.Place {
	case technique.PlaceQuery:
		req.URL = setQueryParam(r.target.URL, r.param.Name, value)
	case technique.PlaceBody:
		req.Body = setBodyParam(r.target.Body, r.param.Name, value)
	case technique.PlaceHeader:
		if req.Headers == nil {
			req.Headers = make(map[string]string, 1)
		}
		req.Headers[r.param.Name] = value
	case technique.PlaceCookie:
		if req.Cookies == nil {
			req.Cookies = make(map[string]string, 1)
		}
		req.Cookies[r.param.Name] = url.QueryEscape(value)
	}
	return req
}

func setQueryParam(rawURL, name, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(name, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func setBodyParam(body, name, value string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}
	values.Set(name, value)
	return values.Encode()
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
