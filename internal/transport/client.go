package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Client sends requests to the target.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Stats() Stats
}

// Stats holds aggregate counters of a client.
type Stats struct {
	Requests int64
	Failures int64
	Elapsed  time.Duration
}

// Average returns the mean round-trip time.
func (s Stats) Average() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Requests)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout            time.Duration
	ProxyURL           string
	FollowRedirects    bool
	InsecureSkipVerify bool

	// UserAgent is sent when a request sets none; RandomUserAgent picks a
	// browser string per request instead.
	UserAgent       string
	RandomUserAgent bool

	// MaxRPS limits the request rate (0 = unlimited).
	MaxRPS float64

	// Retries is how many times a request failing at the network level is
	// re-sent before giving up.
	Retries int

	Logger *slog.Logger
}

// DefaultUserAgent identifies the tool when no other agent is configured.
const DefaultUserAgent = "sqlsiphon/1.0"

// HTTPClient is the net/http backed Client.
type HTTPClient struct {
	http    *http.Client
	opts    ClientOptions
	limiter *rate.Limiter
	logger  *slog.Logger

	requests  atomic.Int64
	failures  atomic.Int64
	elapsedNs atomic.Int64
}

// NewClient creates an HTTPClient.
func NewClient(opts ClientOptions) (*HTTPClient, error) {
	tr := &http.Transport{
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
		ForceAttemptHTTP2: true,
	}
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("transport: invalid proxy URL %q", opts.ProxyURL)
		}
		tr.Proxy = http.ProxyURL(u)
	}

	hc := &http.Client{Transport: tr, Timeout: opts.Timeout}
	if !opts.FollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	c := &HTTPClient{http: hc, opts: opts, logger: opts.Logger}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c, nil
}

// Do sends req, retrying network failures up to Retries times.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request", "url", req.URL, "attempt", attempt, "error", lastErr)
		}
		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.failures.Add(1)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limiter: %w", err)
		}
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent())
	}

	hc := c.http
	if req.Timeout > 0 && req.Timeout != hc.Timeout {
		cp := *hc
		cp.Timeout = req.Timeout
		hc = &cp
	}

	start := time.Now()
	httpResp, err := hc.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, req.URL, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("transport: reading response body: %w", err)
	}

	c.requests.Add(1)
	c.elapsedNs.Add(elapsed.Nanoseconds())

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
		Duration:   elapsed,
		URL:        httpResp.Request.URL.String(),
	}, nil
}

func (c *HTTPClient) userAgent() string {
	switch {
	case c.opts.RandomUserAgent:
		return RandomUserAgent()
	case c.opts.UserAgent != "":
		return c.opts.UserAgent
	default:
		return DefaultUserAgent
	}
}

// Stats returns aggregate transport statistics.
func (c *HTTPClient) Stats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Failures: c.failures.Load(),
		Elapsed:  time.Duration(c.elapsedNs.Load()),
	}
}
