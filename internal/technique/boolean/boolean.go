// Package boolean decides the truth of a boolean-blind probe by comparing
// the probe page with the page of a known-true request.
package boolean

import (
	"bytes"
	"sync"

	"github.com/0x6d61/sqlsiphon/internal/detector"
)

// DefaultThreshold is the similarity at or above which a page counts as the
// true page.
const DefaultThreshold = 0.95

// Comparator holds the true-page baseline of one injection point.
type Comparator struct {
	diff      *detector.DiffEngine
	threshold float64
	marker    []byte

	mu       sync.RWMutex
	baseline []byte
	ready    bool
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(ratio float64) Option {
	return func(c *Comparator) {
		if ratio > 0 && ratio <= 1 {
			c.threshold = ratio
		}
	}
}

// WithMarker makes the comparator look for a string that only the true page
// contains instead of measuring similarity.
func WithMarker(s string) Option {
	return func(c *Comparator) {
		if s != "" {
			c.marker = []byte(s)
		}
	}
}

// New creates a Comparator.
func New(opts ...Option) *Comparator {
	c := &Comparator{diff: detector.NewDiffEngine(), threshold: DefaultThreshold}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetBaseline records the page of a true request.
func (c *Comparator) SetBaseline(page []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = bytes.Clone(page)
	c.ready = true
}

// Ready reports whether a baseline has been recorded. A marker comparator
// needs none.
func (c *Comparator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready || c.marker != nil
}

// Match reports whether page is the true page.
func (c *Comparator) Match(page []byte) bool {
	if c.marker != nil {
		return bytes.Contains(page, c.marker)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diff.Ratio(c.baseline, page) >= c.threshold
}
