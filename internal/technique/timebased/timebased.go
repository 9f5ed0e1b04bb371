// Package timebased decides the truth of a time-based probe from its
// response time.
package timebased

import (
	"sync"
	"time"
)

const (
	// DefaultTolerance is the fraction of the sleep delay a response must
	// exceed the baseline by to count as delayed.
	DefaultTolerance = 0.7

	// BaselineSamples is the number of undelayed requests averaged into the
	// baseline.
	BaselineSamples = 2
)

// Timing holds the response-time baseline of one injection point.
type Timing struct {
	sleep     time.Duration
	tolerance float64

	mu       sync.RWMutex
	baseline time.Duration
	ready    bool
}

// New creates a Timing for vectors sleeping the given number of seconds.
func New(sleepSeconds int) *Timing {
	return NewWithTolerance(time.Duration(sleepSeconds)*time.Second, DefaultTolerance)
}

// NewWithTolerance creates a Timing with an explicit sleep delay and
// tolerance.
func NewWithTolerance(sleep time.Duration, tolerance float64) *Timing {
	return &Timing{sleep: sleep, tolerance: tolerance}
}

// Calibrate sets the baseline to the mean of samples.
func (t *Timing) Calibrate(samples ...time.Duration) {
	if len(samples) == 0 {
		return
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	t.mu.Lock()
	t.baseline = total / time.Duration(len(samples))
	t.ready = true
	t.mu.Unlock()
}

// Ready reports whether the baseline has been measured.
func (t *Timing) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Threshold returns baseline + sleep*tolerance.
func (t *Timing) Threshold() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseline + time.Duration(float64(t.sleep)*t.tolerance)
}

// Delayed reports whether a response time means the condition held.
func (t *Timing) Delayed(elapsed time.Duration) bool {
	return elapsed >= t.Threshold()
}

// Timeout returns a request timeout long enough for a delayed answer.
func (t *Timing) Timeout(base time.Duration) time.Duration {
	return base + 2*t.sleep
}
