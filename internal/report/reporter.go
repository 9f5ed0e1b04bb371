// Package report provides formatters for extraction results.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0x6d61/sqlsiphon/internal/engine"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the formatted run to w.
	Generate(ctx context.Context, run *Run, w io.Writer) error
}

// New creates a reporter by format name ("text", "json" or "yaml").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	case "yaml", "yml":
		return &YAMLReporter{}, nil
	default:
		return nil, fmt.Errorf("report: unsupported format: %q", format)
	}
}

// Run is one extraction session against an injection point.
type Run struct {
	ID          string
	Target      technique.Target
	Parameter   technique.Parameter
	DBMS        string
	DBMSVersion string

	StartTime    time.Time
	EndTime      time.Time
	RequestCount int64

	Extractions []Extraction
	Errors      []error
}

// Extraction is one retrieved value.
type Extraction struct {
	// Label names what was retrieved ("banner", "sql query").
	Label      string
	Expression string

	// Technique is the technique that answered; empty when none did.
	Technique string
	Value     engine.Value
}

// NewRun starts a run with a fresh ID.
func NewRun(target technique.Target, param technique.Parameter) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Target:    target,
		Parameter: param,
		StartTime: time.Now(),
	}
}

// Add records a retrieved value. A zero t means no technique answered.
func (r *Run) Add(label, expression string, t technique.Technique, v engine.Value) {
	e := Extraction{Label: label, Expression: expression, Value: v}
	if t != 0 && !v.IsMissing() {
		e.Technique = t.String()
	}
	r.Extractions = append(r.Extractions, e)
}

// Finish stamps the end time and the request count.
func (r *Run) Finish(requests int64) {
	r.EndTime = time.Now()
	r.RequestCount = requests
}

// retrieved counts the extractions that produced a value.
func (r *Run) retrieved() int {
	n := 0
	for _, e := range r.Extractions {
		if !e.Value.IsMissing() {
			n++
		}
	}
	return n
}
