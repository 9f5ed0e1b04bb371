package report

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/0x6d61/sqlsiphon/internal/engine"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// document is the structure shared by the JSON and YAML reports.
type document struct {
	SchemaVersion string     `json:"schema_version" yaml:"schema_version"`
	Tool          string     `json:"tool" yaml:"tool"`
	RunID         string     `json:"run_id" yaml:"run_id"`
	Target        docTarget  `json:"target" yaml:"target"`
	DBMS          *docDBMS   `json:"dbms,omitempty" yaml:"dbms,omitempty"`
	Run           docRun     `json:"run" yaml:"run"`
	Extractions   []docValue `json:"extractions" yaml:"extractions"`
	Summary       docSummary `json:"summary" yaml:"summary"`
	Errors        []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type docTarget struct {
	URL       string `json:"url" yaml:"url"`
	Method    string `json:"method" yaml:"method"`
	Parameter string `json:"parameter" yaml:"parameter"`
	Place     string `json:"place" yaml:"place"`
}

type docDBMS struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

type docRun struct {
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	EndTime         time.Time `json:"end_time" yaml:"end_time"`
	DurationSeconds float64   `json:"duration_seconds" yaml:"duration_seconds"`
	TotalRequests   int64     `json:"total_requests" yaml:"total_requests"`
}

// docValue carries the value in its natural shape: null, a boolean, a
// string or a list of rows.
type docValue struct {
	Label      string `json:"label" yaml:"label"`
	Expression string `json:"expression" yaml:"expression"`
	Technique  string `json:"technique,omitempty" yaml:"technique,omitempty"`
	Kind       string `json:"kind" yaml:"kind"`
	Value      any    `json:"value" yaml:"value"`
}

type docSummary struct {
	Total     int `json:"total" yaml:"total"`
	Retrieved int `json:"retrieved" yaml:"retrieved"`
}

func newDocument(run *Run) document {
	doc := document{
		SchemaVersion: "1.0",
		Tool:          "sqlsiphon",
		RunID:         run.ID,
		Target: docTarget{
			URL:       run.Target.URL,
			Method:    run.Target.Method,
			Parameter: run.Parameter.Name,
			Place:     run.Parameter.Place.String(),
		},
		Run: docRun{
			StartTime:     run.StartTime,
			EndTime:       run.EndTime,
			TotalRequests: run.RequestCount,
		},
		Extractions: make([]docValue, 0, len(run.Extractions)),
		Summary: docSummary{
			Total:     len(run.Extractions),
			Retrieved: run.retrieved(),
		},
	}
	if !run.EndTime.IsZero() {
		doc.Run.DurationSeconds = run.EndTime.Sub(run.StartTime).Seconds()
	}

	if run.DBMS != "" {
		doc.DBMS = &docDBMS{Name: run.DBMS, Version: run.DBMSVersion}
	}

	for _, e := range run.Extractions {
		doc.Extractions = append(doc.Extractions, docValue{
			Label:      e.Label,
			Expression: e.Expression,
			Technique:  e.Technique,
			Kind:       e.Value.Kind().String(),
			Value:      plain(e.Value),
		})
	}

	if len(run.Errors) > 0 {
		doc.Errors = make([]string, len(run.Errors))
		for i, e := range run.Errors {
			doc.Errors[i] = e.Error()
		}
	}
	return doc
}

func plain(v engine.Value) any {
	if b, ok := v.AsBool(); ok {
		return b
	}
	if s, ok := v.AsText(); ok {
		return s
	}
	if rows, ok := v.AsRows(); ok {
		return rows
	}
	return nil
}

// Generate writes the run as JSON to w.
func (r *JSONReporter) Generate(ctx context.Context, run *Run, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(newDocument(run))
}
