package report

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 50
)

// TextReporter outputs plain terminal text.
type TextReporter struct {
	// Verbose adds the expression of every value when > 0.
	Verbose int
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes the run to w.
func (r *TextReporter) Generate(ctx context.Context, run *Run, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := &strings.Builder{}

	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "sqlsiphon - Extraction Results")
	fmt.Fprintln(b, doubleBar)

	fmt.Fprintf(b, "Target:    %s\n", run.Target.URL)
	fmt.Fprintf(b, "Parameter: %s (%s)\n", run.Parameter.Name, run.Parameter.Place)
	if run.DBMS != "" {
		dbmsInfo := run.DBMS
		if run.DBMSVersion != "" {
			dbmsInfo += " " + run.DBMSVersion
		}
		fmt.Fprintf(b, "DBMS:      %s\n", dbmsInfo)
	}
	fmt.Fprintf(b, "Run:       %s\n", run.ID)
	if !run.EndTime.IsZero() {
		fmt.Fprintf(b, "Duration:  %.1fs\n", run.EndTime.Sub(run.StartTime).Seconds())
	}
	fmt.Fprintf(b, "Requests:  %d\n", run.RequestCount)

	for _, e := range run.Extractions {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintf(b, "%s:", e.Label)
		if e.Technique != "" {
			fmt.Fprintf(b, " [%s]", e.Technique)
		}
		fmt.Fprintln(b)
		if r.Verbose > 0 {
			fmt.Fprintf(b, "  query: %s\n", e.Expression)
		}
		if e.Value.IsMissing() {
			fmt.Fprintln(b, "  (none)")
			continue
		}
		for _, line := range e.Value.Strings() {
			fmt.Fprintf(b, "  %s\n", line)
		}
	}

	if len(run.Errors) > 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "Errors:")
		for _, e := range run.Errors {
			fmt.Fprintf(b, "  - %s\n", e.Error())
		}
	}

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d of %d value(s) retrieved\n", run.retrieved(), len(run.Extractions))
	fmt.Fprintln(b, doubleBar)

	_, err := io.WriteString(w, b.String())
	return err
}
