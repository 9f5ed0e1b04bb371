package engine

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// scalarPattern matches aggregate queries, which yield one row unless they
// group.
var scalarPattern = regexp.MustCompile(`(?i)\A(?:SELECT\s+)?(?:COUNT|MIN|MAX|SUM|AVG)\(`)

// inferenceRetrieve retrieves c.Expression through the oracle, one row and
// one field at a time.
func (e *Engine) inferenceRetrieve(ctx context.Context, c *Call) (Value, error) {
	expr := c.Expression

	if c.UseCache {
		cached, ok, err := e.resume(ctx, expr)
		if err != nil {
			return Missing(), err
		}
		if ok && c.Expected.valid(cached) {
			return Text(cached), nil
		}
	}

	if !c.Unpack || e.dialect == nil {
		s, null, err := e.retrieve(ctx, c, expr, c.Charset)
		if err != nil || null {
			return Missing(), err
		}
		return Text(s), nil
	}

	fields := sqlexpr.Fields(expr)
	if e.dialect.Opaque(expr) {
		fields.List = []string{fields.Raw}
	}

	if c.FromUser && multiRowCandidate(expr) && e.dialect.SupportsRowLimit() {
		v, handled, err := e.multiRow(ctx, c, expr, fields)
		if err != nil || handled {
			return v, err
		}
	}

	return e.singleRow(ctx, c, expr, fields)
}

// multiRowCandidate reports whether expr is a SELECT reading from a table
// that may yield several rows.
func multiRowCandidate(expr string) bool {
	if !sqlexpr.HasFrom(expr) {
		return false
	}
	return !scalarPattern.MatchString(expr) || sqlexpr.Grouped(expr)
}

// multiRow retrieves a query row by row. handled is false when the query
// turned out to return a single row.
func (e *Engine) multiRow(ctx context.Context, c *Call, expr string, fields sqlexpr.FieldSet) (Value, bool, error) {
	start, stop := 0, 0
	if w, ok := e.dialect.Bounds(expr); ok {
		if w.Capped {
			return Missing(), false, nil
		}
		start, stop = w.Start, w.Stop
		expr = w.Expr
		e.logger.Debug("existing row limit found", "start", start, "stop", stop)
	}

	if stop <= 1 {
		multiple, err := e.multipleEntries(ctx, c, expr)
		if err != nil {
			return Missing(), true, err
		}
		if !multiple {
			return Missing(), false, nil
		}
	}

	if stop == 0 {
		count, err := e.count(ctx, c, expr, fields)
		if err != nil {
			return Missing(), true, err
		}
		if count == 0 {
			e.console.Warnf("the SQL query provided does not return any output")
			return Missing(), true, nil
		}

		stop = count
		if !c.Batch && count > 1 {
			sel, err := e.decider.EntryCount(ctx, count)
			switch {
			case errors.Is(err, ErrInvalidChoice):
				e.logger.Error("invalid number of entries", "err", err)
				return Missing(), true, nil
			case err != nil:
				return Missing(), true, err
			case sel.Quit:
				return Missing(), true, ErrQuit
			case sel.Limit < 0 || sel.Limit > count:
				e.logger.Error("invalid number of entries", "limit", sel.Limit, "count", count)
				return Missing(), true, nil
			case sel.Limit > 0:
				stop = sel.Limit
			}
		}
	}

	if !c.Dump {
		e.console.Infof("retrieving %d entries", stop-start)
	}
	rows := make([][]string, 0, stop-start)
	for num := start; num < stop; num++ {
		row := make([]string, 0, len(fields.List))
		for _, field := range fields.List {
			q := e.dialect.LimitQuery(num, expr, fields.Raw, field)
			s, err := e.field(ctx, c, q)
			if err != nil {
				return Missing(), true, err
			}
			row = append(row, s)
		}
		rows = append(rows, row)
		if e.progress != nil {
			e.progress(num-start+1, stop-start)
		}
	}
	return Rows(rows), true, nil
}

// multipleEntries decides whether expr may return several rows.
func (e *Engine) multipleEntries(ctx context.Context, c *Call, expr string) (bool, error) {
	if e.dialect.SingleRow(expr) {
		return false, nil
	}
	if c.Batch {
		return true, nil
	}
	return e.decider.MultipleEntries(ctx)
}

// count returns the number of rows expr yields. A NULL or unreadable count
// is taken as a single row.
func (e *Engine) count(ctx context.Context, c *Call, expr string, fields sqlexpr.FieldSet) (int, error) {
	first := fields.Raw
	if len(fields.List) > 0 {
		first = fields.List[0]
	}
	q := e.dialect.CountQuery(expr, fields.Raw, first)

	var (
		s  string
		ok bool
	)
	if c.UseCache {
		var err error
		if s, ok, err = e.resume(ctx, q); err != nil {
			return 0, err
		}
	}
	if !ok || !ExpectInt.valid(s) {
		var (
			null bool
			err  error
		)
		if s, null, err = e.retrieve(ctx, c, q, inference.Digits); err != nil {
			return 0, err
		}
		if null {
			s = ""
		}
	}

	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		e.console.Warnf("invalid value for query total rows: %q, retrieving one entry", s)
		e.logger.Warn("unreadable row count", "value", s)
		return 1, nil
	}
	return n, nil
}

// singleRow retrieves each field of expr independently and joins them.
func (e *Engine) singleRow(ctx context.Context, c *Call, expr string, fields sqlexpr.FieldSet) (Value, error) {
	expr = e.withFromTable(expr)

	parts := make([]string, 0, len(fields.List))
	seen := false
	for _, field := range fields.List {
		q := expr
		if len(fields.List) > 1 {
			q = strings.Replace(expr, fields.Raw, field, 1)
		}
		s, null, err := e.retrieveResumed(ctx, c, q)
		if err != nil {
			return Missing(), err
		}
		if !null {
			seen = true
		}
		parts = append(parts, s)
	}
	if !seen {
		return Missing(), nil
	}
	out := strings.Join(parts, ", ")
	if !c.Dump {
		e.console.Infof("retrieved: %s", out)
	}
	return Text(out), nil
}

// field returns one cell of a multi-row retrieval.
func (e *Engine) field(ctx context.Context, c *Call, q string) (string, error) {
	s, _, err := e.retrieveResumed(ctx, c, q)
	return s, err
}

// retrieveResumed resumes q from the cache or retrieves it. A resumed
// value failing the type check is retrieved again.
func (e *Engine) retrieveResumed(ctx context.Context, c *Call, q string) (string, bool, error) {
	if c.UseCache {
		s, ok, err := e.resume(ctx, q)
		if err != nil {
			return "", false, err
		}
		if ok && c.Expected.valid(s) {
			return s, false, nil
		}
	}
	return e.retrieve(ctx, c, q, c.Charset)
}

// retrieve runs one oracle call on expr.
func (e *Engine) retrieve(ctx context.Context, c *Call, expr string, cs inference.Charset) (string, bool, error) {
	v := e.point.Vector(c.Technique)
	t := c.Technique
	job := inference.Job{
		Payload: func(predicate string) string {
			return e.agent.Payload(t, v, e.agent.Inference(v, predicate)).Value
		},
		Expression: expr,
		Charset:    cs,
		FirstChar:  c.FirstChar,
		LastChar:   c.LastChar,
		TimeBased:  t.TimeBased(),
	}
	res, err := e.oracle.Retrieve(ctx, job)
	if err != nil {
		return "", false, err
	}
	e.logger.Debug("oracle answered", "expression", expr, "queries", res.Queries, "null", res.Null)

	if e.storeInference && !res.Null && t != technique.Union {
		if err := e.store(ctx, expr, res.Value); err != nil {
			return "", false, err
		}
	}
	return res.Value, res.Null, nil
}
