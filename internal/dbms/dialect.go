package dbms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
)

// LimitRule recognises a row-limiting clause already present in a query.
type LimitRule struct {
	Pattern *regexp.Regexp

	// StartGroup and StopGroup are capture-group indices of the first row
	// offset and of the row count. A zero StartGroup means the clause has no
	// offset.
	StartGroup int
	StopGroup  int

	// Marker, when set, is where the query is cut once the clause has been
	// read; otherwise only the matched text is removed.
	Marker string

	// Capped marks clauses that always restrict the query to a single row,
	// such as Oracle's ROWNUM predicate.
	Capped bool
}

// Dialect is the per-DBMS strategy table of the query unpacker and of the
// output techniques.
type Dialect struct {
	Name string

	// Count wraps a field into a row-count aggregate ("COUNT(%s)").
	Count string

	// Case turns a predicate into a statement yielding 1 or 0.
	Case string

	// Cast converts an expression to text; NullCast additionally maps NULL
	// to a single space so concatenations never collapse.
	Cast     string
	NullCast string

	// Limit and Top recognise existing row-limiting clauses.
	Limit *LimitRule
	Top   *LimitRule

	// SingleRowTable names the pseudo-table whose queries never return more
	// than one row (Oracle's DUAL). FromTable is appended to FROM-less
	// SELECT statements in dialects that require a FROM clause.
	SingleRowTable string
	FromTable      string

	// OpaqueField matches built-in calls whose argument lists must not be
	// split into separate fields.
	OpaqueField *regexp.Regexp

	// Vector templates used when a point file does not provide its own.
	TimeVector    string
	StackedVector string
	UnionVector   string

	limitQuery func(num int, query, fields, field string) string
}

// Window is the row range an existing limiting clause selects.
type Window struct {
	Start int
	Stop  int

	// Expr is the query with the limiting clause removed.
	Expr string

	// Capped reports that the clause restricts the query to one row.
	Capped bool
}

var dialects = map[string]*Dialect{}

func register(d *Dialect) *Dialect {
	dialects[strings.ToLower(d.Name)] = d
	return d
}

// LookupDialect returns the strategy table of the named DBMS, or nil.
func LookupDialect(name string) *Dialect {
	d := Registry(name)
	if d == nil {
		return nil
	}
	return dialects[strings.ToLower(d.Name())]
}

// CountQuery rewrites query so that it counts the rows of its first field.
// Any trailing ORDER BY is dropped. A grouping query is counted as a derived
// table, since its aggregate fields yield one row per group.
func (d *Dialect) CountQuery(query, fields, firstField string) string {
	if sqlexpr.Grouped(query) {
		if i := indexFold(query, " ORDER BY "); i >= 0 {
			query = query[:i]
		}
		return fmt.Sprintf("SELECT %s FROM (%s) T", fmt.Sprintf(d.Count, "*"), query)
	}
	counted := strings.Replace(query, fields, fmt.Sprintf(d.Count, firstField), 1)
	if i := indexFold(counted, " ORDER BY "); i >= 0 {
		counted = counted[:i]
	}
	return counted
}

// CaseStatement wraps a predicate into a statement returning 1 when it holds.
func (d *Dialect) CaseStatement(predicate string) string {
	return fmt.Sprintf(d.Case, predicate)
}

// CastText converts expr to text.
func (d *Dialect) CastText(expr string) string {
	if d == nil || d.Cast == "" {
		return expr
	}
	return fmt.Sprintf(d.Cast, expr)
}

// NullCastText converts expr to text, replacing NULL with a space.
func (d *Dialect) NullCastText(expr string) string {
	if d == nil || d.NullCast == "" {
		return expr
	}
	return fmt.Sprintf(d.NullCast, expr)
}

// SupportsRowLimit reports whether single rows can be addressed by index.
func (d *Dialect) SupportsRowLimit() bool {
	return d != nil && d.limitQuery != nil
}

// LimitQuery returns the single-row, single-field form of query: field
// replaces the field list and only the row at 0-based index num is kept.
func (d *Dialect) LimitQuery(num int, query, fields, field string) string {
	if !d.SupportsRowLimit() {
		return strings.Replace(query, fields, field, 1)
	}
	return d.limitQuery(num, query, fields, field)
}

// Bounds inspects query for an existing row-limiting clause. The returned
// window's Stop is already offset by Start.
func (d *Dialect) Bounds(query string) (Window, bool) {
	if d == nil {
		return Window{}, false
	}
	for _, rule := range []*LimitRule{d.Limit, d.Top} {
		if rule == nil {
			continue
		}
		loc := rule.Pattern.FindStringSubmatchIndex(query)
		if loc == nil {
			continue
		}
		if rule.Capped {
			return Window{Expr: query, Capped: true}, true
		}

		group := func(n int) int {
			if n <= 0 || 2*n+1 >= len(loc) || loc[2*n] < 0 {
				return 0
			}
			v, _ := strconv.Atoi(query[loc[2*n]:loc[2*n+1]])
			return v
		}
		w := Window{Start: group(rule.StartGroup), Stop: group(rule.StopGroup), Expr: query}
		if w.Stop <= 1 {
			w.Capped = true
			return w, true
		}

		w.Stop += w.Start
		if rule.Marker != "" {
			if i := indexFold(query, rule.Marker); i >= 0 {
				w.Expr = query[:i]
			}
		} else {
			w.Expr = query[:loc[0]] + query[loc[1]:]
		}
		return w, true
	}
	return Window{}, false
}

// SingleRow reports whether query reads from the dialect's single-row table.
func (d *Dialect) SingleRow(query string) bool {
	if d == nil || d.SingleRowTable == "" {
		return false
	}
	return strings.HasSuffix(strings.ToUpper(strings.TrimSpace(query)), "FROM "+d.SingleRowTable)
}

// Opaque reports whether query's field list must be kept as a single field.
func (d *Dialect) Opaque(query string) bool {
	return d != nil && d.OpaqueField != nil && d.OpaqueField.MatchString(query)
}

// indexFold is a case-insensitive strings.Index.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToUpper(s), strings.ToUpper(substr))
}
