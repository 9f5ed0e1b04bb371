// Package sqlexpr normalises SQL expressions and splits their field lists.
package sqlexpr

import (
	"regexp"
	"strings"
)

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "ORDER": true, "GROUP": true,
	"BY": true, "LIMIT": true, "OFFSET": true, "DISTINCT": true, "TOP": true,
	"COUNT": true, "AS": true, "AND": true, "OR": true, "NOT": true, "IN": true,
	"UNION": true, "ALL": true, "HAVING": true, "FIRST": true, "SKIP": true,
	"NULL": true, "IS": true, "LIKE": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "ASC": true, "DESC": true,
	"JOIN": true, "ON": true, "ROWNUM": true, "INSERT": true, "INTO": true,
	"VALUES": true, "UPDATE": true, "SET": true, "DELETE": true,
}

// Clean upper-cases SQL keywords and collapses runs of whitespace.
// Quoted literals and identifiers are copied verbatim.
func Clean(expr string) string {
	var b strings.Builder
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if keywords[strings.ToUpper(w)] {
			w = strings.ToUpper(w)
		}
		b.WriteString(w)
		word.Reset()
	}

	expr = strings.TrimSpace(expr)
	var quote byte
	space := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush()
			if space {
				b.WriteByte(' ')
				space = false
			}
			quote = c
			b.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
			space = true
		case isWordByte(c):
			if space {
				b.WriteByte(' ')
				space = false
			}
			word.WriteByte(c)
		default:
			flush()
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteByte(c)
		}
	}
	flush()
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '#' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// StripDistinct drops "DISTINCT " unless the expression counts all rows.
func StripDistinct(expr string) string {
	if strings.Contains(strings.ToUpper(expr), "COUNT(*)") {
		return expr
	}
	return distinctPattern.ReplaceAllString(expr, "")
}

var distinctPattern = regexp.MustCompile(`(?i)\bDISTINCT\s+`)

// FieldSet is the field list of a SELECT statement.
type FieldSet struct {
	// Raw is the field list exactly as written in the statement; replacing
	// it substitutes the whole list.
	Raw string

	// List holds the individual fields with any trailing alias removed.
	List []string
}

var (
	selectHead = regexp.MustCompile(`(?is)^SELECT\s+(?:DISTINCT\s+)?(?:TOP\s+\d+\s+)?(?:FIRST\s+\d+\s+)?(?:SKIP\s+\d+\s+)?`)
	aliasTail  = regexp.MustCompile(`(?i)\s+AS\s+[\w$"]+$`)
	fromWord   = regexp.MustCompile(`(?i)\bFROM\b`)
	groupWord  = regexp.MustCompile(`(?i)\b(?:GROUP\s+BY|HAVING)\b`)
)

// Fields returns the field list of expr. A bare expression is its own single
// field.
func Fields(expr string) FieldSet {
	raw := expr
	if h := selectHead.FindStringIndex(expr); h != nil {
		raw = expr[h[1]:]
		if i := topLevel(expr, fromWord); i > h[1] {
			raw = strings.TrimSpace(expr[h[1]:i])
		}
	}

	var list []string
	for _, f := range Split(raw) {
		list = append(list, aliasTail.ReplaceAllString(f, ""))
	}
	return FieldSet{Raw: raw, List: list}
}

// Split splits s on commas outside parentheses and quotes.
func Split(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(parts) > 0 {
		parts = append(parts, tail)
	}
	return parts
}

// IsSelect reports whether expr is a SELECT statement.
func IsSelect(expr string) bool {
	return len(expr) >= 7 && strings.EqualFold(expr[:7], "SELECT ")
}

// HasFrom reports whether the SELECT statement expr reads from a table. A
// FROM inside parentheses or quotes belongs to a subquery or a function
// call and does not count.
func HasFrom(expr string) bool {
	return IsSelect(expr) && topLevel(expr, fromWord) >= 0
}

// Grouped reports whether expr aggregates by group, so that an aggregate
// field may still yield several rows.
func Grouped(expr string) bool {
	return topLevel(expr, groupWord) >= 0
}

// topLevel returns the offset of the first match of re outside parentheses
// and quotes, or -1.
func topLevel(expr string, re *regexp.Regexp) int {
	for _, loc := range re.FindAllStringIndex(expr, -1) {
		if outside(expr, loc[0]) {
			return loc[0]
		}
	}
	return -1
}

// outside reports whether offset pos of expr is at nesting depth zero.
func outside(expr string, pos int) bool {
	depth := 0
	var quote byte
	for i := 0; i < pos; i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth == 0 && quote == 0
}

var tableRef = regexp.MustCompile(`(?i)\sFROM\s+(?:([\w$]+)\.{1,2})?([\w$]+)`)

// Table returns the database and table names of the first FROM clause in
// expr. db is empty when the table is unqualified.
func Table(expr string) (db, table string, ok bool) {
	m := tableRef.FindStringSubmatch(expr)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// HasAsterisk reports whether the field list of expr selects every column.
func HasAsterisk(expr string) bool {
	if !IsSelect(expr) || !HasFrom(expr) {
		return false
	}
	for _, f := range Fields(expr).List {
		if f == "*" || strings.HasSuffix(f, ".*") {
			return true
		}
	}
	return false
}

// ExpandAsterisk replaces the "*" field of expr with columns.
func ExpandAsterisk(expr string, columns []string) string {
	if len(columns) == 0 {
		return expr
	}
	fs := Fields(expr)
	out := make([]string, 0, len(fs.List)+len(columns))
	for _, f := range fs.List {
		if f == "*" || strings.HasSuffix(f, ".*") {
			out = append(out, columns...)
			continue
		}
		out = append(out, f)
	}
	return strings.Replace(expr, fs.Raw, strings.Join(out, ","), 1)
}
