package tamper

import "regexp"

// greaterThan matches "operand>N". The operand may hold nested calls such as
// ASCII(SUBSTRING(col,1,1)).
var greaterThan = regexp.MustCompile(`([^\s>=<(]*(?:\([^>]*\))?)\s*>\s*(\d+)`)

// between rewrites "x>N" as "x NOT BETWEEN 0 AND N" for filters that block
// the greater-than sign. Equivalent for non-negative operands, which is what
// length and character-code comparisons produce.
//
//	"ASCII(SUBSTRING(x,1,1))>64" -> "ASCII(SUBSTRING(x,1,1)) NOT BETWEEN 0 AND 64"
type between struct{}

func (between) Name() string { return "between" }

func (between) Apply(s string) string {
	return greaterThan.ReplaceAllString(s, "$1 NOT BETWEEN 0 AND $2")
}
