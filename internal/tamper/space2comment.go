package tamper

import "strings"

// space2comment replaces spaces outside string literals with an inline
// comment.
//
//	"SELECT id FROM users WHERE name='a b'" -> "SELECT/**/id/**/FROM/**/users/**/WHERE/**/name='a b'"
type space2comment struct{}

func (space2comment) Name() string { return "space2comment" }

func (space2comment) Apply(s string) string {
	return outsideQuotes(s, func(b *strings.Builder, c byte) {
		if c == ' ' {
			b.WriteString("/**/")
			return
		}
		b.WriteByte(c)
	})
}
