package tamper

import (
	"fmt"
	"strings"
)

// charEncode percent-encodes every character of the payload, leaving
// sequences that are already encoded alone. Targets that URL-decode the
// parameter twice see the original SQL.
//
//	"1 AND 1=1" -> "%31%20%41%4E%44%20%31%3D%31"
type charEncode struct{}

func (charEncode) Name() string { return "charencode" }

func (charEncode) Apply(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteString(s[i : i+3])
			i += 2
			continue
		}
		fmt.Fprintf(&b, "%%%02X", s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
