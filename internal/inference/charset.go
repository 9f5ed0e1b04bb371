package inference

import (
	"fmt"
	"slices"
	"strings"
)

// Charset is the sorted table of character codes a bisection searches.
type Charset []int

// Named charsets.
var (
	ASCII    = codeRange(0, 127)
	Binary   = codeRange(0, 255)
	Digits   = FromString("-.0123456789")
	Hex      = FromString("0123456789ABCDEFabcdef")
	Alpha    = FromString("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	AlphaNum = FromString("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
)

var named = map[string]Charset{
	"default":  ASCII,
	"ascii":    ASCII,
	"binary":   Binary,
	"digits":   Digits,
	"hex":      Hex,
	"alpha":    Alpha,
	"alphanum": AlphaNum,
}

func codeRange(lo, hi int) Charset {
	cs := make(Charset, 0, hi-lo+1)
	for c := lo; c <= hi; c++ {
		cs = append(cs, c)
	}
	return cs
}

// FromString builds a charset from the characters of s.
func FromString(s string) Charset {
	var cs Charset
	for _, r := range s {
		cs = append(cs, int(r))
	}
	slices.Sort(cs)
	return slices.Compact(cs)
}

// ParseCharset returns a named charset, or the charset made of the literal
// characters of s when it is not a known name. An empty s is the default.
func ParseCharset(s string) (Charset, error) {
	if s == "" {
		return ASCII, nil
	}
	if cs, ok := named[strings.ToLower(s)]; ok {
		return cs, nil
	}
	if strings.HasPrefix(s, "chars:") {
		cs := FromString(strings.TrimPrefix(s, "chars:"))
		if len(cs) == 0 {
			return nil, fmt.Errorf("inference: empty charset")
		}
		return cs, nil
	}
	return nil, fmt.Errorf("inference: unknown charset %q (use a name or chars:<characters>)", s)
}

// overflow returns the table searched when a character lies above the
// last code of cs, or nil when nothing is left to search.
func overflow(cs Charset) Charset {
	last := cs[len(cs)-1]
	switch {
	case last < 255:
		return codeRange(last+1, 255)
	case last < 0xFFFF:
		return codeRange(last+1, 0xFFFF)
	default:
		return nil
	}
}
