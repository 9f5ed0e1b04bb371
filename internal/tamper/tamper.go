// Package tamper rewrites injected SQL before it is placed into a request,
// to get payloads past filters that match on literal SQL syntax.
//
// Tampers compose into a Chain applied to the final parameter value:
//
//	chain, err := tamper.Parse("space2comment,between")
//	value := chain.Apply(payload)
package tamper

import (
	"fmt"
	"sort"
	"strings"
)

// Tamper transforms an injected SQL string. Implementations must keep the
// SQL semantically equivalent.
type Tamper interface {
	Name() string
	Apply(s string) string
}

// Chain applies multiple tampers sequentially.
type Chain []Tamper

// Apply runs each tamper in order.
func (c Chain) Apply(s string) string {
	for _, t := range c {
		s = t.Apply(s)
	}
	return s
}

// Names returns the names of the tampers in the chain.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return names
}

var registry = map[string]func() Tamper{
	"space2comment": func() Tamper { return space2comment{} },
	"randomcase":    func() Tamper { return newRandomCase() },
	"charencode":    func() Tamper { return charEncode{} },
	"between":       func() Tamper { return between{} },
}

// Lookup returns the Tamper for the given name, or nil if not found.
func Lookup(name string) Tamper {
	fn, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return fn()
}

// Available returns all registered tamper names in alphabetical order.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse builds a chain from a comma-separated list of tamper names.
func Parse(list string) (Chain, error) {
	var chain Chain
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t := Lookup(name)
		if t == nil {
			return nil, fmt.Errorf("tamper: unknown tamper %q (available: %s)", name, strings.Join(Available(), ", "))
		}
		chain = append(chain, t)
	}
	return chain, nil
}

// outsideQuotes calls fn for every byte of s that is not inside a single
// quoted literal and copies quoted bytes unchanged.
func outsideQuotes(s string, fn func(b *strings.Builder, c byte)) string {
	var b strings.Builder
	b.Grow(len(s))
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			quoted = !quoted
			b.WriteByte(c)
			continue
		}
		if quoted {
			b.WriteByte(c)
			continue
		}
		fn(&b, c)
	}
	return b.String()
}
