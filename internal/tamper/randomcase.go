package tamper

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
)

var keywordPattern = regexp.MustCompile(`(?i)\b(SELECT|FROM|WHERE|UNION|ALL|AND|OR|NOT|NULL|CASE|WHEN|THEN|ELSE|END|CAST|CHAR|CONCAT|SUBSTRING|MID|ASCII|LENGTH|LIMIT|OFFSET|ORDER|BY|SLEEP|IF|IS|AS)\b`)

// randomCase flips the letter case of each SQL keyword at random so that
// case-sensitive signatures no longer match.
//
//	"SELECT id FROM t" -> "sELecT id FrOm t"
type randomCase struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newRandomCase() *randomCase {
	return &randomCase{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (*randomCase) Name() string { return "randomcase" }

func (t *randomCase) Apply(s string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return keywordPattern.ReplaceAllStringFunc(s, func(kw string) string {
		var b strings.Builder
		for _, r := range kw {
			if t.rng.IntN(2) == 0 {
				b.WriteString(strings.ToLower(string(r)))
			} else {
				b.WriteString(strings.ToUpper(string(r)))
			}
		}
		return b.String()
	})
}
