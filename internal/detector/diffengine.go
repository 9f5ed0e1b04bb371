package detector

import (
	"regexp"
	"strings"
)

// DiffEngine measures how similar two response pages are, ignoring values
// that change on every request.
type DiffEngine struct {
	DynamicPatterns []*regexp.Regexp
}

// NewDiffEngine creates a DiffEngine with default dynamic content patterns:
// CSRF tokens, session identifiers, timestamps, hashes and UUIDs.
func NewDiffEngine() *DiffEngine {
	return &DiffEngine{
		DynamicPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(csrf[_-]?token|_token|authenticity_token)([^"]*"[^"]*"|[^']*'[^']*'|=[^\s&]+)`),
			regexp.MustCompile(`(?i)(sess(ion)?[_-]?(id)?|phpsessid|jsessionid|sid)\s*[:=]\s*[^\s<"'&]+`),
			regexp.MustCompile(`(?i)\bsess[_-][a-zA-Z0-9]+\b`),
			regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[^\s<"']*`),
			regexp.MustCompile(`\b\d{10,13}\b`),
			regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
			regexp.MustCompile(`[0-9a-fA-F]{32,}`),
		},
	}
}

// Ignore adds a pattern whose matches are removed before comparison.
func (d *DiffEngine) Ignore(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	d.DynamicPatterns = append(d.DynamicPatterns, re)
	return nil
}

func (d *DiffEngine) stripDynamic(s string) string {
	for _, pat := range d.DynamicPatterns {
		s = pat.ReplaceAllString(s, "")
	}
	return s
}

// Ratio returns the line-based similarity of a and b between 0 and 1:
// twice the number of shared lines over the total line count.
func (d *DiffEngine) Ratio(a, b []byte) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	sa := d.stripDynamic(string(a))
	sb := d.stripDynamic(string(b))
	if sa == sb {
		return 1.0
	}

	linesA := strings.Split(sa, "\n")
	linesB := strings.Split(sb, "\n")

	pool := make(map[string]int, len(linesB))
	for _, l := range linesB {
		pool[l]++
	}
	matches := 0
	for _, l := range linesA {
		if pool[l] > 0 {
			pool[l]--
			matches += 2
		}
	}
	return float64(matches) / float64(len(linesA)+len(linesB))
}

// Similar reports whether the pages are at least threshold similar.
func (d *DiffEngine) Similar(a, b []byte, threshold float64) bool {
	return d.Ratio(a, b) >= threshold
}
