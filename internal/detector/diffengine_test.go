package detector

import (
	"strings"
	"testing"
)

func TestRatio(t *testing.T) {
	page := "<html>\n<body>\n<h1>Results</h1>\n<p>one</p>\n</body>\n</html>"
	tests := []struct {
		name     string
		a, b     string
		min, max float64
	}{
		{"identical", page, page, 1, 1},
		{"both empty", "", "", 1, 1},
		{"one empty", page, "", 0, 0},
		{"different", "aaaa", "bbbb", 0, 0},
		{"one line changed", page, strings.Replace(page, "<p>one</p>", "<p>two</p>", 1), 0.8, 0.9},
		{"dynamic token", "<p>ok</p>\ncsrf_token=abc123", "<p>ok</p>\ncsrf_token=zzz999", 1, 1},
		{"timestamp", "now 1700000000", "now 1800000000", 1, 1},
	}
	d := NewDiffEngine()
	for _, tt := range tests {
		got := d.Ratio([]byte(tt.a), []byte(tt.b))
		if got < tt.min || got > tt.max {
			t.Errorf("%s: Ratio = %f, want in [%f, %f]", tt.name, got, tt.min, tt.max)
		}
	}
}

func TestRatioSymmetric(t *testing.T) {
	d := NewDiffEngine()
	a := []byte("a\nb\nc\nd")
	b := []byte("a\nx\nc")
	if d.Ratio(a, b) != d.Ratio(b, a) {
		t.Errorf("Ratio is not symmetric: %f vs %f", d.Ratio(a, b), d.Ratio(b, a))
	}
}

func TestRatioDuplicateLines(t *testing.T) {
	d := NewDiffEngine()
	// Each line of b can be matched once only.
	got := d.Ratio([]byte("x\nx\nx"), []byte("x\ny"))
	if got != 2.0/5.0 {
		t.Errorf("Ratio = %f, want 0.4", got)
	}
}

func TestSimilarAndIgnore(t *testing.T) {
	d := NewDiffEngine()
	a := []byte("<p>Hello</p>\nrendered in 12ms")
	b := []byte("<p>Hello</p>\nrendered in 48ms")
	if d.Similar(a, b, 0.95) {
		t.Fatal("pages with a changing line should not be 95% similar by default")
	}
	if err := d.Ignore(`rendered in \d+ms`); err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if !d.Similar(a, b, 0.95) {
		t.Error("ignored pattern should make the pages identical")
	}
	if err := d.Ignore(`(`); err == nil {
		t.Error("Ignore should reject an invalid pattern")
	}
}
