package engine

import (
	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// Family is a group of techniques tried as one step of a retrieval.
type Family int

const (
	FamilyUnion Family = iota
	FamilyError
	FamilyBoolean

	// FamilyTime covers time-based and stacked queries; time-based is
	// preferred when both are usable.
	FamilyTime
)

// Families lists the families in the order they are tried.
var Families = []Family{FamilyUnion, FamilyError, FamilyBoolean, FamilyTime}

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyUnion:
		return "union"
	case FamilyError:
		return "error"
	case FamilyBoolean:
		return "boolean"
	case FamilyTime:
		return "time"
	}
	return "unknown"
}

// valueOptions are the per-call settings of GetValue.
type valueOptions struct {
	families      map[Family]bool
	fromUser      bool
	expected      Expected
	batch         bool
	unpack        bool
	sort          bool
	useCache      bool
	charset       inference.Charset
	firstChar     int
	lastChar      int
	dump          bool
	suppress      bool
	expectingNone bool
	used          *technique.Technique
}

func defaultValueOptions() *valueOptions {
	return &valueOptions{
		families: map[Family]bool{FamilyUnion: true, FamilyError: true, FamilyBoolean: true, FamilyTime: true},
		unpack:   true,
		sort:     true,
		useCache: true,
	}
}

// ValueOption configures a GetValue call.
type ValueOption func(*valueOptions)

// Without disables the given families for the call.
func Without(families ...Family) ValueOption {
	return func(o *valueOptions) {
		for _, f := range families {
			o.families[f] = false
		}
	}
}

// Only restricts the call to the given families.
func Only(families ...Family) ValueOption {
	return func(o *valueOptions) {
		for f := range o.families {
			o.families[f] = false
		}
		for _, f := range families {
			o.families[f] = true
		}
	}
}

// FromUser marks the expression as operator supplied, which enables
// multi-row retrieval.
func FromUser() ValueOption {
	return func(o *valueOptions) { o.fromUser = true }
}

// Expect sets the type hint of the value.
func Expect(e Expected) ValueOption {
	return func(o *valueOptions) { o.expected = e }
}

// Batch answers every question with its default.
func Batch(on bool) ValueOption {
	return func(o *valueOptions) { o.batch = on }
}

// NoUnpack retrieves the expression as one scalar.
func NoUnpack() ValueOption {
	return func(o *valueOptions) { o.unpack = false }
}

// NoSort keeps union rows in page order, duplicates included.
func NoSort() ValueOption {
	return func(o *valueOptions) { o.sort = false }
}

// NoCache skips the resume cache lookups.
func NoCache() ValueOption {
	return func(o *valueOptions) { o.useCache = false }
}

// WithCharset sets the first character table of blind retrievals.
func WithCharset(cs inference.Charset) ValueOption {
	return func(o *valueOptions) { o.charset = cs }
}

// CharRange limits blind retrieval to the 1-based characters first..last;
// 0 leaves a bound open.
func CharRange(first, last int) ValueOption {
	return func(o *valueOptions) {
		o.firstChar = first
		o.lastChar = last
	}
}

// Dump marks the call as part of a table dump: rows are reported through
// the progress callback instead of one console line per value.
func Dump() ValueOption {
	return func(o *valueOptions) { o.dump = true }
}

// SuppressOutput mutes the console for the duration of the call.
func SuppressOutput() ValueOption {
	return func(o *valueOptions) { o.suppress = true }
}

// ExpectingNone makes a missing value a final answer.
func ExpectingNone(on bool) ValueOption {
	return func(o *valueOptions) { o.expectingNone = on }
}

// TechniqueUsed records in t the technique that produced the value.
func TechniqueUsed(t *technique.Technique) ValueOption {
	return func(o *valueOptions) { o.used = t }
}
