package technique

import "github.com/0x6d61/sqlsiphon/internal/dbms"

// Framing is the operator-supplied boundary of default vectors.
type Framing struct {
	Prefix string
	Suffix string

	// UnionColumns and UnionPosition describe the UNION layout; a zero
	// UnionColumns disables the default union vector.
	UnionColumns  int
	UnionPosition int
	UnionNegative bool
}

// DefaultVector returns the built-in vector of t for the given back-end, or
// nil when the back-end has none. d may be nil when the DBMS is unknown, in
// which case only the boolean and a generic union vector are available.
func DefaultVector(t Technique, d dbms.DBMS, f Framing) *Vector {
	v := &Vector{Prefix: f.Prefix, Suffix: f.Suffix}

	var dialect *dbms.Dialect
	if d != nil {
		dialect = dbms.LookupDialect(d.Name())
	}

	switch t {
	case Boolean:
		v.Template = "AND " + InferenceMarker
	case Union:
		if f.UnionColumns < 1 {
			return nil
		}
		v.Template = "UNION ALL SELECT " + QueryMarker
		if dialect != nil {
			v.Template = dialect.UnionVector
		}
		v.Columns = f.UnionColumns
		v.Position = f.UnionPosition
		v.Negative = f.UnionNegative
	case Error:
		if d == nil || len(d.ErrorPayloads()) == 0 {
			return nil
		}
		v.Template = d.ErrorPayloads()[0].Template
	case Time:
		if dialect == nil || dialect.TimeVector == "" {
			return nil
		}
		v.Template = dialect.TimeVector
	case Stacked:
		if dialect == nil || dialect.StackedVector == "" {
			return nil
		}
		v.Template = dialect.StackedVector
	default:
		return nil
	}
	return v
}

// DefaultPoint builds a point for target and parameter with a default vector
// for each requested technique the back-end supports.
func DefaultPoint(target Target, param Parameter, dbmsName string, techniques map[Technique]bool, f Framing) *Point {
	d := dbms.Registry(dbmsName)
	p := &Point{
		Target:    target,
		Parameter: param,
		DBMS:      dbmsName,
		Vectors:   make(map[Technique]*Vector),
	}
	if d != nil {
		p.DBMS = d.Name()
	}
	for _, t := range All {
		if len(techniques) > 0 && !techniques[t] {
			continue
		}
		if v := DefaultVector(t, d, f); v != nil {
			p.Vectors[t] = v
		}
	}
	return p
}
