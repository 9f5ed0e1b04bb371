package engine

import (
	"strconv"
	"strings"
)

// Kind tags the content of a Value.
type Kind int

const (
	KindMissing Kind = iota
	KindBool
	KindText
	KindRows
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindRows:
		return "rows"
	}
	return "missing"
}

// Value is the result of a retrieval: nothing, a boolean, a scalar text or
// an ordered list of rows of fields.
type Value struct {
	kind Kind
	b    bool
	text string
	rows [][]string
}

// Missing returns the empty Value.
func Missing() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Text returns a scalar Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Rows returns a multi-row Value.
func Rows(rows [][]string) Value { return Value{kind: KindRows, rows: rows} }

// rowsValue collapses parsed rows: none is Missing and a single field of a
// single row is Text.
func rowsValue(rows [][]string) Value {
	switch {
	case len(rows) == 0:
		return Missing()
	case len(rows) == 1 && len(rows[0]) == 1:
		return Text(rows[0][0])
	}
	return Rows(rows)
}

func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v holds nothing.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// AsBool returns the boolean of a KindBool value.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsText returns the text of a KindText value.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsRows returns the rows of a KindRows value.
func (v Value) AsRows() ([][]string, bool) { return v.rows, v.kind == KindRows }

// Strings flattens v into display lines: one per row, fields joined with
// ", ".
func (v Value) Strings() []string {
	switch v.kind {
	case KindBool:
		return []string{strconv.FormatBool(v.b)}
	case KindText:
		return []string{v.text}
	case KindRows:
		out := make([]string, len(v.rows))
		for i, r := range v.rows {
			out[i] = strings.Join(r, ", ")
		}
		return out
	}
	return nil
}

// String returns the display form of v.
func (v Value) String() string {
	if v.kind == KindMissing {
		return "None"
	}
	return strings.Join(v.Strings(), "\n")
}

// trimmed strips surrounding whitespace from text values.
func trimmed(v Value) Value {
	if v.kind == KindText {
		v.text = strings.TrimSpace(v.text)
	}
	return v
}

// coerceBool normalizes a retrieved value to a boolean answer. Rows are
// read through their first cell.
func coerceBool(v Value) Value {
	switch v.kind {
	case KindBool, KindMissing:
		return v
	case KindRows:
		if len(v.rows) == 0 || len(v.rows[0]) == 0 {
			return Missing()
		}
		return coerceBool(Text(v.rows[0][0]))
	}

	s := strings.TrimSpace(v.text)
	switch {
	case strings.EqualFold(s, "true"):
		return Bool(true)
	case strings.EqualFold(s, "false"):
		return Bool(false)
	case s == "" || strings.EqualFold(s, "None"):
		return Missing()
	}
	return Bool(s != "0")
}

// Expected is the type hint of a retrieval.
type Expected int

const (
	ExpectAny Expected = iota
	ExpectInt
	ExpectBool
)

// valid reports whether a cached value is usable for the expected type.
func (e Expected) valid(s string) bool {
	switch e {
	case ExpectInt:
		_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return err == nil
	case ExpectBool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "false", "1", "0", "none":
			return true
		}
		return false
	}
	return true
}
