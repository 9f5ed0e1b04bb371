// Package technique describes the SQL injection techniques an injection point
// can be exploited with, and the payload vectors that drive each of them.
package technique

import (
	"fmt"
	"sort"
	"strings"
)

// Technique identifies an injection technique.
type Technique int

// The numeric values double as the order in which techniques are listed
// in point files and reports.
const (
	Boolean Technique = iota + 1
	Error
	Union
	Stacked
	Time
)

// All lists every technique in declaration order.
var All = []Technique{Boolean, Error, Union, Stacked, Time}

var techniqueNames = map[Technique]string{
	Boolean: "boolean-based blind",
	Error:   "error-based",
	Union:   "UNION query",
	Stacked: "stacked queries",
	Time:    "time-based blind",
}

var techniqueKeys = map[Technique]string{
	Boolean: "boolean",
	Error:   "error",
	Union:   "union",
	Stacked: "stacked",
	Time:    "time",
}

// String returns the human-readable technique name.
func (t Technique) String() string {
	if name, ok := techniqueNames[t]; ok {
		return name
	}
	return "unknown"
}

// Key returns the short lowercase key used in point files.
func (t Technique) Key() string {
	return techniqueKeys[t]
}

// Letter returns the single-letter flag code (B, E, U, S, T).
func (t Technique) Letter() string {
	switch t {
	case Boolean:
		return "B"
	case Error:
		return "E"
	case Union:
		return "U"
	case Stacked:
		return "S"
	case Time:
		return "T"
	}
	return ""
}

// TimeBased reports whether the technique's only signal is response time.
func (t Technique) TimeBased() bool {
	return t == Time || t == Stacked
}

// Parse converts a point-file key, a flag letter or a display name into a
// Technique.
func Parse(s string) (Technique, error) {
	s = strings.TrimSpace(s)
	for _, t := range All {
		if strings.EqualFold(s, t.Key()) || strings.EqualFold(s, t.Letter()) || strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("technique: unknown technique %q", s)
}

// ParseLetters converts a flag string such as "BEU" into a set of techniques.
func ParseLetters(letters string) (map[Technique]bool, error) {
	set := make(map[Technique]bool)
	for _, r := range letters {
		t, err := Parse(string(r))
		if err != nil {
			return nil, err
		}
		set[t] = true
	}
	return set, nil
}

// Place indicates where the injectable parameter appears in the request.
type Place int

const (
	PlaceQuery Place = iota
	PlaceBody
	PlaceHeader
	PlaceCookie
)

// String returns the lowercase place name.
func (p Place) String() string {
	names := [...]string{"query", "body", "header", "cookie"}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// ParsePlace converts a place name into a Place. "GET" and "POST" are
// accepted as aliases for query and body.
func ParsePlace(s string) (Place, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "query", "get", "url":
		return PlaceQuery, nil
	case "body", "post", "data":
		return PlaceBody, nil
	case "header", "headers":
		return PlaceHeader, nil
	case "cookie", "cookies":
		return PlaceCookie, nil
	}
	return 0, fmt.Errorf("technique: unknown parameter place %q", s)
}

// ParameterType is the inferred data type of a parameter value.
type ParameterType int

const (
	TypeString ParameterType = iota
	TypeInteger
	TypeFloat
)

// Target is the HTTP request an injection point lives in.
type Target struct {
	URL         string
	Method      string
	Headers     map[string]string
	Body        string
	ContentType string
	Cookies     map[string]string
}

// Parameter is the injectable parameter of a Target.
type Parameter struct {
	Name  string
	Value string
	Place Place
	Type  ParameterType
}

// Vector is the payload template of one technique. Template carries an
// [INFERENCE] marker for predicate techniques (boolean, time, stacked) or a
// [QUERY] marker for output techniques (union, error).
type Vector struct {
	Template string
	Prefix   string
	Suffix   string

	// Columns and Position describe the UNION column layout; Position is the
	// 0-based index of the column reflected in the page.
	Columns  int
	Position int

	// Negative replaces the original value with a negative random number so
	// the legitimate row does not appear next to the injected one.
	Negative bool
}

// Point is a confirmed injection point: the request, the parameter, the
// back-end DBMS when known, and one vector per usable technique.
type Point struct {
	Target    Target
	Parameter Parameter
	DBMS      string
	Vectors   map[Technique]*Vector
}

// Vector returns the vector for t, or nil when t is not usable.
func (p *Point) Vector(t Technique) *Vector {
	if p == nil || p.Vectors == nil {
		return nil
	}
	return p.Vectors[t]
}

// Available reports whether t can be used against the point.
func (p *Point) Available(t Technique) bool {
	return p.Vector(t) != nil
}

// Techniques returns the usable techniques sorted by declaration order.
func (p *Point) Techniques() []Technique {
	if p == nil {
		return nil
	}
	out := make([]Technique, 0, len(p.Vectors))
	for t, v := range p.Vectors {
		if v != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restrict drops every vector whose technique is not in keep. An empty keep
// set leaves the point unchanged.
func (p *Point) Restrict(keep map[Technique]bool) {
	if len(keep) == 0 {
		return
	}
	for t := range p.Vectors {
		if !keep[t] {
			delete(p.Vectors, t)
		}
	}
}
