package technique

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Markers substituted by the engine when a vector is turned into a payload.
const (
	InferenceMarker = "[INFERENCE]"
	QueryMarker     = "[QUERY]"
)

// pointFile is the on-disk YAML layout of a Point.
type pointFile struct {
	URL         string                `yaml:"url"`
	Method      string                `yaml:"method,omitempty"`
	Headers     map[string]string     `yaml:"headers,omitempty"`
	Cookies     map[string]string     `yaml:"cookies,omitempty"`
	Body        string                `yaml:"body,omitempty"`
	ContentType string                `yaml:"content_type,omitempty"`
	Place       string                `yaml:"place"`
	Parameter   string                `yaml:"parameter"`
	Value       string                `yaml:"value,omitempty"`
	DBMS        string                `yaml:"dbms,omitempty"`
	Vectors     map[string]vectorFile `yaml:"vectors"`
}

type vectorFile struct {
	Template string `yaml:"template"`
	Prefix   string `yaml:"prefix,omitempty"`
	Suffix   string `yaml:"suffix,omitempty"`
	Columns  int    `yaml:"columns,omitempty"`
	Position int    `yaml:"position,omitempty"`
	Negative bool   `yaml:"negative,omitempty"`
}

// LoadPoint reads a YAML point file.
func LoadPoint(path string) (*Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("technique: open point file: %w", err)
	}
	defer f.Close()
	return DecodePoint(f)
}

// DecodePoint parses a YAML point description and validates its vectors.
func DecodePoint(r io.Reader) (*Point, error) {
	var pf pointFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		return nil, fmt.Errorf("technique: decode point: %w", err)
	}
	if pf.URL == "" {
		return nil, fmt.Errorf("technique: point has no url")
	}
	if pf.Parameter == "" {
		return nil, fmt.Errorf("technique: point has no parameter")
	}
	place, err := ParsePlace(pf.Place)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(pf.Method)
	if method == "" {
		method = "GET"
		if pf.Body != "" {
			method = "POST"
		}
	}

	p := &Point{
		Target: Target{
			URL:         pf.URL,
			Method:      method,
			Headers:     pf.Headers,
			Body:        pf.Body,
			ContentType: pf.ContentType,
			Cookies:     pf.Cookies,
		},
		Parameter: Parameter{Name: pf.Parameter, Value: pf.Value, Place: place},
		DBMS:      pf.DBMS,
		Vectors:   make(map[Technique]*Vector, len(pf.Vectors)),
	}

	for key, vf := range pf.Vectors {
		t, err := Parse(key)
		if err != nil {
			return nil, err
		}
		v := &Vector{
			Template: vf.Template,
			Prefix:   vf.Prefix,
			Suffix:   vf.Suffix,
			Columns:  vf.Columns,
			Position: vf.Position,
			Negative: vf.Negative,
		}
		if err := v.Validate(t); err != nil {
			return nil, err
		}
		p.Vectors[t] = v
	}
	return p, nil
}

// Encode writes the point as YAML.
func (p *Point) Encode(w io.Writer) error {
	pf := pointFile{
		URL:         p.Target.URL,
		Method:      p.Target.Method,
		Headers:     p.Target.Headers,
		Cookies:     p.Target.Cookies,
		Body:        p.Target.Body,
		ContentType: p.Target.ContentType,
		Place:       p.Parameter.Place.String(),
		Parameter:   p.Parameter.Name,
		Value:       p.Parameter.Value,
		DBMS:        p.DBMS,
		Vectors:     make(map[string]vectorFile, len(p.Vectors)),
	}
	for t, v := range p.Vectors {
		pf.Vectors[t.Key()] = vectorFile{
			Template: v.Template,
			Prefix:   v.Prefix,
			Suffix:   v.Suffix,
			Columns:  v.Columns,
			Position: v.Position,
			Negative: v.Negative,
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&pf); err != nil {
		return fmt.Errorf("technique: encode point: %w", err)
	}
	return enc.Close()
}

// Validate checks that the template carries the marker its technique needs.
func (v *Vector) Validate(t Technique) error {
	switch t {
	case Union:
		if !strings.Contains(v.Template, QueryMarker) {
			return fmt.Errorf("technique: %s vector lacks %s marker", t.Key(), QueryMarker)
		}
		if v.Columns < 1 || v.Position < 0 || v.Position >= v.Columns {
			return fmt.Errorf("technique: union vector has invalid layout (columns=%d, position=%d)", v.Columns, v.Position)
		}
	case Error:
		if !strings.Contains(v.Template, QueryMarker) {
			return fmt.Errorf("technique: %s vector lacks %s marker", t.Key(), QueryMarker)
		}
	case Boolean, Time, Stacked:
		if !strings.Contains(v.Template, InferenceMarker) {
			return fmt.Errorf("technique: %s vector lacks %s marker", t.Key(), InferenceMarker)
		}
	default:
		return fmt.Errorf("technique: unknown technique %d", int(t))
	}
	return nil
}
