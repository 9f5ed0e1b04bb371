// Package detector resolves injection parameters in a request and compares
// response pages.
package detector

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/technique"
)

var (
	integerPattern = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern   = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
)

// InferType guesses the parameter type from its value.
func InferType(value string) technique.ParameterType {
	if integerPattern.MatchString(value) {
		return technique.TypeInteger
	}
	if floatPattern.MatchString(value) {
		return technique.TypeFloat
	}
	return technique.TypeString
}

// ParseParameters lists the parameters of target in query, body, cookie and
// header order. Within a place parameters are sorted by name.
func ParseParameters(target technique.Target) []technique.Parameter {
	var params []technique.Parameter
	if u, err := url.Parse(target.URL); err == nil {
		params = append(params, fromValues(u.Query(), technique.PlaceQuery)...)
	}
	if target.Body != "" && isFormURLEncoded(target.ContentType) {
		if values, err := url.ParseQuery(target.Body); err == nil {
			params = append(params, fromValues(values, technique.PlaceBody)...)
		}
	}
	params = append(params, fromMap(target.Cookies, technique.PlaceCookie)...)
	params = append(params, fromMap(target.Headers, technique.PlaceHeader)...)
	return params
}

// Locate finds the named parameter of target. Without places the first
// place holding the name wins.
func Locate(target technique.Target, name string, places ...technique.Place) (technique.Parameter, error) {
	var names []string
	for _, p := range ParseParameters(target) {
		if p.Name == name && (len(places) == 0 || slices.Contains(places, p.Place)) {
			return p, nil
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return technique.Parameter{}, fmt.Errorf("detector: parameter %q not found: the request has no parameters", name)
	}
	return technique.Parameter{}, fmt.Errorf("detector: parameter %q not found (available: %s)", name, strings.Join(names, ", "))
}

func fromValues(values url.Values, place technique.Place) []technique.Parameter {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var params []technique.Parameter
	for _, name := range names {
		for _, v := range values[name] {
			params = append(params, technique.Parameter{Name: name, Value: v, Place: place, Type: InferType(v)})
		}
	}
	return params
}

func fromMap(m map[string]string, place technique.Place) []technique.Parameter {
	values := make(url.Values, len(m))
	for k, v := range m {
		values.Set(k, v)
	}
	return fromValues(values, place)
}

// isFormURLEncoded treats an empty content type as form data.
func isFormURLEncoded(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	return strings.EqualFold(mediaType, "application/x-www-form-urlencoded")
}
