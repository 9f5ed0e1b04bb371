package fingerprint

import (
	"context"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/detector"
)

// Registry manages all available fingerprinters and runs them to identify
// the DBMS backing a target application.
type Registry struct {
	fingerprinters []Fingerprinter
}

// NewRegistry creates a registry with all built-in fingerprinters.
func NewRegistry() *Registry {
	return &Registry{
		fingerprinters: []Fingerprinter{
			mysqlProbe,
			postgresProbe,
			mssqlProbe,
			oracleProbe,
			sqliteProbe,
			firebirdProbe,
		},
	}
}

// Names returns the DBMS names the registry can identify.
func (r *Registry) Names() []string {
	out := make([]string, len(r.fingerprinters))
	for i, fp := range r.fingerprinters {
		out[i] = fp.DBMS()
	}
	return out
}

// Identify runs the fingerprinters in order and returns the first that
// identifies the back-end. It returns nil if none does.
func (r *Registry) Identify(ctx context.Context, c Checker) (*DBMSInfo, error) {
	for _, fp := range r.fingerprinters {
		result, err := fp.Fingerprint(ctx, c)
		if err != nil {
			return nil, err
		}
		if result != nil && result.Identified {
			return info(result), nil
		}
	}
	return nil, nil
}

// Verify checks that the back-end is the named DBMS. It returns nil when
// the checks fail or the name is unknown.
func (r *Registry) Verify(ctx context.Context, c Checker, name string) (*DBMSInfo, error) {
	for _, fp := range r.fingerprinters {
		if !strings.EqualFold(fp.DBMS(), name) {
			continue
		}
		result, err := fp.Fingerprint(ctx, c)
		if err != nil {
			return nil, err
		}
		if !result.Identified {
			return nil, nil
		}
		return info(result), nil
	}
	return nil, nil
}

func info(r *FingerprintResult) *DBMSInfo {
	return &DBMSInfo{Name: r.DBMS, Version: r.Version, Confidence: r.Confidence}
}

// IdentifyFromErrors uses error messages already found in a page to guess
// the DBMS without sending additional requests. The DBMS with the most
// distinct messages wins.
//
// It returns nil if no specific DBMS can be determined.
func IdentifyFromErrors(errs []detector.SQLError) *DBMSInfo {
	if len(errs) == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, e := range errs {
		if counts[e.DBMS] == 0 {
			order = append(order, e.DBMS)
		}
		counts[e.DBMS]++
	}

	var bestDBMS string
	var bestCount int
	for _, name := range order {
		if counts[name] > bestCount {
			bestCount = counts[name]
			bestDBMS = name
		}
	}

	return &DBMSInfo{
		Name:       bestDBMS,
		Confidence: 0.7,
	}
}
