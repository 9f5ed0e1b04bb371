// Package fingerprint identifies the DBMS behind an injection point by
// asking boolean questions only one engine answers with true. Every check
// is a quote-free SQL predicate, so it survives any DBMS's unescaping.
package fingerprint

import (
	"context"
	"fmt"
)

// Checker evaluates boolean SQL expressions on the back-end.
type Checker interface {
	CheckBoolean(ctx context.Context, expression string) (bool, error)
}

// DBMSInfo contains identified DBMS information.
type DBMSInfo struct {
	Name       string  // "MySQL", "PostgreSQL"
	Version    string  // e.g., "8.0"
	Confidence float64 // 0.0 - 1.0
}

// Fingerprinter identifies a specific DBMS.
type Fingerprinter interface {
	// DBMS returns the name of the DBMS this fingerprinter targets.
	DBMS() string

	// Fingerprint asks the fingerprinter's checks through c.
	Fingerprint(ctx context.Context, c Checker) (*FingerprintResult, error)
}

// FingerprintResult is the outcome of a DBMS identification attempt.
type FingerprintResult struct {
	Identified bool
	DBMS       string
	Version    string
	Confidence float64

	// Checks is the number of boolean questions asked.
	Checks int
}

// versionCheck holds when the back-end runs Version or later.
type versionCheck struct {
	Version string
	Expr    string
}

// probe is a Fingerprinter driven by a table of checks. The back-end is
// identified when every check holds; versions are tried in order and the
// first one that holds is reported.
type probe struct {
	name     string
	checks   []string
	versions []versionCheck
}

func (p *probe) DBMS() string { return p.name }

func (p *probe) Fingerprint(ctx context.Context, c Checker) (*FingerprintResult, error) {
	result := &FingerprintResult{DBMS: p.name}

	passed := 0
	for _, expr := range p.checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.CheckBoolean(ctx, expr)
		result.Checks++
		if err != nil {
			return nil, fmt.Errorf("fingerprint: %s: %w", p.name, err)
		}
		if !ok {
			// A failed check rules the DBMS out; the rest are not asked.
			break
		}
		passed++
	}
	result.Confidence = float64(passed) / float64(len(p.checks))
	result.Identified = passed == len(p.checks)
	if !result.Identified {
		return result, nil
	}

	for _, v := range p.versions {
		ok, err := c.CheckBoolean(ctx, v.Expr)
		result.Checks++
		if err != nil {
			return nil, fmt.Errorf("fingerprint: %s version: %w", p.name, err)
		}
		if ok {
			result.Version = v.Version
			break
		}
	}
	return result, nil
}
