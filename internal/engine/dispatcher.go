package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/dbms"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// GetValue retrieves the value of expression. The technique families are
// tried in the order union, error, boolean, then time or stacked; the
// first answer stops the search, and a missing answer is accepted after
// MaxTechniquesPerValue attempts. Time and stacked queries are only tried
// when nothing earlier answered.
func (e *Engine) GetValue(ctx context.Context, expression string, opts ...ValueOption) (Value, error) {
	o := defaultValueOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.suppress {
		release := e.console.Mute()
		defer release()
	}

	if e.direct != nil {
		return e.directValue(ctx, expression, o)
	}

	query, err := e.prepare(ctx, expression)
	if err != nil {
		return Missing(), err
	}

	// Output techniques need a statement; blind techniques take the bare
	// predicate.
	forged, predicate := query, query
	if o.expected == ExpectBool {
		if sqlexpr.IsSelect(query) {
			predicate = strings.TrimSpace(query[len("SELECT "):])
		} else {
			forged = e.caseStatement(query)
		}
	}
	blindExpr := query
	if o.expected == ExpectBool {
		blindExpr = predicate
	}

	var (
		value    = Missing()
		attempts int
		found    bool
		tried    bool
	)
	for _, f := range []Family{FamilyUnion, FamilyError, FamilyBoolean} {
		t, ok := e.usable(f, o)
		if !ok {
			continue
		}
		tried = true
		expr := forged
		if f == FamilyBoolean {
			expr = blindExpr
		}
		if value, err = e.execute(ctx, f, t, expr, o); err != nil {
			return Missing(), err
		}
		attempts++
		if !value.IsMissing() && o.used != nil {
			*o.used = t
		}
		found = !value.IsMissing() || o.expectingNone || attempts >= MaxTechniquesPerValue
		if found {
			break
		}
	}

	if !found {
		if t, ok := e.usable(FamilyTime, o); ok {
			tried = true
			if value, err = e.execute(ctx, FamilyTime, t, blindExpr, o); err != nil {
				return Missing(), err
			}
			if !value.IsMissing() && o.used != nil {
				*o.used = t
			}
		}
	}

	if !tried {
		return Missing(), ErrNotVulnerable
	}
	return e.finish(value, o), nil
}

// CheckBooleanExpression evaluates a boolean SQL expression on the
// back-end. Quoted literals are rewritten into quote-free expressions.
func (e *Engine) CheckBooleanExpression(ctx context.Context, expression string, expectingNone bool) (bool, error) {
	v, err := e.GetValue(ctx, dbms.Unescape(e.dbms, expression),
		Expect(ExpectBool), SuppressOutput(), ExpectingNone(expectingNone))
	if err != nil {
		return false, err
	}
	b, _ := v.AsBool()
	return b, nil
}

// CheckBoolean is CheckBooleanExpression accepting a missing answer as
// false.
func (e *Engine) CheckBoolean(ctx context.Context, expression string) (bool, error) {
	return e.CheckBooleanExpression(ctx, expression, true)
}

func (e *Engine) finish(v Value, o *valueOptions) Value {
	v = trimmed(v)
	if o.expected == ExpectBool {
		v = coerceBool(v)
	}
	return v
}

func (e *Engine) execute(ctx context.Context, f Family, t technique.Technique, expr string, o *valueOptions) (Value, error) {
	c := &Call{
		Technique:  t,
		Expression: expr,
		Expected:   o.expected,
		FromUser:   o.fromUser,
		Batch:      o.batch,
		Unpack:     o.unpack,
		Sort:       o.sort,
		UseCache:   o.useCache,
		Dump:       o.dump,
		Charset:    o.charset,
		FirstChar:  o.firstChar,
		LastChar:   o.lastChar,
	}
	e.logger.Debug("trying technique", "technique", t.String(), "expression", expr)
	v, err := e.executors[f].Execute(ctx, c)
	if err != nil {
		return Missing(), fmt.Errorf("engine: %s: %w", t, err)
	}
	return v, nil
}

// usable returns the technique of f when the call enables f and the point
// has a vector for it.
func (e *Engine) usable(f Family, o *valueOptions) (technique.Technique, bool) {
	if !o.families[f] {
		return 0, false
	}
	switch f {
	case FamilyUnion:
		return technique.Union, e.point.Available(technique.Union)
	case FamilyError:
		return technique.Error, e.point.Available(technique.Error)
	case FamilyBoolean:
		return technique.Boolean, e.point.Available(technique.Boolean)
	case FamilyTime:
		if e.point.Available(technique.Time) {
			return technique.Time, true
		}
		return technique.Stacked, e.point.Available(technique.Stacked)
	}
	return 0, false
}

// prepare normalizes expression: cosmetic cleanup, expansion of a * field
// list and removal of DISTINCT.
func (e *Engine) prepare(ctx context.Context, expression string) (string, error) {
	query := sqlexpr.Clean(expression)
	if sqlexpr.HasAsterisk(query) && e.dbms != nil {
		expanded, err := e.expandAsterisk(ctx, query)
		if err != nil {
			return "", err
		}
		query = expanded
	}
	return sqlexpr.StripDistinct(query), nil
}

// expandAsterisk replaces the * field list of query with the columns of
// the table it reads.
func (e *Engine) expandAsterisk(ctx context.Context, query string) (string, error) {
	db, table, ok := sqlexpr.Table(query)
	if !ok {
		return query, nil
	}
	if db == "" {
		v, err := e.GetValue(ctx, e.dbms.CurrentDBQuery(), SuppressOutput())
		if err != nil {
			return "", fmt.Errorf("engine: current database: %w", err)
		}
		db, _ = v.AsText()
	}

	v, err := e.GetValue(ctx, e.dbms.ListColumnsQuery(db, table), FromUser(), Batch(true), NoSort(), SuppressOutput())
	if err != nil {
		return "", fmt.Errorf("engine: columns of %s: %w", table, err)
	}
	columns := firstCells(v)
	if len(columns) == 0 {
		e.console.Warnf("unable to retrieve the columns of table '%s'", table)
		return query, nil
	}
	expanded := sqlexpr.ExpandAsterisk(query, columns)
	e.console.Infof("the query with expanded column name(s) is: %s", expanded)
	return expanded, nil
}

func (e *Engine) caseStatement(predicate string) string {
	if e.dialect == nil {
		return fmt.Sprintf("SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END)", predicate)
	}
	return e.dialect.CaseStatement(predicate)
}

func (e *Engine) directValue(ctx context.Context, expression string, o *valueOptions) (Value, error) {
	rows, err := e.direct.Query(ctx, expression)
	if err != nil {
		return Missing(), fmt.Errorf("engine: direct: %w", err)
	}
	return e.finish(rowsValue(rows), o), nil
}

// firstCells returns the first field of every row of v.
func firstCells(v Value) []string {
	if s, ok := v.AsText(); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	rows, _ := v.AsRows()
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 && r[0] != "" {
			out = append(out, r[0])
		}
	}
	return out
}
