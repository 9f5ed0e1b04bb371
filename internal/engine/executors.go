package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/request"
	"github.com/0x6d61/sqlsiphon/internal/sqlexpr"
	"github.com/0x6d61/sqlsiphon/internal/technique"
	"github.com/0x6d61/sqlsiphon/internal/technique/errorbased"
	"github.com/0x6d61/sqlsiphon/internal/technique/union"
)

// Call is one attempt of a technique family at a value.
type Call struct {
	Technique  technique.Technique
	Expression string
	Expected   Expected

	FromUser bool
	Batch    bool
	Unpack   bool
	Sort     bool
	UseCache bool
	Dump     bool

	Charset   inference.Charset
	FirstChar int
	LastChar  int
}

// Executor turns a call into requests and returns what they revealed.
type Executor interface {
	Execute(ctx context.Context, c *Call) (Value, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, c *Call) (Value, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, c *Call) (Value, error) {
	return f(ctx, c)
}

// unionExecutor reads rows appended to the page by a UNION query.
type unionExecutor struct {
	e *Engine
}

func (x *unionExecutor) Execute(ctx context.Context, c *Call) (Value, error) {
	e := x.e
	partial := false
	if c.UseCache {
		cached, ok, err := e.resume(ctx, c.Expression)
		if err != nil {
			return Missing(), err
		}
		if ok {
			if c.Expected.valid(cached) {
				return Text(cached), nil
			}
			e.logger.Warn("resumed value has the wrong type, retrieving it again", "expression", c.Expression, "value", cached)
			partial = true
		}
	}

	v, query := e.union.Query(e.point.Vector(technique.Union), e.withFromTable(c.Expression))
	p := e.agent.Payload(technique.Union, v, e.agent.Query(v, query))
	page, err := e.req.QueryPage(ctx, p.Value, request.Options{})
	if err != nil {
		return Missing(), err
	}
	rows := union.ParsePage(page.String(), e.union.Delimiters(), partial, c.Sort)
	e.logger.Debug("union page parsed", "rows", len(rows))
	return rowsValue(rows), nil
}

// errorExecutor reads values echoed in error messages. It writes every
// value it retrieves through to the cache.
type errorExecutor struct {
	e *Engine
}

func (x *errorExecutor) Execute(ctx context.Context, c *Call) (Value, error) {
	e := x.e
	if e.direct != nil {
		rows, err := e.direct.Query(ctx, c.Expression)
		if err != nil {
			return Missing(), err
		}
		return rowsValue(rows), nil
	}

	if c.UseCache {
		cached, ok, err := e.resume(ctx, c.Expression)
		if err != nil {
			return Missing(), err
		}
		if ok {
			if c.Expected.valid(cached) {
				return errorValue(cached), nil
			}
			e.logger.Warn("resumed value has the wrong type, retrieving it again", "expression", c.Expression, "value", cached)
		}
	}

	v := e.point.Vector(technique.Error)
	start, stop := e.agent.Delimiters()
	ext := errorbased.New(e.dbms, start, stop, errorbased.WithOutput(errorbased.OutputFor(e.dbms, v.Template)))
	fetch := func(ctx context.Context, query string) (string, error) {
		p := e.agent.Payload(technique.Error, v, e.agent.Query(v, query))
		page, err := e.req.QueryPage(ctx, p.Value, request.Options{})
		if err != nil {
			return "", err
		}
		return page.String(), nil
	}

	res, err := ext.Extract(ctx, fetch, e.withFromTable(c.Expression))
	if err != nil {
		return Missing(), err
	}
	if !res.Found {
		return Missing(), nil
	}
	if err := e.store(ctx, c.Expression, res.Value); err != nil {
		return Missing(), err
	}
	return errorValue(res.Value), nil
}

// errorValue splits a multi-field error value into a single row.
func errorValue(s string) Value {
	if !strings.Contains(s, errorbased.FieldDelimiter) {
		return Text(s)
	}
	return Rows([][]string{errorbased.Result{Value: s}.Fields()})
}

// blindExecutor serves the boolean, time-based and stacked techniques. A
// boolean expectation is answered by a single request; anything else is
// retrieved through the oracle.
type blindExecutor struct {
	e *Engine
}

func (x *blindExecutor) Execute(ctx context.Context, c *Call) (Value, error) {
	if c.Expected == ExpectBool {
		return x.e.booleanProxy(ctx, c)
	}
	return x.e.inferenceRetrieve(ctx, c)
}

// booleanProxy asks the target whether the predicate of c holds.
func (e *Engine) booleanProxy(ctx context.Context, c *Call) (Value, error) {
	if c.UseCache {
		cached, ok, err := e.resume(ctx, c.Expression)
		if err != nil {
			return Missing(), err
		}
		if ok && c.Expected.valid(cached) {
			return Text(cached), nil
		}
	}

	v := e.point.Vector(c.Technique)
	p := e.agent.Payload(c.Technique, v, e.agent.Inference(v, c.Expression))
	ok, err := e.req.Evaluate(ctx, p.Value, c.Technique.TimeBased())
	if err != nil {
		return Missing(), err
	}
	if e.storeInference {
		if err := e.store(ctx, c.Expression, strconv.FormatBool(ok)); err != nil {
			return Missing(), err
		}
	}
	return Bool(ok), nil
}

// withFromTable appends the dialect's dummy table to a FROM-less SELECT
// when the dialect requires a FROM clause.
func (e *Engine) withFromTable(expression string) string {
	if e.dialect == nil || e.dialect.FromTable == "" {
		return expression
	}
	if !sqlexpr.IsSelect(expression) || sqlexpr.HasFrom(expression) {
		return expression
	}
	return expression + " FROM " + e.dialect.FromTable
}
