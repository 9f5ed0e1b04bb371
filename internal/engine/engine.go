// Package engine retrieves the value of SQL expressions through a confirmed
// injection point. It picks the usable technique families in priority
// order, unpacks multi-row queries for the blind techniques and resumes
// values from a cache.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/0x6d61/sqlsiphon/internal/dbms"
	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/payload"
	"github.com/0x6d61/sqlsiphon/internal/request"
	"github.com/0x6d61/sqlsiphon/internal/session"
	"github.com/0x6d61/sqlsiphon/internal/technique"
	"github.com/0x6d61/sqlsiphon/internal/technique/union"
)

// MaxTechniquesPerValue caps the families tried for one value before a
// missing answer is accepted.
const MaxTechniquesPerValue = 2

var (
	// ErrNotVulnerable is returned when no technique family is enabled and
	// usable against the point.
	ErrNotVulnerable = errors.New("engine: no usable injection technique")

	// ErrQuit is returned when the operator quits at the row-count prompt.
	ErrQuit = errors.New("engine: retrieval aborted by operator")

	// ErrInvalidChoice is returned by a Decider for an answer it cannot use.
	ErrInvalidChoice = errors.New("engine: invalid choice")
)

// Cache resumes previously retrieved values.
type Cache interface {
	Lookup(ctx context.Context, key session.Key) (string, bool, error)
	Store(ctx context.Context, key session.Key, value string) error
}

// Oracle retrieves a scalar through boolean questions.
type Oracle interface {
	Retrieve(ctx context.Context, job inference.Job) (inference.Result, error)
}

// Requester sends parameter values to the target.
type Requester interface {
	QueryPage(ctx context.Context, value string, opts request.Options) (*request.Page, error)
	Evaluate(ctx context.Context, value string, timeBased bool) (bool, error)
}

// Direct runs queries on a database connection instead of the target.
type Direct interface {
	Query(ctx context.Context, query string) ([][]string, error)
}

// Engine retrieves values through one injection point.
type Engine struct {
	point   *technique.Point
	dbms    dbms.DBMS
	dialect *dbms.Dialect

	req     Requester
	agent   *payload.Agent
	oracle  Oracle
	cache   Cache
	direct  Direct
	decider Decider
	console Console
	logger  *slog.Logger

	executors      map[Family]Executor
	storeInference bool
	progress       func(done, total int)
	union          *union.Builder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAgent sets the payload agent. The default agent uses the point's
// parameter value and random delimiters.
func WithAgent(a *payload.Agent) Option {
	return func(e *Engine) { e.agent = a }
}

// WithOracle sets the bisection oracle. The default oracle asks the
// requester one character at a time.
func WithOracle(o Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithCache sets the resume cache.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithDirect answers every expression from a database connection.
func WithDirect(d Direct) Option {
	return func(e *Engine) { e.direct = d }
}

// WithDecider sets who answers the multi-row questions. The default is
// BatchDecider.
func WithDecider(d Decider) Option {
	return func(e *Engine) { e.decider = d }
}

// WithConsole sets the operator console.
func WithConsole(c Console) Option {
	return func(e *Engine) { e.console = c }
}

// WithExecutor replaces the executor of a technique family.
func WithExecutor(f Family, x Executor) Option {
	return func(e *Engine) { e.executors[f] = x }
}

// WithStoreInference also writes values retrieved by the blind techniques
// to the cache.
func WithStoreInference(on bool) Option {
	return func(e *Engine) { e.storeInference = on }
}

// WithProgress reports row retrieval progress of multi-row queries.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an Engine for point, sending payloads through req.
func New(point *technique.Point, req Requester, opts ...Option) *Engine {
	e := &Engine{
		point:     point,
		req:       req,
		executors: make(map[Family]Executor),
	}
	if d := dbms.Registry(point.DBMS); d != nil {
		e.dbms = d
		e.dialect = dbms.LookupDialect(d.Name())
	}
	for _, o := range opts {
		o(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.agent == nil {
		e.agent = payload.NewAgent(point.Parameter)
	}
	if e.oracle == nil {
		e.oracle = inference.New(req, e.dbms, inference.WithLogger(e.logger))
	}
	if e.decider == nil {
		e.decider = BatchDecider{}
	}
	if e.console == nil {
		e.console = nopConsole{}
	}
	start, stop := e.agent.Delimiters()
	e.union = union.NewBuilder(e.dbms, union.Delimiters{Start: start, Stop: stop})

	defaults := map[Family]Executor{
		FamilyUnion:   &unionExecutor{e: e},
		FamilyError:   &errorExecutor{e: e},
		FamilyBoolean: &blindExecutor{e: e},
		FamilyTime:    &blindExecutor{e: e},
	}
	for f, x := range defaults {
		if _, ok := e.executors[f]; !ok {
			e.executors[f] = x
		}
	}
	return e
}

// Point returns the injection point.
func (e *Engine) Point() *technique.Point {
	return e.point
}

// DBMS returns the back-end DBMS, or nil when it is unknown.
func (e *Engine) DBMS() dbms.DBMS {
	return e.dbms
}

// key returns the cache key of expression at the engine's point.
func (e *Engine) key(expression string) session.Key {
	return session.Key{
		Target:     e.point.Target.URL,
		Place:      e.point.Parameter.Place.String(),
		Parameter:  e.point.Parameter.Name,
		Expression: expression,
	}
}

// resume looks expression up in the cache.
func (e *Engine) resume(ctx context.Context, expression string) (string, bool, error) {
	if e.cache == nil {
		return "", false, nil
	}
	v, ok, err := e.cache.Lookup(ctx, e.key(expression))
	if err != nil {
		return "", false, fmt.Errorf("engine: cache lookup: %w", err)
	}
	if ok {
		e.logger.Debug("value resumed", "expression", expression)
	}
	return v, ok, nil
}

// store writes value to the cache.
func (e *Engine) store(ctx context.Context, expression, value string) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Store(ctx, e.key(expression), value); err != nil {
		return fmt.Errorf("engine: cache store: %w", err)
	}
	return nil
}
