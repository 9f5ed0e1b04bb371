package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/0x6d61/sqlsiphon/internal/engine"
	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/payload"
	"github.com/0x6d61/sqlsiphon/internal/request"
	"github.com/0x6d61/sqlsiphon/internal/session"
	"github.com/0x6d61/sqlsiphon/internal/technique"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

const targetURL = "http://target.test/item?id=1"

func newPoint(dbmsName string, techs ...technique.Technique) *technique.Point {
	set := make(map[technique.Technique]bool)
	for _, t := range techs {
		set[t] = true
	}
	return technique.DefaultPoint(
		technique.Target{URL: targetURL, Method: "GET"},
		technique.Parameter{Name: "id", Value: "1", Place: technique.PlaceQuery},
		dbmsName, set, technique.Framing{UnionColumns: 3},
	)
}

func cacheKey(expression string) session.Key {
	return session.Key{Target: targetURL, Place: "query", Parameter: "id", Expression: expression}
}

type fakeRequester struct {
	mu    sync.Mutex
	pages []string
	evals []string
	page  func(value string) string
	eval  func(value string) bool
}

func (r *fakeRequester) QueryPage(_ context.Context, value string, _ request.Options) (*request.Page, error) {
	r.mu.Lock()
	r.pages = append(r.pages, value)
	r.mu.Unlock()
	body := ""
	if r.page != nil {
		body = r.page(value)
	}
	return &request.Page{Payload: value, Body: []byte(body), StatusCode: 200}, nil
}

func (r *fakeRequester) Evaluate(_ context.Context, value string, _ bool) (bool, error) {
	r.mu.Lock()
	r.evals = append(r.evals, value)
	r.mu.Unlock()
	if r.eval == nil {
		return false, nil
	}
	return r.eval(value), nil
}

// fakeOracle answers retrievals from a table of expressions; anything else
// is NULL.
type fakeOracle struct {
	mu      sync.Mutex
	answers map[string]string
	jobs    []inference.Job
}

func (o *fakeOracle) Retrieve(_ context.Context, job inference.Job) (inference.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
	v, ok := o.answers[job.Expression]
	if !ok {
		return inference.Result{Queries: 1, Null: true}, nil
	}
	return inference.Result{Queries: len(v) * 7, Value: v}, nil
}

func (o *fakeOracle) asked(expression string) int {
	n := 0
	for _, j := range o.jobs {
		if j.Expression == expression {
			n++
		}
	}
	return n
}

// recorder is an executor returning a fixed value and recording its calls.
type recorder struct {
	value engine.Value
	err   error
	calls []engine.Call
}

func (r *recorder) Execute(_ context.Context, c *engine.Call) (engine.Value, error) {
	r.calls = append(r.calls, *c)
	return r.value, r.err
}

type fakeDecider struct {
	multiple bool
	sel      engine.Selection
	err      error
	counts   []int
}

func (d *fakeDecider) MultipleEntries(context.Context) (bool, error) { return d.multiple, nil }

func (d *fakeDecider) EntryCount(_ context.Context, count int) (engine.Selection, error) {
	d.counts = append(d.counts, count)
	return d.sel, d.err
}

type fakeConsole struct {
	mu       sync.Mutex
	infos    []string
	warns    []string
	muted    int
	mutes    int
	released int
}

func (c *fakeConsole) Infof(format string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted == 0 {
		c.infos = append(c.infos, format)
	}
}

func (c *fakeConsole) Warnf(format string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warns = append(c.warns, format)
}

func (c *fakeConsole) Mute() func() {
	c.mu.Lock()
	c.muted++
	c.mutes++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.muted--
		c.released++
		c.mu.Unlock()
	}
}

type fakeDirect struct {
	rows    [][]string
	queries []string
}

func (d *fakeDirect) Query(_ context.Context, query string) ([][]string, error) {
	d.queries = append(d.queries, query)
	return d.rows, nil
}

// families installs a recorder for every technique family.
func families(union, errv, boolean, timev engine.Value) (map[engine.Family]*recorder, []engine.Option) {
	recs := map[engine.Family]*recorder{
		engine.FamilyUnion:   {value: union},
		engine.FamilyError:   {value: errv},
		engine.FamilyBoolean: {value: boolean},
		engine.FamilyTime:    {value: timev},
	}
	var opts []engine.Option
	for f, r := range recs {
		opts = append(opts, engine.WithExecutor(f, r))
	}
	return recs, opts
}

// --------------------------------------------------------------------------
// Technique selection
// --------------------------------------------------------------------------

func TestGetValue_FirstAnswerStopsSearch(t *testing.T) {
	recs, opts := families(engine.Text("8.0.33"), engine.Text("wrong"), engine.Text("wrong"), engine.Text("wrong"))
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

	var used technique.Technique
	v, err := e.GetValue(context.Background(), "SELECT VERSION()", engine.TechniqueUsed(&used))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "8.0.33" {
		t.Errorf("value = %q, want 8.0.33", got)
	}
	if used != technique.Union {
		t.Errorf("technique used = %v, want union", used)
	}
	for _, f := range []engine.Family{engine.FamilyError, engine.FamilyBoolean, engine.FamilyTime} {
		if n := len(recs[f].calls); n != 0 {
			t.Errorf("%s executor called %d times, want 0", f, n)
		}
	}
}

func TestGetValue_AttemptCap(t *testing.T) {
	recs, opts := families(engine.Missing(), engine.Missing(), engine.Text("late"), engine.Text("late"))
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

	v, err := e.GetValue(context.Background(), "SELECT VERSION()")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !v.IsMissing() {
		t.Errorf("value = %v, want missing", v)
	}
	if len(recs[engine.FamilyUnion].calls) != 1 || len(recs[engine.FamilyError].calls) != 1 {
		t.Errorf("union/error calls = %d/%d, want 1/1",
			len(recs[engine.FamilyUnion].calls), len(recs[engine.FamilyError].calls))
	}
	if len(recs[engine.FamilyBoolean].calls) != 0 || len(recs[engine.FamilyTime].calls) != 0 {
		t.Error("boolean or time executor called after the attempt cap")
	}
}

func TestGetValue_ExpectingNoneStopsAtFirstAttempt(t *testing.T) {
	recs, opts := families(engine.Missing(), engine.Text("x"), engine.Text("x"), engine.Text("x"))
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

	v, err := e.GetValue(context.Background(), "1=2", engine.Expect(engine.ExpectBool), engine.ExpectingNone(true))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !v.IsMissing() {
		t.Errorf("value = %v, want missing", v)
	}
	if len(recs[engine.FamilyError].calls) != 0 {
		t.Error("error executor called although a missing answer was acceptable")
	}
}

func TestGetValue_TimeOnlyWhenNothingAnswered(t *testing.T) {
	recs, opts := families(engine.Missing(), engine.Missing(), engine.Missing(), engine.Text("slow"))
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

	v, err := e.GetValue(context.Background(), "SELECT USER()", engine.Without(engine.FamilyUnion, engine.FamilyError))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "slow" {
		t.Errorf("value = %q, want slow", got)
	}
	calls := recs[engine.FamilyTime].calls
	if len(calls) != 1 {
		t.Fatalf("time executor calls = %d, want 1", len(calls))
	}
	if calls[0].Technique != technique.Time {
		t.Errorf("technique = %v, want time-based", calls[0].Technique)
	}
}

func TestGetValue_StackedWhenNoTimeVector(t *testing.T) {
	recs, opts := families(engine.Missing(), engine.Missing(), engine.Missing(), engine.Text("stacked"))
	e := engine.New(newPoint("MySQL", technique.Boolean, technique.Stacked), &fakeRequester{}, opts...)

	var used technique.Technique
	v, err := e.GetValue(context.Background(), "SELECT USER()", engine.TechniqueUsed(&used))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "stacked" {
		t.Errorf("value = %q, want stacked", got)
	}
	if used != technique.Stacked {
		t.Errorf("technique used = %v, want stacked", used)
	}
	if len(recs[engine.FamilyUnion].calls) != 0 {
		t.Error("union executor called without a union vector")
	}
}

func TestGetValue_NotVulnerable(t *testing.T) {
	point := &technique.Point{
		Target:    technique.Target{URL: targetURL},
		Parameter: technique.Parameter{Name: "id", Value: "1"},
		DBMS:      "MySQL",
	}
	e := engine.New(point, &fakeRequester{})

	_, err := e.GetValue(context.Background(), "SELECT VERSION()")
	if !errors.Is(err, engine.ErrNotVulnerable) {
		t.Fatalf("err = %v, want ErrNotVulnerable", err)
	}

	// Disabling every usable family is the same as having none.
	e = engine.New(newPoint("MySQL", technique.Union), &fakeRequester{})
	_, err = e.GetValue(context.Background(), "SELECT VERSION()", engine.Without(engine.FamilyUnion))
	if !errors.Is(err, engine.ErrNotVulnerable) {
		t.Fatalf("err = %v, want ErrNotVulnerable", err)
	}
}

func TestGetValue_ExecutorErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	recs, opts := families(engine.Missing(), engine.Missing(), engine.Missing(), engine.Missing())
	recs[engine.FamilyUnion].err = boom
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

	_, err := e.GetValue(context.Background(), "SELECT VERSION()")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(recs[engine.FamilyError].calls) != 0 {
		t.Error("search continued after an executor error")
	}
}

// --------------------------------------------------------------------------
// Boolean expectations
// --------------------------------------------------------------------------

func TestGetValue_BooleanExpressionShapes(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantForged string
		wantBlind  string
	}{
		{"predicate", "1=1", "SELECT (CASE WHEN (1=1) THEN 1 ELSE 0 END)", "1=1"},
		{"select", "SELECT 2>1", "SELECT 2>1", "2>1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, opts := families(engine.Missing(), engine.Missing(), engine.Missing(), engine.Missing())
			e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

			if _, err := e.GetValue(context.Background(), tt.expression, engine.Expect(engine.ExpectBool)); err != nil {
				t.Fatalf("GetValue: %v", err)
			}
			if got := recs[engine.FamilyUnion].calls[0].Expression; got != tt.wantForged {
				t.Errorf("union expression = %q, want %q", got, tt.wantForged)
			}

			recs, opts = families(engine.Missing(), engine.Missing(), engine.Missing(), engine.Missing())
			e = engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)
			if _, err := e.GetValue(context.Background(), tt.expression,
				engine.Expect(engine.ExpectBool), engine.Only(engine.FamilyBoolean)); err != nil {
				t.Fatalf("GetValue: %v", err)
			}
			if got := recs[engine.FamilyBoolean].calls[0].Expression; got != tt.wantBlind {
				t.Errorf("boolean expression = %q, want %q", got, tt.wantBlind)
			}
		})
	}
}

func TestGetValue_BooleanCoercion(t *testing.T) {
	tests := []struct {
		name    string
		raw     engine.Value
		want    bool
		missing bool
	}{
		{"one", engine.Text("1"), true, false},
		{"zero", engine.Text("0"), false, false},
		{"true upper", engine.Text("TRUE"), true, false},
		{"false mixed", engine.Text("False"), false, false},
		{"padded", engine.Text(" 1 "), true, false},
		{"other number", engine.Text("2"), true, false},
		{"none", engine.Text("None"), false, true},
		{"empty", engine.Text(""), false, true},
		{"first cell", engine.Rows([][]string{{"0", "x"}, {"1"}}), false, false},
		{"already bool", engine.Bool(true), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opts := families(tt.raw, engine.Missing(), engine.Missing(), engine.Missing())
			e := engine.New(newPoint("MySQL"), &fakeRequester{}, opts...)

			v, err := e.GetValue(context.Background(), "1=1", engine.Expect(engine.ExpectBool))
			if err != nil {
				t.Fatalf("GetValue: %v", err)
			}
			if tt.missing {
				if !v.IsMissing() {
					t.Errorf("value = %v, want missing", v)
				}
				return
			}
			b, ok := v.AsBool()
			if !ok || b != tt.want {
				t.Errorf("value = %v (bool %v), want %v", v, ok, tt.want)
			}
		})
	}
}

func TestCheckBoolean_SingleRequest(t *testing.T) {
	req := &fakeRequester{eval: func(string) bool { return true }}
	e := engine.New(newPoint("MySQL", technique.Boolean), req)

	ok, err := e.CheckBoolean(context.Background(), "1=1")
	if err != nil {
		t.Fatalf("CheckBoolean: %v", err)
	}
	if !ok {
		t.Error("CheckBoolean = false, want true")
	}
	if len(req.evals) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.evals))
	}
	if !strings.Contains(req.evals[0], "AND 1=1") {
		t.Errorf("payload = %q, want the predicate in the boolean vector", req.evals[0])
	}
}

func TestCheckBooleanExpression_UnescapesLiterals(t *testing.T) {
	req := &fakeRequester{eval: func(string) bool { return false }}
	e := engine.New(newPoint("MySQL", technique.Boolean), req)

	ok, err := e.CheckBooleanExpression(context.Background(), "USER() LIKE 'root%'", false)
	if err != nil {
		t.Fatalf("CheckBooleanExpression: %v", err)
	}
	if ok {
		t.Error("CheckBooleanExpression = true, want false")
	}
	if strings.Contains(req.evals[0], "'") {
		t.Errorf("payload %q still carries a quote", req.evals[0])
	}
	if !strings.Contains(req.evals[0], "CHAR(") {
		t.Errorf("payload %q does not use CHAR()", req.evals[0])
	}
}

func TestCheckBoolean_StoresInference(t *testing.T) {
	cache := session.NewMemoryCache()
	req := &fakeRequester{eval: func(string) bool { return true }}
	e := engine.New(newPoint("MySQL", technique.Boolean), req,
		engine.WithCache(cache), engine.WithStoreInference(true))

	for i := 0; i < 2; i++ {
		ok, err := e.CheckBoolean(context.Background(), "1=1")
		if err != nil || !ok {
			t.Fatalf("CheckBoolean = %v, %v", ok, err)
		}
	}
	if len(req.evals) != 1 {
		t.Errorf("requests = %d, want 1 (second answer resumed)", len(req.evals))
	}
}

// --------------------------------------------------------------------------
// Output techniques end to end
// --------------------------------------------------------------------------

func TestGetValue_UnionRows(t *testing.T) {
	const field = "qxsiphonq"
	req := &fakeRequester{page: func(string) string {
		return "<td>qabcqbob" + field + "hunterqxyzq</td><td>qabcqalice" + field + " qxyzq</td>" +
			"<td>qabcqbob" + field + "hunterqxyzq</td>"
	}}
	agent := payload.NewAgent(technique.Parameter{Name: "id", Value: "1"}).WithDelimiters("qabcq", "qxyzq")
	e := engine.New(newPoint("MySQL", technique.Union), req, engine.WithAgent(agent))

	v, err := e.GetValue(context.Background(), "SELECT name, pass FROM users")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	rows, ok := v.AsRows()
	if !ok {
		t.Fatalf("value = %v, want rows", v)
	}
	want := [][]string{{"alice", ""}, {"bob", "hunter"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
	if len(req.pages) != 1 {
		t.Errorf("requests = %d, want 1", len(req.pages))
	}
	if !strings.Contains(req.pages[0], "UNION ALL SELECT CONCAT(") {
		t.Errorf("payload = %q", req.pages[0])
	}
}

func TestGetValue_ErrorBasedResumes(t *testing.T) {
	req := &fakeRequester{page: func(string) string {
		return "XPATH syntax error: '~qabcq8.0.33qxyzq'"
	}}
	agent := payload.NewAgent(technique.Parameter{Name: "id", Value: "1"}).WithDelimiters("qabcq", "qxyzq")
	cache := session.NewMemoryCache()
	e := engine.New(newPoint("MySQL", technique.Error), req, engine.WithAgent(agent), engine.WithCache(cache))

	for i := 0; i < 2; i++ {
		v, err := e.GetValue(context.Background(), "SELECT VERSION()")
		if err != nil {
			t.Fatalf("GetValue #%d: %v", i, err)
		}
		if got, _ := v.AsText(); got != "8.0.33" {
			t.Errorf("GetValue #%d = %q, want 8.0.33", i, got)
		}
	}
	if len(req.pages) != 1 {
		t.Errorf("requests = %d, want 1", len(req.pages))
	}
	if cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", cache.Len())
	}
}

func TestGetValue_StaleResumedValue(t *testing.T) {
	cache := session.NewMemoryCache()
	const expr = "SELECT COUNT(id) FROM users"
	if err := cache.Store(context.Background(), cacheKey(expr), "abc"); err != nil {
		t.Fatal(err)
	}
	oracle := &fakeOracle{answers: map[string]string{expr: "42"}}
	e := engine.New(newPoint("MySQL", technique.Boolean), &fakeRequester{},
		engine.WithCache(cache), engine.WithOracle(oracle))

	v, err := e.GetValue(context.Background(), expr, engine.Expect(engine.ExpectInt))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "42" {
		t.Errorf("value = %q, want 42", got)
	}
	if oracle.asked(expr) != 1 {
		t.Errorf("oracle asked %d times, want 1", oracle.asked(expr))
	}

	// A well-typed resumed value is used as is.
	if err := cache.Store(context.Background(), cacheKey(expr), "7"); err != nil {
		t.Fatal(err)
	}
	v, err = e.GetValue(context.Background(), expr, engine.Expect(engine.ExpectInt))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "7" {
		t.Errorf("value = %q, want 7", got)
	}
	if oracle.asked(expr) != 1 {
		t.Errorf("oracle asked %d times, want 1", oracle.asked(expr))
	}
}

func TestGetValue_StaleResumedUnionValue(t *testing.T) {
	const expr = "SELECT COUNT(id) FROM users"
	req := &fakeRequester{page: func(string) string { return "<td>qabcq42" }}
	agent := payload.NewAgent(technique.Parameter{Name: "id", Value: "1"}).WithDelimiters("qabcq", "qxyzq")

	tests := []struct {
		name   string
		cached string
		want   string
	}{
		{"stale value reads a cut row", "abc", "42"},
		{"nothing cached drops a cut row", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := session.NewMemoryCache()
			if tt.cached != "" {
				if err := cache.Store(context.Background(), cacheKey(expr), tt.cached); err != nil {
					t.Fatal(err)
				}
			}
			e := engine.New(newPoint("MySQL", technique.Union), req, engine.WithAgent(agent), engine.WithCache(cache))

			v, err := e.GetValue(context.Background(), expr, engine.Expect(engine.ExpectInt))
			if err != nil {
				t.Fatalf("GetValue: %v", err)
			}
			if tt.want == "" {
				if !v.IsMissing() {
					t.Errorf("value = %v, want missing", v)
				}
				return
			}
			if got, _ := v.AsText(); got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Direct connection and console
// --------------------------------------------------------------------------

func TestGetValue_Direct(t *testing.T) {
	direct := &fakeDirect{rows: [][]string{{" 3.45.1 "}}}
	req := &fakeRequester{}
	e := engine.New(newPoint("SQLite"), req, engine.WithDirect(direct))

	v, err := e.GetValue(context.Background(), "sqlite_version()")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got, _ := v.AsText(); got != "3.45.1" {
		t.Errorf("value = %q, want 3.45.1", got)
	}
	if len(req.pages)+len(req.evals) != 0 {
		t.Error("direct retrieval sent requests to the target")
	}
}

func TestGetValue_SuppressOutput(t *testing.T) {
	console := &fakeConsole{}
	_, opts := families(engine.Text("x"), engine.Missing(), engine.Missing(), engine.Missing())
	e := engine.New(newPoint("MySQL"), &fakeRequester{}, append(opts, engine.WithConsole(console))...)

	if _, err := e.GetValue(context.Background(), "SELECT 1", engine.SuppressOutput()); err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if console.mutes != 1 || console.released != 1 || console.muted != 0 {
		t.Errorf("mutes/released/muted = %d/%d/%d, want 1/1/0", console.mutes, console.released, console.muted)
	}

	if _, err := e.GetValue(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if console.mutes != 1 {
		t.Errorf("console muted without SuppressOutput")
	}
}

func TestGetValue_PassesRetrievalOptions(t *testing.T) {
	recs, opts := families(engine.Missing(), engine.Missing(), engine.Text("ab"), engine.Missing())
	e := engine.New(newPoint("MySQL", technique.Boolean), &fakeRequester{}, opts...)

	_, err := e.GetValue(context.Background(), "SELECT USER()",
		engine.WithCharset(inference.Hex), engine.CharRange(2, 6), engine.NoCache())
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	calls := recs[engine.FamilyBoolean].calls
	if len(calls) != 1 {
		t.Fatalf("boolean calls = %d, want 1", len(calls))
	}
	c := calls[0]
	if len(c.Charset) != len(inference.Hex) || c.FirstChar != 2 || c.LastChar != 6 || c.UseCache {
		t.Errorf("call = charset %d, range %d..%d, cache %v", len(c.Charset), c.FirstChar, c.LastChar, c.UseCache)
	}
}
