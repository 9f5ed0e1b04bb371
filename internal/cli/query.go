package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0x6d61/sqlsiphon/internal/config"
	"github.com/0x6d61/sqlsiphon/internal/dbms"
	"github.com/0x6d61/sqlsiphon/internal/detector"
	"github.com/0x6d61/sqlsiphon/internal/direct"
	"github.com/0x6d61/sqlsiphon/internal/engine"
	"github.com/0x6d61/sqlsiphon/internal/fingerprint"
	"github.com/0x6d61/sqlsiphon/internal/inference"
	"github.com/0x6d61/sqlsiphon/internal/payload"
	"github.com/0x6d61/sqlsiphon/internal/report"
	"github.com/0x6d61/sqlsiphon/internal/request"
	"github.com/0x6d61/sqlsiphon/internal/session"
	"github.com/0x6d61/sqlsiphon/internal/tamper"
	"github.com/0x6d61/sqlsiphon/internal/technique"
	"github.com/0x6d61/sqlsiphon/internal/technique/boolean"
	"github.com/0x6d61/sqlsiphon/internal/technique/timebased"
	"github.com/0x6d61/sqlsiphon/internal/transport"
	"github.com/0x6d61/sqlsiphon/internal/ui"
)

var (
	errMissingTarget = errors.New("target URL is required (use --url, --point or --direct)")
	errMissingParam  = errors.New("injectable parameter is required (use -p)")
	errUnknownDBMS   = errors.New("back-end DBMS is unknown (use --dbms or --check-dbms)")
	errNothingToDo   = errors.New("nothing to retrieve (use --banner, --sql, --dump, ...)")
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve values through an injection point",
	Long: `Query retrieves the value of SQL expressions through a confirmed injection
point. The point is described by --url and -p with default vectors for the
techniques in --technique, or by a YAML point file (--point).`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	f := queryCmd.Flags()

	// Target flags
	f.StringP("url", "u", "", "Target URL (e.g., http://target.com/page?id=1)")
	f.String("method", "GET", "HTTP method (GET, POST, PUT, etc.)")
	f.StringP("data", "d", "", "POST data (e.g., id=1&name=test)")
	f.String("cookie", "", "Cookie string (e.g., PHPSESSID=abc123)")
	f.StringArrayP("header", "H", nil, "Extra header (repeatable, e.g., -H 'X-Custom: value')")
	f.StringP("param", "p", "", "Injectable parameter")
	f.String("place", "", "Place of the parameter (query, body, cookie, header)")
	f.String("point", "", "Injection point file (YAML)")
	f.String("save-point", "", "Write the injection point to a YAML file")

	// Vector flags
	f.String("technique", "BEUST", "Techniques to use (B=Boolean, E=Error, U=Union, S=Stacked, T=Time)")
	f.String("dbms", "", "Back-end DBMS (MySQL, PostgreSQL, MSSQL, Oracle, SQLite, Firebird)")
	f.String("prefix", "", "Payload prefix")
	f.String("suffix", "", "Payload suffix")
	f.Int("union-cols", 0, "Number of columns of the UNION vector (0 disables it)")
	f.Int("union-pos", 0, "0-based index of the reflected UNION column")
	f.Bool("union-negative", false, "Use a negative original value in UNION payloads")
	f.String("string", "", "String only present on pages of true conditions")
	f.Int("time-sec", 5, "Delay of time-based payloads in seconds")
	f.String("tamper", "", "Comma-separated tamper scripts")
	f.String("direct", "", "Connect to the database directly (sqlite://, mysql://, postgres://)")

	// Retrieval flags
	f.Bool("batch", false, "Never ask, use the default answers")
	f.Bool("store-blind", false, "Also cache values retrieved by blind techniques")
	f.Bool("fresh", false, "Ignore cached values")
	f.Bool("check-dbms", false, "Verify or identify the back-end DBMS before retrieving")
	f.Bool("progress", false, "Show a progress bar while retrieving rows")
	f.String("charset", "", "Blind retrieval charset (ascii, digits, hex, alpha, alphanum or chars:<list>)")
	f.Int("first", 0, "First character of blind retrievals (1-based)")
	f.Int("last", 0, "Last character of blind retrievals")

	// Enumeration flags
	f.Bool("banner", false, "Retrieve the DBMS banner")
	f.Bool("current-user", false, "Retrieve the current user")
	f.Bool("current-db", false, "Retrieve the current database")
	f.Bool("hostname", false, "Retrieve the server hostname")
	f.Bool("dbs", false, "List databases")
	f.Bool("tables", false, "List the tables of -D")
	f.Bool("columns", false, "List the columns of -D -T")
	f.Bool("dump", false, "Dump the rows of -D -T")
	f.StringP("db", "D", "", "Database to enumerate")
	f.StringP("table", "T", "", "Table to enumerate")
	f.String("file-read", "", "Read a file from the back-end server")
	f.String("sql", "", "SQL expression to retrieve")
	f.String("sql-stacked", "", "SQL statement to run as a stacked query")

	// Output flags
	f.StringP("output", "o", "", "Output file path")
	f.StringP("format", "f", "text", "Output format (text, json, yaml)")
}

// queryFlags holds the command-line flags of the query command that are
// not layered through config.
type queryFlags struct {
	url     string
	method  string
	data    string
	cookie  string
	headers []string
	param   string
	place   string

	pointFile string
	savePoint string
	prefix    string
	suffix    string
	unionCols int
	unionPos  int
	unionNeg  bool
	marker    string

	fresh     bool
	checkDBMS bool
	progress  bool
	charset   string
	firstChar int
	lastChar  int
	format    string
	output    string

	enum enumeration
}

// enumeration selects what to retrieve.
type enumeration struct {
	banner      bool
	currentUser bool
	currentDB   bool
	hostname    bool
	dbs         bool
	tables      bool
	columns     bool
	dump        bool
	db          string
	table       string
	fileRead    string
	sql         string
	sqlStacked  string
}

func readQueryFlags(cmd *cobra.Command) queryFlags {
	f := cmd.Flags()
	var q queryFlags
	q.url, _ = f.GetString("url")
	q.method, _ = f.GetString("method")
	q.data, _ = f.GetString("data")
	q.cookie, _ = f.GetString("cookie")
	q.headers, _ = f.GetStringArray("header")
	q.param, _ = f.GetString("param")
	q.place, _ = f.GetString("place")
	q.pointFile, _ = f.GetString("point")
	q.savePoint, _ = f.GetString("save-point")
	q.prefix, _ = f.GetString("prefix")
	q.suffix, _ = f.GetString("suffix")
	q.unionCols, _ = f.GetInt("union-cols")
	q.unionPos, _ = f.GetInt("union-pos")
	q.unionNeg, _ = f.GetBool("union-negative")
	q.marker, _ = f.GetString("string")
	q.fresh, _ = f.GetBool("fresh")
	q.checkDBMS, _ = f.GetBool("check-dbms")
	q.progress, _ = f.GetBool("progress")
	q.charset, _ = f.GetString("charset")
	q.firstChar, _ = f.GetInt("first")
	q.lastChar, _ = f.GetInt("last")
	q.format, _ = f.GetString("format")
	q.output, _ = f.GetString("output")

	e := &q.enum
	e.banner, _ = f.GetBool("banner")
	e.currentUser, _ = f.GetBool("current-user")
	e.currentDB, _ = f.GetBool("current-db")
	e.hostname, _ = f.GetBool("hostname")
	e.dbs, _ = f.GetBool("dbs")
	e.tables, _ = f.GetBool("tables")
	e.columns, _ = f.GetBool("columns")
	e.dump, _ = f.GetBool("dump")
	e.db, _ = f.GetString("db")
	e.table, _ = f.GetString("table")
	e.fileRead, _ = f.GetString("file-read")
	e.sql, _ = f.GetString("sql")
	e.sqlStacked, _ = f.GetString("sql-stacked")
	return q
}

// runQuery wires transport, requester, engine and reporter, then retrieves
// every requested value.
func runQuery(cmd *cobra.Command, _ []string) error {
	cfg := settings
	flags := readQueryFlags(cmd)
	common, err := retrievalOptions(cfg, flags)
	if err != nil {
		return err
	}
	console := ui.NewConsole(cmd.ErrOrStderr(), noColor)
	console.Warnf("legal disclaimer: usage of sqlsiphon for attacking targets without prior mutual consent is illegal")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	s, err := newSiphon(ctx, cmd, cfg, flags, console)
	if err != nil {
		return err
	}
	defer s.close()

	if flags.checkDBMS {
		if err := s.checkDBMS(ctx); err != nil {
			return err
		}
	}

	plan, err := planExtractions(s.engine.DBMS(), flags.enum)
	if err != nil {
		return err
	}
	if len(plan) == 0 && !flags.checkDBMS {
		return errNothingToDo
	}

	run := report.NewRun(s.point.Target, s.point.Parameter)
	run.DBMS = s.point.DBMS
	run.DBMSVersion = s.version
	if err := s.extract(ctx, plan, run, common); err != nil {
		return err
	}
	run.Finish(s.requests())

	return writeReport(ctx, cmd.OutOrStdout(), run, flags.format, flags.output, cfg.Verbose)
}

// siphon is an engine wired for one query run.
type siphon struct {
	point   *technique.Point
	engine  *engine.Engine
	console *ui.Console
	version string
	direct  bool

	requests func() int64
	build    func(*technique.Point) *engine.Engine

	// reframe returns the point for a newly identified DBMS.
	reframe func(name string) *technique.Point
	closers []io.Closer
}

func newSiphon(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags queryFlags, console *ui.Console) (*siphon, error) {
	s := &siphon{console: console}

	if cfg.Direct != "" {
		db, err := direct.Open(ctx, cfg.Direct)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db)
		s.direct = true
		s.point = &technique.Point{Target: technique.Target{URL: redact(cfg.Direct)}, DBMS: db.DBMS()}
		s.engine = engine.New(s.point, nil,
			engine.WithDirect(db), engine.WithLogger(logger), engine.WithConsole(console))
		s.requests = func() int64 { return 0 }
		console.Infof("connected to %s", db.DBMS())
		return s, nil
	}

	point, reframe, err := buildPoint(flags, cfg)
	if err != nil {
		return nil, err
	}
	if len(point.Vectors) == 0 {
		return nil, fmt.Errorf("%w: no vector for techniques %q", engine.ErrNotVulnerable, cfg.Technique)
	}
	if flags.savePoint != "" {
		if err := savePoint(point, flags.savePoint); err != nil {
			return nil, err
		}
	}

	client, err := transport.NewClient(transport.ClientOptions{
		Timeout:         cfg.Timeout,
		ProxyURL:        cfg.Proxy,
		FollowRedirects: true,
		UserAgent:       cfg.UserAgent,
		RandomUserAgent: cfg.RandomAgent,
		MaxRPS:          cfg.Rate,
		Retries:         2,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	chain, err := tamper.Parse(cfg.Tamper)
	if err != nil {
		return nil, err
	}

	var cache engine.Cache = session.NewMemoryCache()
	if cfg.Session != "" {
		store, err := session.NewSQLiteStore(cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to open session file %q: %w", cfg.Session, err)
		}
		s.closers = append(s.closers, store)
		cache = store
	}

	var decider engine.Decider = engine.BatchDecider{}
	if !cfg.Batch {
		decider = &ui.PromptDecider{Prompt: ui.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())}
	}

	var comparator []boolean.Option
	if flags.marker != "" {
		comparator = append(comparator, boolean.WithMarker(flags.marker))
	}

	s.build = func(point *technique.Point) *engine.Engine {
		req := request.New(client, point,
			request.WithLogger(logger),
			request.WithTimeout(cfg.Timeout),
			request.WithTiming(timebased.New(cfg.TimeSec)),
			request.WithComparator(boolean.New(comparator...)),
		)
		agent := payload.NewAgent(point.Parameter).WithSleepTime(cfg.TimeSec).WithTamper(chain)
		oracle := inference.New(req, dbms.Registry(point.DBMS),
			inference.WithLogger(logger), inference.WithThreads(cfg.Threads))

		opts := []engine.Option{
			engine.WithLogger(logger),
			engine.WithAgent(agent),
			engine.WithOracle(oracle),
			engine.WithCache(cache),
			engine.WithDecider(decider),
			engine.WithConsole(console),
			engine.WithStoreInference(cfg.StoreBlind),
		}
		if flags.progress {
			opts = append(opts, engine.WithProgress(ui.NewProgress(cmd.ErrOrStderr()).Report))
		}
		return engine.New(point, req, opts...)
	}
	s.point = point
	s.reframe = reframe
	s.engine = s.build(point)
	s.requests = func() int64 { return client.Stats().Requests }

	var names []string
	for _, t := range point.Techniques() {
		names = append(names, t.String())
	}
	console.Infof("injection point: %s parameter '%s' (%s)", point.Parameter.Place, point.Parameter.Name, strings.Join(names, ", "))
	return s, nil
}

func (s *siphon) close() {
	for _, c := range slices.Backward(s.closers) {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

// buildPoint returns the injection point described by the flags and a
// function deriving the point for another DBMS.
func buildPoint(f queryFlags, cfg *config.Config) (*technique.Point, func(string) *technique.Point, error) {
	techs, err := technique.ParseLetters(strings.ToUpper(cfg.Technique))
	if err != nil {
		return nil, nil, err
	}

	if f.pointFile != "" {
		point, err := technique.LoadPoint(f.pointFile)
		if err != nil {
			return nil, nil, err
		}
		if point.DBMS == "" {
			point.DBMS = cfg.DBMS
		}
		point.Restrict(techs)
		return point, func(name string) *technique.Point {
			point.DBMS = name
			return point
		}, nil
	}

	if f.url == "" {
		return nil, nil, errMissingTarget
	}
	if f.param == "" {
		return nil, nil, errMissingParam
	}

	method := strings.ToUpper(f.method)
	if f.data != "" && method == "GET" {
		method = "POST"
	}
	headers := parseHeaders(f.headers)
	target := technique.Target{
		URL:     f.url,
		Method:  method,
		Headers: headers,
		Body:    f.data,
		Cookies: parseCookieString(f.cookie),
	}
	if f.data != "" {
		target.ContentType = "application/x-www-form-urlencoded"
		if ct, ok := headers["Content-Type"]; ok {
			target.ContentType = ct
		}
	}

	var places []technique.Place
	if f.place != "" {
		place, err := technique.ParsePlace(f.place)
		if err != nil {
			return nil, nil, err
		}
		places = append(places, place)
	}
	param, err := detector.Locate(target, f.param, places...)
	if err != nil {
		return nil, nil, err
	}

	framing := technique.Framing{
		Prefix:        f.prefix,
		Suffix:        f.suffix,
		UnionColumns:  f.unionCols,
		UnionPosition: f.unionPos,
		UnionNegative: f.unionNeg,
	}
	reframe := func(name string) *technique.Point {
		return technique.DefaultPoint(target, param, name, techs, framing)
	}
	return reframe(cfg.DBMS), reframe, nil
}

func savePoint(point *technique.Point, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create point file %q: %w", path, err)
	}
	defer f.Close()
	return point.Encode(f)
}

// checkDBMS verifies the declared back-end, or identifies it and rebuilds
// the engine for it.
func (s *siphon) checkDBMS(ctx context.Context) error {
	if s.direct {
		return nil
	}
	registry := fingerprint.NewRegistry()

	if s.point.DBMS != "" {
		s.console.Infof("testing %s", s.point.DBMS)
		info, err := registry.Verify(ctx, s.engine, s.point.DBMS)
		if err != nil {
			return fmt.Errorf("dbms check: %w", err)
		}
		if info == nil {
			s.console.Warnf("the back-end DBMS is not %s", s.point.DBMS)
			return nil
		}
		s.identified(info)
		return nil
	}

	s.console.Infof("fingerprinting the back-end DBMS")
	info, err := registry.Identify(ctx, s.engine)
	if err != nil {
		return fmt.Errorf("dbms fingerprint: %w", err)
	}
	if info == nil {
		s.console.Warnf("unable to identify the back-end DBMS")
		return nil
	}
	s.point = s.reframe(info.Name)
	s.engine = s.build(s.point)
	s.identified(info)
	return nil
}

func (s *siphon) identified(info *fingerprint.DBMSInfo) {
	s.version = info.Version
	if info.Version != "" {
		s.console.Successf("the back-end DBMS is %s %s", info.Name, info.Version)
		return
	}
	s.console.Successf("the back-end DBMS is %s", info.Name)
}

// extraction is one value to retrieve.
type extraction struct {
	label   string
	expr    string
	opts    []engine.ValueOption
	stacked bool
}

// planExtractions lists the values selected by the enumeration flags. d may
// be nil when only free-form SQL is requested.
func planExtractions(d dbms.DBMS, en enumeration) ([]extraction, error) {
	needsDBMS := en.banner || en.currentUser || en.currentDB || en.hostname ||
		en.dbs || en.tables || en.columns || en.dump || en.fileRead != ""
	if needsDBMS && d == nil {
		return nil, errUnknownDBMS
	}
	if (en.columns || en.dump) && en.table == "" {
		return nil, errors.New("--columns and --dump need a table (use -T)")
	}

	rows := []engine.ValueOption{engine.FromUser()}
	var plan []extraction
	if en.banner {
		plan = append(plan, extraction{label: "banner", expr: d.VersionQuery()})
	}
	if en.currentUser {
		plan = append(plan, extraction{label: "current user", expr: d.CurrentUserQuery()})
	}
	if en.currentDB {
		plan = append(plan, extraction{label: "current database", expr: d.CurrentDBQuery()})
	}
	if en.hostname {
		plan = append(plan, extraction{label: "hostname", expr: d.HostnameQuery()})
	}
	if en.dbs {
		plan = append(plan, extraction{label: "databases", expr: d.ListDatabasesQuery(), opts: rows})
	}
	if en.tables {
		plan = append(plan, extraction{label: "tables", expr: d.ListTablesQuery(en.db), opts: rows})
	}
	if en.columns {
		plan = append(plan, extraction{label: "columns of " + en.table, expr: d.ListColumnsQuery(en.db, en.table), opts: rows})
	}
	if en.dump {
		plan = append(plan, extraction{
			label: "dump of " + en.table,
			expr:  "SELECT * FROM " + d.TableRef(en.db, en.table),
			opts:  []engine.ValueOption{engine.FromUser(), engine.Dump()},
		})
	}
	if en.fileRead != "" {
		plan = append(plan, extraction{label: "file " + en.fileRead, expr: d.FileReadQuery(en.fileRead)})
	}
	if en.sql != "" {
		plan = append(plan, extraction{label: "sql query", expr: en.sql, opts: rows})
	}
	if en.sqlStacked != "" {
		plan = append(plan, extraction{label: "stacked query", expr: en.sqlStacked, stacked: true})
	}
	return plan, nil
}

// retrievalOptions returns the value options shared by every extraction.
func retrievalOptions(cfg *config.Config, f queryFlags) ([]engine.ValueOption, error) {
	opts := []engine.ValueOption{engine.Batch(cfg.Batch)}
	if f.fresh {
		opts = append(opts, engine.NoCache())
	}
	if f.charset != "" {
		cs, err := inference.ParseCharset(f.charset)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithCharset(cs))
	}
	if f.firstChar < 0 || f.lastChar < 0 || (f.lastChar > 0 && f.firstChar > f.lastChar) {
		return nil, fmt.Errorf("invalid character range %d..%d", f.firstChar, f.lastChar)
	}
	if f.firstChar > 0 || f.lastChar > 0 {
		opts = append(opts, engine.CharRange(f.firstChar, f.lastChar))
	}
	return opts, nil
}

// extract retrieves every planned value into run. Failures of single values
// are recorded in the run; a point without usable technique stops the run.
func (s *siphon) extract(ctx context.Context, plan []extraction, run *report.Run, common []engine.ValueOption) error {
	for _, x := range plan {
		if x.stacked {
			s.console.Infof("executing stacked query: %s", x.expr)
			if _, _, err := s.engine.GoStacked(ctx, x.expr); err != nil {
				if errors.Is(err, engine.ErrNotVulnerable) {
					return err
				}
				s.console.Errorf("%s: %v", x.label, err)
				run.Errors = append(run.Errors, fmt.Errorf("%s: %w", x.label, err))
				continue
			}
			run.Add(x.label, x.expr, technique.Stacked, engine.Missing())
			continue
		}

		s.console.Infof("fetching %s", x.label)
		var used technique.Technique
		opts := append(slices.Concat(x.opts, common), engine.TechniqueUsed(&used))
		v, err := s.engine.GetValue(ctx, x.expr, opts...)
		switch {
		case errors.Is(err, engine.ErrNotVulnerable):
			return err
		case errors.Is(err, engine.ErrQuit):
			s.console.Warnf("retrieval aborted")
			run.Errors = append(run.Errors, fmt.Errorf("%s: %w", x.label, err))
			return nil
		case err != nil:
			s.console.Errorf("%s: %v", x.label, err)
			run.Errors = append(run.Errors, fmt.Errorf("%s: %w", x.label, err))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		run.Add(x.label, x.expr, used, v)
		switch {
		case v.IsMissing():
			s.console.Warnf("%s: no value retrieved", x.label)
		case v.Kind() == engine.KindRows:
			rows, _ := v.AsRows()
			s.console.Successf("%s: %d entries", x.label, len(rows))
		default:
			s.console.Successf("%s: %s", x.label, v)
		}
	}
	return nil
}

func writeReport(ctx context.Context, stdout io.Writer, run *report.Run, format, output string, verbose int) error {
	reporter, err := report.New(format)
	if err != nil {
		return fmt.Errorf("unknown report format %q: %w", format, err)
	}
	if text, ok := reporter.(*report.TextReporter); ok {
		text.Verbose = verbose
	}

	out := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", output, err)
		}
		defer f.Close()
		out = f
	}
	if err := reporter.Generate(ctx, run, out); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return nil
}

// redact hides the password of a connection string.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

// parseCookieString parses a cookie header string (e.g., "name1=val1; name2=val2")
// into a map of name->value pairs.
func parseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	if raw == "" {
		return cookies
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			cookies[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cookies
}

// parseHeaders parses header strings (e.g., "X-Custom: value") into a map.
func parseHeaders(rawHeaders []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range rawHeaders {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
