// Package testutil provides a vulnerable web application backed by an
// in-memory SQLite database, for integration tests of the extraction
// engine.
//
// SECURITY NOTE: This package is for testing only. The handlers build SQL
// by string concatenation on purpose. All values embedded in responses are
// HTML-escaped via html/template.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"

	_ "modernc.org/sqlite"
)

// Seed rows served by the vulnerable application.
var (
	Items = [][]string{{"1", "Widget"}, {"2", "Gadget"}, {"3", "Gizmo"}}

	// Users holds id, name and password; bob has a NULL password.
	Users = [][]string{{"1", "alice", "secret"}, {"2", "bob", ""}, {"3", "carol", "s3cr3t"}}
)

var fixture = []string{
	`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
	`INSERT INTO items VALUES (1, 'Widget'), (2, 'Gadget'), (3, 'Gizmo')`,
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, password TEXT)`,
	`INSERT INTO users VALUES (1, 'alice', 'secret'), (2, 'bob', NULL), (3, 'carol', 's3cr3t')`,
}

var pages = template.Must(template.New("").Parse(`
{{define "items"}}<html><body><h1>Store</h1>{{range .}}<p>Item: {{.}}</p>{{else}}<p>No items found.</p>{{end}}</body></html>{{end}}
{{define "login"}}<html><body><h1>Login</h1>{{if .}}<p>Welcome back, {{index . 0}}!</p>{{else}}<p>Login failed.</p>{{end}}</body></html>{{end}}
{{define "error"}}<html><body><h1>Error</h1><p>SQL error: {{.}}</p></body></html>{{end}}
`))

// VulnServer is a vulnerable application listening on a local port.
type VulnServer struct {
	*httptest.Server
	db *sql.DB

	mu      sync.Mutex
	queries []string
}

// NewVulnServer starts the application. Endpoints:
//
//	GET  /item?id=N     numeric injection in SELECT id, name FROM items WHERE id=N
//	POST /login name=X  string injection in SELECT name FROM users WHERE name='X'
//	GET  /safe?id=N     the same query as /item with a bound parameter
//
// The server must be closed after use.
func NewVulnServer() (*VulnServer, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("testutil: open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	for _, stmt := range fixture {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("testutil: load fixture: %w", err)
		}
	}

	s := &VulnServer{db: db}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /item", s.handleItem)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /safe", s.handleSafe)
	s.Server = httptest.NewServer(mux)
	return s, nil
}

// Close stops the server and closes the database.
func (s *VulnServer) Close() {
	s.Server.Close()
	s.db.Close()
}

// Queries returns the SQL statements executed so far.
func (s *VulnServer) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *VulnServer) handleItem(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	s.render(w, r.Context(), "items", "SELECT id, name FROM items WHERE id="+id, 1)
}

func (s *VulnServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := r.PostFormValue("name")
	s.render(w, r.Context(), "login", "SELECT name FROM users WHERE name='"+name+"'", 0)
}

func (s *VulnServer) handleSafe(w http.ResponseWriter, r *http.Request) {
	names, err := s.column(r.Context(), 1, "SELECT id, name FROM items WHERE id=?", r.URL.Query().Get("id"))
	if err != nil {
		execTemplate(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	execTemplate(w, http.StatusOK, "items", names)
}

// render runs query and shows column col of every row. A failing query
// shows the database error.
func (s *VulnServer) render(w http.ResponseWriter, ctx context.Context, page, query string, col int) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	values, err := s.column(ctx, col, query)
	if err != nil {
		execTemplate(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	execTemplate(w, http.StatusOK, page, values)
}

func (s *VulnServer) column(ctx context.Context, col int, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if col >= len(cols) {
		return nil, fmt.Errorf("result has %d columns", len(cols))
	}

	var out []string
	for rows.Next() {
		cells := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, cells[col].String)
	}
	return out, rows.Err()
}

func execTemplate(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pages.ExecuteTemplate(w, name, data) //nolint:errcheck
}

// ItemURL returns the /item URL with id set to the given value.
func (s *VulnServer) ItemURL(id string) string {
	return s.URL + "/item?id=" + id
}
