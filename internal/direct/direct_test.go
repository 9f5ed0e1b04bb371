package direct

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite://:memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDirect_Query(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER, name TEXT, note TEXT)",
		"INSERT INTO users VALUES (1, 'alice', NULL), (2, 'bob', 'admin')",
	} {
		if _, err := db.Query(ctx, stmt); err != nil {
			t.Fatalf("Query(%q): %v", stmt, err)
		}
	}

	rows, err := db.Query(ctx, "SELECT id, name, note FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := [][]string{{"1", "alice", ""}, {"2", "bob", "admin"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %q, want %q", rows, want)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
	if db.DBMS() != "SQLite" {
		t.Errorf("DBMS() = %q, want SQLite", db.DBMS())
	}
}

func TestDirect_Expression(t *testing.T) {
	db := openMemory(t)

	rows, err := db.Query(context.Background(), "1+2")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "3" {
		t.Errorf("rows = %q, want [[3]]", rows)
	}
}

func TestDirect_QueryError(t *testing.T) {
	db := openMemory(t)
	if _, err := db.Query(context.Background(), "SELECT * FROM missing"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestStatement(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"  delete from t ", "delete from t"},
		{"version()", "SELECT version()"},
		{"WITH x AS (SELECT 1) SELECT * FROM x", "WITH x AS (SELECT 1) SELECT * FROM x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := statement(tt.in); got != tt.want {
			t.Errorf("statement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		source string
		name   string
	}{
		{"sqlite:///tmp/app.db", "sqlite", "/tmp/app.db", "SQLite"},
		{"data/app.sqlite", "sqlite", "data/app.sqlite", "SQLite"},
		{"postgres://u:p@db:5432/app?sslmode=disable", "postgres", "postgres://u:p@db:5432/app?sslmode=disable", "PostgreSQL"},
		{"mysql://root:toor@db/app", "mysql", "root:toor@tcp(db:3306)/app", "MySQL"},
	}
	for _, tt := range tests {
		driver, source, name, err := parse(tt.dsn)
		if err != nil {
			t.Errorf("parse(%q): %v", tt.dsn, err)
			continue
		}
		if driver != tt.driver || !strings.HasPrefix(source, tt.source) || name != tt.name {
			t.Errorf("parse(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.dsn, driver, source, name, tt.driver, tt.source, tt.name)
		}
	}

	if _, _, _, err := parse("oracle://x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("parse(oracle) err = %v, want ErrUnsupported", err)
	}
}
