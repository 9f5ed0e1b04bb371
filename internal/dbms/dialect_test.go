package dbms

import "testing"

func TestLimitQuery(t *testing.T) {
	const query = "SELECT name,surname FROM users ORDER BY id"
	tests := []struct {
		dbms string
		num  int
		want string
	}{
		{"MySQL", 2, "SELECT name FROM users ORDER BY id LIMIT 2,1"},
		{"PostgreSQL", 2, "SELECT name FROM users ORDER BY id OFFSET 2 LIMIT 1"},
		{"SQLite", 0, "SELECT name FROM users ORDER BY id LIMIT 1 OFFSET 0"},
		{"Firebird", 3, "SELECT FIRST 1 SKIP 3 name FROM users ORDER BY id"},
		{"MSSQL", 0, "SELECT TOP 1 name FROM users ORDER BY id"},
		{"MSSQL", 2, "SELECT TOP 1 name FROM users WHERE name NOT IN (SELECT TOP 2 name FROM users ORDER BY id) ORDER BY id"},
		{"Oracle", 1, "SELECT SIPHON_V FROM (SELECT q.*,ROWNUM AS SIPHON_RN FROM (SELECT name AS SIPHON_V FROM users ORDER BY id) q) WHERE SIPHON_RN=2"},
	}
	for _, tt := range tests {
		d := LookupDialect(tt.dbms)
		got := d.LimitQuery(tt.num, query, "name,surname", "name")
		if got != tt.want {
			t.Errorf("%s LimitQuery(%d):\n got %q\nwant %q", tt.dbms, tt.num, got, tt.want)
		}
	}
}

func TestLimitQueryMSSQLExistingWhere(t *testing.T) {
	d := LookupDialect("MSSQL")
	got := d.LimitQuery(1, "SELECT name FROM users WHERE active=1", "name", "name")
	want := "SELECT TOP 1 name FROM users WHERE name NOT IN (SELECT TOP 1 name FROM users WHERE active=1) AND active=1"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestLimitQueryWithoutRowLimit(t *testing.T) {
	d := &Dialect{Name: "Access", Count: "COUNT(%s)"}
	if d.SupportsRowLimit() {
		t.Fatal("a dialect without a limit strategy must not support row limits")
	}
	got := d.LimitQuery(4, "SELECT a,b FROM t", "a,b", "b")
	if got != "SELECT b FROM t" {
		t.Errorf("got %q", got)
	}
}

func TestCountQuery(t *testing.T) {
	d := LookupDialect("MySQL")
	got := d.CountQuery("SELECT name,surname FROM users WHERE id>1 ORDER BY name", "name,surname", "name")
	want := "SELECT COUNT(name) FROM users WHERE id>1"
	if got != want {
		t.Errorf("CountQuery = %q, want %q", got, want)
	}
	for _, name := range []string{"MySQL", "Oracle", "Microsoft SQL Server"} {
		d := LookupDialect(name)
		if d == nil {
			t.Fatalf("no dialect for %s", name)
		}
		got := d.CountQuery("SELECT COUNT(name) FROM users GROUP BY role ORDER BY role", "COUNT(name)", "COUNT(name)")
		want := "SELECT COUNT(*) FROM (SELECT COUNT(name) FROM users GROUP BY role) T"
		if got != want {
			t.Errorf("%s: grouped CountQuery = %q, want %q", name, got, want)
		}
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name      string
		dbms      string
		query     string
		found     bool
		capped    bool
		start     int
		stop      int
		remaining string
	}{
		{
			name: "mysql range", dbms: "MySQL",
			query: "SELECT name FROM users LIMIT 2,3",
			found: true, start: 2, stop: 5, remaining: "SELECT name FROM users",
		},
		{
			name: "mysql single row", dbms: "MySQL",
			query: "SELECT name FROM users LIMIT 4,1",
			found: true, capped: true, start: 4, stop: 1,
		},
		{
			name: "mysql no clause", dbms: "MySQL",
			query: "SELECT name FROM users",
		},
		{
			name: "postgres offset", dbms: "PostgreSQL",
			query: "SELECT name FROM users LIMIT 3 OFFSET 1",
			found: true, start: 1, stop: 4, remaining: "SELECT name FROM users",
		},
		{
			name: "mssql top", dbms: "MSSQL",
			query: "SELECT TOP 5 name FROM users",
			found: true, start: 0, stop: 5, remaining: "SELECT name FROM users",
		},
		{
			name: "oracle rownum", dbms: "Oracle",
			query: "SELECT banner FROM v$version WHERE ROWNUM=1",
			found: true, capped: true,
		},
		{
			name: "firebird first skip", dbms: "Firebird",
			query: "SELECT FIRST 4 SKIP 2 name FROM users",
			found: true, start: 2, stop: 6, remaining: "SELECT name FROM users",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, found := LookupDialect(tt.dbms).Bounds(tt.query)
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if !found {
				return
			}
			if w.Capped != tt.capped {
				t.Fatalf("capped = %v, want %v", w.Capped, tt.capped)
			}
			if tt.capped {
				return
			}
			if w.Start != tt.start || w.Stop != tt.stop {
				t.Errorf("window = [%d,%d), want [%d,%d)", w.Start, w.Stop, tt.start, tt.stop)
			}
			if w.Expr != tt.remaining {
				t.Errorf("expr = %q, want %q", w.Expr, tt.remaining)
			}
		})
	}
}

func TestSingleRowAndOpaque(t *testing.T) {
	oracle := LookupDialect("Oracle")
	if !oracle.SingleRow("SELECT USER FROM DUAL") {
		t.Error("Oracle query from DUAL should be single-row")
	}
	if oracle.SingleRow("SELECT name FROM users") {
		t.Error("Oracle query from a table should not be single-row")
	}
	if LookupDialect("MySQL").SingleRow("SELECT 1 FROM DUAL") {
		t.Error("the DUAL rule only applies to Oracle")
	}

	fb := LookupDialect("Firebird")
	if !fb.Opaque("SELECT RDB$GET_CONTEXT('SYSTEM','DB_NAME') FROM RDB$DATABASE") {
		t.Error("RDB$GET_CONTEXT should be opaque on Firebird")
	}
	if LookupDialect("MySQL").Opaque("SELECT RDB$GET_CONTEXT('SYSTEM','DB_NAME')") {
		t.Error("the opaque-field rule only applies to Firebird")
	}
}

func TestCastHelpers(t *testing.T) {
	d := LookupDialect("MySQL")
	if got := d.CastText("(x)"); got != "CAST((x) AS CHAR)" {
		t.Errorf("CastText = %q", got)
	}
	if got := d.NullCastText("x"); got != "IFNULL(CAST(x AS CHAR),' ')" {
		t.Errorf("NullCastText = %q", got)
	}
	var none *Dialect
	if got := none.CastText("x"); got != "x" {
		t.Errorf("nil dialect CastText = %q", got)
	}
	if got := LookupDialect("Oracle").CaseStatement("1=1"); got != "SELECT (CASE WHEN (1=1) THEN 1 ELSE 0 END) FROM DUAL" {
		t.Errorf("CaseStatement = %q", got)
	}
}
