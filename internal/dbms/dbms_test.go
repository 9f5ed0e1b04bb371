package dbms

import (
	"strings"
	"testing"
)

func TestRegistry(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MySQL", "MySQL"},
		{"mysql", "MySQL"},
		{"MariaDB", "MySQL"},
		{"PostgreSQL", "PostgreSQL"},
		{"postgres", "PostgreSQL"},
		{"postgresql", "PostgreSQL"},
		{"sqlserver", "MSSQL"},
		{"Oracle", "Oracle"},
		{"sqlite3", "SQLite"},
		{" firebird ", "Firebird"},
	}
	for _, tt := range tests {
		d := Registry(tt.input)
		if d == nil {
			t.Errorf("Registry(%q) returned nil", tt.input)
			continue
		}
		if d.Name() != tt.want {
			t.Errorf("Registry(%q).Name() = %q, want %q", tt.input, d.Name(), tt.want)
		}
	}
}

func TestRegistryUnknown(t *testing.T) {
	for _, name := range []string{"", "Unknown", "db2"} {
		if d := Registry(name); d != nil {
			t.Errorf("Registry(%q) should return nil, got %v", name, d)
		}
	}
}

func TestEveryDBMSHasDialect(t *testing.T) {
	for _, name := range Names() {
		d := LookupDialect(name)
		if d == nil {
			t.Fatalf("LookupDialect(%q) returned nil", name)
		}
		if d.Name != name {
			t.Errorf("LookupDialect(%q).Name = %q", name, d.Name)
		}
		if !strings.Contains(d.Count, "%s") || !strings.Contains(d.Case, "%s") {
			t.Errorf("%s: count/case templates must carry a %%s verb", name)
		}
		if !strings.Contains(d.UnionVector, "[QUERY]") {
			t.Errorf("%s: union vector %q lacks [QUERY]", name, d.UnionVector)
		}
		if !strings.Contains(d.TimeVector, "[INFERENCE]") {
			t.Errorf("%s: time vector %q lacks [INFERENCE]", name, d.TimeVector)
		}
		if Registry(name).Capabilities().RowLimit != d.SupportsRowLimit() {
			t.Errorf("%s: RowLimit capability disagrees with the dialect table", name)
		}
	}
}

func TestErrorPayloadsCarryQueryMarker(t *testing.T) {
	for _, name := range Names() {
		d := Registry(name)
		for _, p := range d.ErrorPayloads() {
			if !strings.Contains(p.Template, "[QUERY]") {
				t.Errorf("%s/%s: template %q lacks [QUERY]", name, p.Name, p.Template)
			}
			if p.DBMS != name {
				t.Errorf("%s/%s: DBMS = %q", name, p.Name, p.DBMS)
			}
		}
		if d.Capabilities().ErrorBased && len(d.ErrorPayloads()) == 0 {
			t.Errorf("%s advertises error-based support without payloads", name)
		}
	}
}

func TestExpressionBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"mysql concat", (&MySQL{}).Concatenate("'a'", "'b'"), "CONCAT('a','b')"},
		{"mysql concat single", (&MySQL{}).Concatenate("'a'"), "'a'"},
		{"mysql substring", (&MySQL{}).Substring("(x)", 3, 1), "MID((x),3,1)"},
		{"postgres substring", (&PostgreSQL{}).Substring("(x)", 3, 1), "SUBSTRING((x) FROM 3 FOR 1)"},
		{"mssql length", (&MSSQL{}).Length("x"), "LEN(x)"},
		{"oracle char", (&Oracle{}).Char(65), "CHR(65)"},
		{"sqlite ascii", (&SQLite{}).ASCII("x"), "unicode(x)"},
		{"firebird ascii", (&Firebird{}).ASCII("x"), "ASCII_VAL(x)"},
		{"mssql sleep", (&MSSQL{}).SleepFunction(65), "WAITFOR DELAY '0:01:05'"},
		{"mysql quote", (&MySQL{}).QuoteString("it's"), "'it''s'"},
		{"mysql table ref", (&MySQL{}).TableRef("shop", "users"), "shop.users"},
		{"mssql table ref", (&MSSQL{}).TableRef("shop", "users"), "shop..users"},
		{"sqlite table ref", (&SQLite{}).TableRef("main", "users"), "users"},
		{"firebird if", (&Firebird{}).IfThenElse("1=1", "1", "0"), "IIF(1=1,1,0)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestListQueriesQuoteArguments(t *testing.T) {
	got := (&MySQL{}).ListTablesQuery("o'neil")
	if !strings.Contains(got, "'o''neil'") {
		t.Errorf("ListTablesQuery did not quote the database name: %q", got)
	}
	got = (&Oracle{}).ListColumnsQuery("scott", "emp")
	if !strings.Contains(got, "'SCOTT'") || !strings.Contains(got, "'EMP'") {
		t.Errorf("Oracle ListColumnsQuery should upper-case identifiers: %q", got)
	}
}
