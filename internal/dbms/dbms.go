// Package dbms provides DBMS-specific SQL syntax, well-known queries and the
// per-dialect strategy table used to count and limit query rows.
package dbms

import "strings"

// DBMS builds SQL expressions in a particular dialect.
type DBMS interface {
	Name() string

	// String operations
	Concatenate(parts ...string) string
	Substring(expr string, start, length int) string
	Length(expr string) string
	ASCII(expr string) string
	Char(code int) string

	// Version and identity
	VersionQuery() string
	CurrentUserQuery() string
	CurrentDBQuery() string
	HostnameQuery() string

	// Enumeration queries
	ListDatabasesQuery() string
	ListTablesQuery(database string) string
	ListColumnsQuery(database, table string) string
	TableRef(database, table string) string

	// Error-based payloads
	ErrorPayloads() []PayloadTemplate

	// Time-based
	SleepFunction(seconds int) string

	// Boolean constructs
	IfThenElse(condition, trueExpr, falseExpr string) string

	// Quoting and comments
	QuoteString(s string) string
	CommentSequence() string

	// File operations
	FileReadQuery(path string) string

	// Capabilities
	Capabilities() Capabilities
}

// Capabilities describes what a DBMS supports.
type Capabilities struct {
	StackedQueries bool
	ErrorBased     bool
	UnionBased     bool
	FileRead       bool
	Subqueries     bool
	CaseWhen       bool
	LimitOffset    bool

	// RowLimit reports whether single rows can be addressed by index, which
	// is what lets multi-row expressions be retrieved one row at a time.
	RowLimit bool
}

// PayloadTemplate is an error-based vector template. Template carries the
// [QUERY] marker; Output is the number of characters the error message
// reflects before truncating (0 means unbounded).
type PayloadTemplate struct {
	Name     string
	Template string
	Output   int
	DBMS     string
}

// Registry returns a DBMS implementation by name.
// It accepts common name variants (e.g. "MySQL", "mysql", "PostgreSQL", "postgres").
// Returns nil if the name is not recognized.
func Registry(name string) DBMS {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return &MySQL{}
	case "postgresql", "postgres", "pgsql":
		return &PostgreSQL{}
	case "mssql", "sqlserver", "mssqlserver", "microsoft sql server":
		return &MSSQL{}
	case "oracle":
		return &Oracle{}
	case "sqlite", "sqlite3":
		return &SQLite{}
	case "firebird":
		return &Firebird{}
	default:
		return nil
	}
}

// Names lists the canonical names of every supported DBMS.
func Names() []string {
	return []string{"MySQL", "PostgreSQL", "MSSQL", "Oracle", "SQLite", "Firebird"}
}
