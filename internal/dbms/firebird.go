package dbms

import (
	"fmt"
	"regexp"
	"strings"
)

// Firebird implements DBMS for Firebird.
// Key Firebird SQL differences:
//   - FIRST n SKIP m instead of LIMIT
//   - ASCII_VAL/ASCII_CHAR instead of ASCII/CHAR
//   - RDB$DATABASE is the one-row table for FROM-less selects
//   - context values come from RDB$GET_CONTEXT('namespace','name'), whose
//     argument list is not a field list
type Firebird struct{}

var firebirdDialect = register(&Dialect{
	Name:     "Firebird",
	Count:    "COUNT(%s)",
	Case:     "SELECT (CASE WHEN (%s) THEN 1 ELSE 0 END) FROM RDB$DATABASE",
	Cast:     "CAST(%s AS VARCHAR(10000))",
	NullCast: "COALESCE(CAST(%s AS VARCHAR(10000)),' ')",
	Limit: &LimitRule{
		Pattern:    regexp.MustCompile(`(?i)\s+FIRST\s+(\d+)\s+SKIP\s+(\d+)`),
		StartGroup: 2,
		StopGroup:  1,
	},
	FromTable:   "RDB$DATABASE",
	OpaqueField: regexp.MustCompile(`(?i)RDB\$GET_CONTEXT\([^)]+\)`),
	TimeVector:  "AND [RANDNUM]=(CASE WHEN ([INFERENCE]) THEN (SELECT COUNT(*) FROM RDB$FIELDS AS T1,RDB$TYPES AS T2,RDB$COLLATIONS AS T3,RDB$FUNCTIONS AS T4) ELSE [RANDNUM] END)",
	UnionVector: "UNION ALL SELECT [QUERY] FROM RDB$DATABASE",
	limitQuery: func(num int, query, fields, field string) string {
		q := strings.Replace(query, fields, field, 1)
		if !strings.HasPrefix(strings.ToUpper(q), "SELECT ") {
			return q
		}
		return fmt.Sprintf("SELECT FIRST 1 SKIP %d %s", num, q[len("SELECT "):])
	},
})

func (f *Firebird) Name() string { return "Firebird" }

func (f *Firebird) Concatenate(parts ...string) string {
	return strings.Join(parts, "||")
}

func (f *Firebird) Substring(expr string, start, length int) string {
	return fmt.Sprintf("SUBSTRING(%s FROM %d FOR %d)", expr, start, length)
}

func (f *Firebird) Length(expr string) string {
	return fmt.Sprintf("CHAR_LENGTH(%s)", expr)
}

func (f *Firebird) ASCII(expr string) string {
	return fmt.Sprintf("ASCII_VAL(%s)", expr)
}

func (f *Firebird) Char(code int) string {
	return fmt.Sprintf("ASCII_CHAR(%d)", code)
}

func (f *Firebird) VersionQuery() string {
	return "SELECT RDB$GET_CONTEXT('SYSTEM','ENGINE_VERSION') FROM RDB$DATABASE"
}

func (f *Firebird) CurrentUserQuery() string {
	return "SELECT CURRENT_USER FROM RDB$DATABASE"
}

func (f *Firebird) CurrentDBQuery() string {
	return "SELECT RDB$GET_CONTEXT('SYSTEM','DB_NAME') FROM RDB$DATABASE"
}

func (f *Firebird) HostnameQuery() string {
	return "SELECT RDB$GET_CONTEXT('SYSTEM','CLIENT_ADDRESS') FROM RDB$DATABASE"
}

// ListDatabasesQuery returns the attached database file, the only database a
// Firebird connection sees.
func (f *Firebird) ListDatabasesQuery() string {
	return f.CurrentDBQuery()
}

func (f *Firebird) ListTablesQuery(_ string) string {
	return "SELECT RDB$RELATION_NAME FROM RDB$RELATIONS WHERE RDB$VIEW_BLR IS NULL AND (RDB$SYSTEM_FLAG IS NULL OR RDB$SYSTEM_FLAG=0)"
}

func (f *Firebird) ListColumnsQuery(_, table string) string {
	return fmt.Sprintf("SELECT RDB$FIELD_NAME FROM RDB$RELATION_FIELDS WHERE RDB$RELATION_NAME=%s ORDER BY RDB$FIELD_POSITION",
		f.QuoteString(strings.ToUpper(table)))
}

func (f *Firebird) TableRef(_, table string) string {
	return table
}

func (f *Firebird) ErrorPayloads() []PayloadTemplate {
	return nil
}

// SleepFunction has no Firebird equivalent; the heavy cross join in the
// time vector is used instead.
func (f *Firebird) SleepFunction(_ int) string {
	return "(SELECT COUNT(*) FROM RDB$FIELDS AS T1,RDB$TYPES AS T2,RDB$COLLATIONS AS T3,RDB$FUNCTIONS AS T4)"
}

func (f *Firebird) IfThenElse(condition, trueExpr, falseExpr string) string {
	return fmt.Sprintf("IIF(%s,%s,%s)", condition, trueExpr, falseExpr)
}

func (f *Firebird) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (f *Firebird) CommentSequence() string {
	return "--"
}

func (f *Firebird) FileReadQuery(_ string) string {
	return ""
}

func (f *Firebird) Capabilities() Capabilities {
	return Capabilities{
		UnionBased:  true,
		Subqueries:  true,
		CaseWhen:    true,
		LimitOffset: true,
		RowLimit:    true,
	}
}
