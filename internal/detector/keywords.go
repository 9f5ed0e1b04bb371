package detector

import (
	"regexp"
	"sort"
)

// errorPatterns maps DBMS names to the error messages their drivers print.
var errorPatterns = map[string][]*regexp.Regexp{
	"MySQL": {
		regexp.MustCompile(`(?i)You have an error in your SQL syntax`),
		regexp.MustCompile(`(?i)Warning:.*\bmysql_`),
		regexp.MustCompile(`(?i)XPATH syntax error`),
		regexp.MustCompile(`(?i)MySqlException`),
		regexp.MustCompile(`(?i)com\.mysql\.jdbc`),
	},
	"PostgreSQL": {
		regexp.MustCompile(`(?i)ERROR:\s+syntax error at or near`),
		regexp.MustCompile(`(?i)invalid input syntax for (?:type )?\w+`),
		regexp.MustCompile(`(?i)pg_query\(\)`),
		regexp.MustCompile(`(?i)Npgsql\.`),
	},
	"MSSQL": {
		regexp.MustCompile(`(?i)Unclosed quotation mark`),
		regexp.MustCompile(`(?i)Conversion failed when converting`),
		regexp.MustCompile(`(?i)\[ODBC SQL Server Driver\]`),
		regexp.MustCompile(`(?i)Msg \d+, Level \d+, State \d+`),
	},
	"Oracle": {
		regexp.MustCompile(`ORA-\d{5}`),
		regexp.MustCompile(`(?i)oracle\.jdbc`),
	},
	"SQLite": {
		regexp.MustCompile(`(?i)SQLITE_ERROR`),
		regexp.MustCompile(`(?i)sqlite3\.OperationalError`),
		regexp.MustCompile(`(?i)SQL logic error`),
	},
	"Firebird": {
		regexp.MustCompile(`(?i)Dynamic SQL Error`),
		regexp.MustCompile(`(?i)conversion error from string`),
	},
}

// SQLError is a database error message found in a page.
type SQLError struct {
	DBMS    string
	Message string
}

// FindSQLErrors scans body for known database error messages, ordered by
// DBMS name.
func FindSQLErrors(body []byte) []SQLError {
	if len(body) == 0 {
		return nil
	}
	names := make([]string, 0, len(errorPatterns))
	for name := range errorPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	var found []SQLError
	seen := make(map[string]bool)
	for _, name := range names {
		for _, pat := range errorPatterns[name] {
			for _, m := range pat.FindAllString(string(body), -1) {
				if seen[name+"\x00"+m] {
					continue
				}
				seen[name+"\x00"+m] = true
				found = append(found, SQLError{DBMS: name, Message: m})
			}
		}
	}
	return found
}
