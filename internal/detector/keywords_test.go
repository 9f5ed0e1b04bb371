package detector

import "testing"

func TestFindSQLErrors(t *testing.T) {
	tests := []struct {
		body string
		dbms string
	}{
		{"You have an error in your SQL syntax; check the manual", "MySQL"},
		{"XPATH syntax error: '~root@localhost'", "MySQL"},
		{`ERROR:  invalid input syntax for type numeric: "qxq5.7q"`, "PostgreSQL"},
		{"Conversion failed when converting the nvarchar value 'x' to data type int.", "MSSQL"},
		{"ORA-01756: quoted string not properly terminated", "Oracle"},
		{"SQL logic error: near \"x\": syntax error", "SQLite"},
		{"Dynamic SQL Error SQL error code = -104", "Firebird"},
	}
	for _, tt := range tests {
		found := FindSQLErrors([]byte(tt.body))
		if len(found) == 0 {
			t.Errorf("no error found in %q", tt.body)
			continue
		}
		if found[0].DBMS != tt.dbms {
			t.Errorf("FindSQLErrors(%q)[0].DBMS = %q, want %q", tt.body, found[0].DBMS, tt.dbms)
		}
	}
}

func TestFindSQLErrorsNone(t *testing.T) {
	for _, body := range []string{"", "<html>all good</html>"} {
		if found := FindSQLErrors([]byte(body)); len(found) != 0 {
			t.Errorf("FindSQLErrors(%q) = %v, want none", body, found)
		}
	}
}

func TestFindSQLErrorsDeduplicates(t *testing.T) {
	found := FindSQLErrors([]byte("ORA-00933 ... ORA-00933"))
	if len(found) != 1 {
		t.Errorf("got %d entries, want 1", len(found))
	}
}
