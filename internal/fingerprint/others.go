package fingerprint

// SQLite, Oracle and Firebird checks. Their versions are not probed.
var (
	sqliteProbe = &probe{
		name: "SQLite",
		checks: []string{
			"SQLITE_VERSION()=SQLITE_VERSION()",
			"LAST_INSERT_ROWID()=LAST_INSERT_ROWID()",
		},
		versions: []versionCheck{
			{"3", "CAST(SUBSTR(SQLITE_VERSION(),1,1) AS INTEGER)=3"},
		},
	}

	oracleProbe = &probe{
		name: "Oracle",
		checks: []string{
			"ROWNUM=ROWNUM",
			"LENGTHB(5)=LENGTHB(5)",
		},
	}

	firebirdProbe = &probe{
		name: "Firebird",
		checks: []string{
			"(SELECT COUNT(*) FROM RDB$DATABASE WHERE 5=5)>0",
		},
	}
)
