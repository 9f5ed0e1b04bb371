package fingerprint

// MySQL checks. QUARTER and CONV exist only on MySQL and MariaDB; the
// string '8' compares equal to the number 8 there.
var mysqlProbe = &probe{
	name: "MySQL",
	checks: []string{
		"QUARTER(NULL) IS NULL",
		"CONV(10,10,36)=CONV(10,10,36)",
		"SESSION_USER() LIKE USER()",
	},
	versions: []versionCheck{
		{"8.4", "MID(@@version,1,3)=8.4"},
		{"8.0", "MID(@@version,1,3)=8.0"},
		{"5.7", "MID(@@version,1,3)=5.7"},
		{"5.6", "MID(@@version,1,3)=5.6"},
		{"5.5", "MID(@@version,1,3)=5.5"},
		{"5.1", "MID(@@version,1,3)=5.1"},
		{"5.0", "MID(@@version,1,3)=5.0"},
	},
}
