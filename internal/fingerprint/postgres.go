package fingerprint

import "fmt"

// PostgreSQL checks: the :: cast and QUOTE_IDENT.
var postgresProbe = &probe{
	name: "PostgreSQL",
	checks: []string{
		"5::int=5",
		"QUOTE_IDENT(NULL) IS NULL",
	},
	versions: postgresVersions(17, 9),
}

// serverVersionNum spells 'server_version_num' without quotes.
var serverVersionNum = charConcat("server_version_num")

// postgresVersions checks server_version_num from newest to oldest major.
func postgresVersions(newest, oldest int) []versionCheck {
	var out []versionCheck
	for major := newest; major >= oldest; major-- {
		out = append(out, versionCheck{
			Version: fmt.Sprint(major),
			Expr:    fmt.Sprintf("CURRENT_SETTING(%s)::int>=%d", serverVersionNum, major*10000),
		})
	}
	return out
}
