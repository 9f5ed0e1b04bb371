package fingerprint

import "fmt"

// MSSQL checks. SQUARE and @@SPID are Transact-SQL only.
var mssqlProbe = &probe{
	name: "MSSQL",
	checks: []string{
		"SQUARE(2)=4",
		"@@SPID=@@SPID",
		"BINARY_CHECKSUM(5)=BINARY_CHECKSUM(5)",
	},
	versions: []versionCheck{
		mssqlVersion("2022", 16),
		mssqlVersion("2019", 15),
		mssqlVersion("2017", 14),
		mssqlVersion("2016", 13),
		mssqlVersion("2014", 12),
		mssqlVersion("2012", 11),
	},
}

// productMajorVersion spells 'ProductMajorVersion' without quotes.
var productMajorVersion = charPlus("ProductMajorVersion")

func mssqlVersion(year string, major int) versionCheck {
	return versionCheck{
		Version: year,
		Expr:    fmt.Sprintf("CAST(SERVERPROPERTY(%s) AS INT)=%d", productMajorVersion, major),
	}
}
