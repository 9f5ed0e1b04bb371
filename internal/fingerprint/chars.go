package fingerprint

import (
	"fmt"
	"strings"
)

// charPlus spells s as CHAR(n)+CHAR(n)... for Transact-SQL.
func charPlus(s string) string {
	return spell(s, "CHAR(%d)", "+")
}

// charConcat spells s as CHR(n)||CHR(n)... for PostgreSQL.
func charConcat(s string) string {
	return spell(s, "CHR(%d)", "||")
}

func spell(s, format, sep string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, fmt.Sprintf(format, r))
	}
	return strings.Join(parts, sep)
}
