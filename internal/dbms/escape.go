package dbms

import "strings"

// Unescape rewrites every quoted string literal in expr into a quote-free
// character expression, e.g. 'ab' becomes CONCAT(CHAR(97),CHAR(98)) on MySQL.
// Payloads built this way survive filters and magic-quote escaping of the
// single quote. Empty literals are left untouched.
func Unescape(d DBMS, expr string) string {
	if d == nil || !strings.Contains(expr, "'") {
		return expr
	}

	var b strings.Builder
	for i := 0; i < len(expr); {
		if expr[i] != '\'' {
			b.WriteByte(expr[i])
			i++
			continue
		}

		literal, next, ok := readLiteral(expr, i)
		if !ok {
			// Unterminated literal: keep the remainder verbatim.
			b.WriteString(expr[i:])
			break
		}
		if literal == "" {
			b.WriteString("''")
		} else {
			b.WriteString(charExpression(d, literal))
		}
		i = next
	}
	return b.String()
}

// readLiteral reads the quoted literal starting at expr[start] == '\''.
// Doubled quotes inside the literal are unescaped.
func readLiteral(expr string, start int) (string, int, bool) {
	var lit strings.Builder
	for i := start + 1; i < len(expr); i++ {
		if expr[i] != '\'' {
			lit.WriteByte(expr[i])
			continue
		}
		if i+1 < len(expr) && expr[i+1] == '\'' {
			lit.WriteByte('\'')
			i++
			continue
		}
		return lit.String(), i + 1, true
	}
	return "", len(expr), false
}

func charExpression(d DBMS, s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, d.Char(int(r)))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return d.Concatenate(parts...)
}
