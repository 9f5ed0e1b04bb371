package dbms

import "testing"

func TestUnescape(t *testing.T) {
	tests := []struct {
		name string
		d    DBMS
		in   string
		want string
	}{
		{"mysql word", &MySQL{}, "USER()='ab'", "USER()=CONCAT(CHAR(97),CHAR(98))"},
		{"mysql single char", &MySQL{}, "'a'", "CHAR(97)"},
		{"postgres", &PostgreSQL{}, "x='ab'", "x=CHR(97)||CHR(98)"},
		{"doubled quote", &SQLite{}, "'a''b'", "char(97)||char(39)||char(98)"},
		{"empty literal kept", &MySQL{}, "x=''", "x=''"},
		{"no literal", &MySQL{}, "1=1", "1=1"},
		{"two literals", &Oracle{}, "'a'||'b'", "CHR(97)||CHR(98)"},
		{"unterminated", &MySQL{}, "x='abc", "x='abc"},
	}
	for _, tt := range tests {
		if got := Unescape(tt.d, tt.in); got != tt.want {
			t.Errorf("%s: Unescape(%q) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestUnescapeNilDBMS(t *testing.T) {
	if got := Unescape(nil, "'a'"); got != "'a'" {
		t.Errorf("Unescape(nil) = %q, want input unchanged", got)
	}
}
