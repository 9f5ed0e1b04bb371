package engine_test

import (
	"testing"

	"github.com/0x6d61/sqlsiphon/internal/engine"
)

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    engine.Value
		kind engine.Kind
		want string
	}{
		{engine.Missing(), engine.KindMissing, "None"},
		{engine.Bool(true), engine.KindBool, "true"},
		{engine.Text("root@localhost"), engine.KindText, "root@localhost"},
		{engine.Rows([][]string{{"1", "alice"}, {"2", "bob"}}), engine.KindRows, "1, alice\n2, bob"},
	}
	for _, tt := range tests {
		if tt.v.Kind() != tt.kind {
			t.Errorf("Kind() = %v, want %v", tt.v.Kind(), tt.kind)
		}
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValue_Accessors(t *testing.T) {
	if _, ok := engine.Text("x").AsBool(); ok {
		t.Error("text value reported as bool")
	}
	if _, ok := engine.Bool(false).AsText(); ok {
		t.Error("bool value reported as text")
	}
	rows, ok := engine.Rows([][]string{{"a"}}).AsRows()
	if !ok || len(rows) != 1 {
		t.Errorf("AsRows = %v, %v", rows, ok)
	}
	if engine.Missing().Strings() != nil {
		t.Error("missing value has display lines")
	}
}

func TestFamily_String(t *testing.T) {
	want := []string{"union", "error", "boolean", "time"}
	for i, f := range engine.Families {
		if f.String() != want[i] {
			t.Errorf("Families[%d] = %q, want %q", i, f, want[i])
		}
	}
}
