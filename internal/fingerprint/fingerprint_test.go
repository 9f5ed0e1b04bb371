package fingerprint

import (
	"context"
	"errors"
	"testing"

	"github.com/0x6d61/sqlsiphon/internal/detector"
)

// backend answers true for the expressions it holds.
type backend struct {
	truths map[string]bool
	asked  []string
	err    error
}

func newBackend(probes ...*probe) *backend {
	b := &backend{truths: make(map[string]bool)}
	for _, p := range probes {
		for _, c := range p.checks {
			b.truths[c] = true
		}
	}
	return b
}

func (b *backend) CheckBoolean(_ context.Context, expr string) (bool, error) {
	b.asked = append(b.asked, expr)
	if b.err != nil {
		return false, b.err
	}
	return b.truths[expr], nil
}

func TestProbe_Identify(t *testing.T) {
	tests := []struct {
		name    string
		probe   *probe
		backend *backend
		want    bool
		version string
	}{
		{"mysql", mysqlProbe, newBackend(mysqlProbe), true, ""},
		{"postgres on mysql", postgresProbe, newBackend(mysqlProbe), false, ""},
		{"mssql", mssqlProbe, newBackend(mssqlProbe), true, ""},
		{"sqlite", sqliteProbe, newBackend(sqliteProbe), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.probe.Fingerprint(context.Background(), tt.backend)
			if err != nil {
				t.Fatalf("Fingerprint: %v", err)
			}
			if res.Identified != tt.want {
				t.Errorf("Identified = %v, want %v", res.Identified, tt.want)
			}
			if res.DBMS != tt.probe.DBMS() {
				t.Errorf("DBMS = %q, want %q", res.DBMS, tt.probe.DBMS())
			}
			if res.Checks != len(tt.backend.asked) {
				t.Errorf("Checks = %d, asked %d", res.Checks, len(tt.backend.asked))
			}
		})
	}
}

func TestProbe_StopsAtFirstFailedCheck(t *testing.T) {
	b := newBackend()
	res, err := mysqlProbe.Fingerprint(context.Background(), b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if res.Identified || res.Confidence != 0 {
		t.Errorf("result = %+v, want unidentified", res)
	}
	if len(b.asked) != 1 {
		t.Errorf("asked %d checks, want 1", len(b.asked))
	}
}

func TestProbe_Version(t *testing.T) {
	b := newBackend(mysqlProbe)
	b.truths["MID(@@version,1,3)=8.0"] = true

	res, err := mysqlProbe.Fingerprint(context.Background(), b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if res.Version != "8.0" {
		t.Errorf("Version = %q, want 8.0", res.Version)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", res.Confidence)
	}
}

func TestProbe_PostgresVersion(t *testing.T) {
	b := newBackend(postgresProbe)
	for _, v := range postgresProbe.versions {
		if v.Version == "15" || v.Version == "14" {
			b.truths[v.Expr] = true
		}
	}
	res, err := postgresProbe.Fingerprint(context.Background(), b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if res.Version != "15" {
		t.Errorf("Version = %q, want 15", res.Version)
	}
}

func TestProbe_Error(t *testing.T) {
	boom := errors.New("connection reset")
	b := &backend{err: boom}
	if _, err := mysqlProbe.Fingerprint(context.Background(), b); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestProbe_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newBackend(mysqlProbe)
	if _, err := mysqlProbe.Fingerprint(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(b.asked) != 0 {
		t.Errorf("asked %d checks after cancellation", len(b.asked))
	}
}

func TestRegistry_Identify(t *testing.T) {
	r := NewRegistry()
	for _, p := range []*probe{mysqlProbe, postgresProbe, mssqlProbe, oracleProbe, sqliteProbe, firebirdProbe} {
		info, err := r.Identify(context.Background(), newBackend(p))
		if err != nil {
			t.Fatalf("Identify(%s): %v", p.name, err)
		}
		if info == nil || info.Name != p.name {
			t.Errorf("Identify(%s) = %+v", p.name, info)
		}
	}

	info, err := r.Identify(context.Background(), newBackend())
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if info != nil {
		t.Errorf("Identify(unknown) = %+v, want nil", info)
	}
}

func TestRegistry_Verify(t *testing.T) {
	r := NewRegistry()
	b := newBackend(postgresProbe)

	info, err := r.Verify(context.Background(), b, "postgresql")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if info == nil || info.Name != "PostgreSQL" {
		t.Errorf("Verify(postgresql) = %+v", info)
	}

	info, err = r.Verify(context.Background(), b, "MySQL")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if info != nil {
		t.Errorf("Verify(MySQL) on PostgreSQL = %+v, want nil", info)
	}

	if info, _ := r.Verify(context.Background(), b, "DB2"); info != nil {
		t.Errorf("Verify(DB2) = %+v, want nil", info)
	}
}

func TestRegistry_Names(t *testing.T) {
	names := NewRegistry().Names()
	if len(names) != 6 || names[0] != "MySQL" {
		t.Errorf("Names() = %v", names)
	}
}

func TestIdentifyFromErrors(t *testing.T) {
	tests := []struct {
		name string
		errs []detector.SQLError
		want string
	}{
		{"none", nil, ""},
		{"mysql", []detector.SQLError{{DBMS: "MySQL", Message: "You have an error in your SQL syntax"}}, "MySQL"},
		{
			"most messages wins",
			[]detector.SQLError{
				{DBMS: "MySQL", Message: "You have an error in your SQL syntax"},
				{DBMS: "PostgreSQL", Message: "ERROR:  syntax error at or near"},
				{DBMS: "PostgreSQL", Message: "invalid input syntax for integer"},
			},
			"PostgreSQL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := IdentifyFromErrors(tt.errs)
			if tt.want == "" {
				if info != nil {
					t.Errorf("IdentifyFromErrors = %+v, want nil", info)
				}
				return
			}
			if info == nil || info.Name != tt.want {
				t.Fatalf("IdentifyFromErrors = %+v, want %s", info, tt.want)
			}
			if info.Confidence != 0.7 {
				t.Errorf("Confidence = %v, want 0.7", info.Confidence)
			}
		})
	}
}

func TestSpell(t *testing.T) {
	if got := charPlus("ab"); got != "CHAR(97)+CHAR(98)" {
		t.Errorf("charPlus = %q", got)
	}
	if got := charConcat("ab"); got != "CHR(97)||CHR(98)" {
		t.Errorf("charConcat = %q", got)
	}
}
