package version

import (
	"strings"
	"testing"
)

func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()
	prevV, prevC, prevD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevV, prevC, prevD })
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	if v != "dev" || c != "unknown" || d != "unknown" {
		t.Fatalf("unexpected defaults: %q %q %q", v, c, d)
	}
}

func TestLdflagsOverride(t *testing.T) {
	withBuildInfo(t, "v1.4.2", "9f1c2ab", "2026-10-01T12:00:00Z")

	if got := GetVersion(); got != "v1.4.2" {
		t.Errorf("GetVersion() = %q", got)
	}
	if got := GetCommit(); got != "9f1c2ab" {
		t.Errorf("GetCommit() = %q", got)
	}
	if got := GetDate(); got != "2026-10-01T12:00:00Z" {
		t.Errorf("GetDate() = %q", got)
	}

	want := "fulfillment-service version=v1.4.2 commit=9f1c2ab date=2026-10-01T12:00:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestServiceNameIsValidKafkaClientID(t *testing.T) {
	for _, r := range ServiceName {
		ok := r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			t.Fatalf("service name %q contains %q, not allowed in kafka client id", ServiceName, r)
		}
	}
	if !strings.HasPrefix(String(), ServiceName+" ") {
		t.Errorf("String should start with service name, got %q", String())
	}
}
