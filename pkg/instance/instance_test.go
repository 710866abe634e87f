package instance

import "testing"

func TestIDPrefersEnv(t *testing.T) {
	t.Setenv(envInstanceID, " worker-7 ")
	if got := ID(); got != "worker-7" {
		t.Fatalf("expected env instance id, got %q", got)
	}
}

func TestIDFallsBackToHostname(t *testing.T) {
	t.Setenv(envInstanceID, "")
	if got := ID(); got == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
