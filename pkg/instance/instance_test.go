package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("STOCKHOLD_INSTANCE_ID", "api-7")
	t.Setenv("HOSTNAME", "host-1")
	if got := GetID(); got != "api-7" {
		t.Fatalf("expected api-7, got %q", got)
	}
}

func TestGetIDFallsBackToHostname(t *testing.T) {
	t.Setenv("STOCKHOLD_INSTANCE_ID", "")
	t.Setenv("HOSTNAME", "host-1")
	if got := GetID(); got != "host-1" {
		t.Fatalf("expected host-1, got %q", got)
	}
}

func TestGetIDDefault(t *testing.T) {
	t.Setenv("STOCKHOLD_INSTANCE_ID", "")
	t.Setenv("HOSTNAME", "")
	if got := GetID(); got != "local" {
		t.Fatalf("expected local, got %q", got)
	}
}
