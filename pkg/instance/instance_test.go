package instance

import "testing"

func TestIDPrefersExplicitValue(t *testing.T) {
	t.Setenv("SAINTPAUL_INSTANCE_ID", "gw-7")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "gw-7" {
		t.Fatalf("expected gw-7 got %s", got)
	}
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("SAINTPAUL_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "web.1" {
		t.Fatalf("expected web.1 got %s", got)
	}
}

func TestIDNeverEmpty(t *testing.T) {
	t.Setenv("SAINTPAUL_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if ID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
