package enums

import "testing"

func TestParseRole(t *testing.T) {
	got, err := ParseRole(" Superior_General ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != RoleSuperiorGeneral || !got.IsSuperior() {
		t.Fatalf("unexpected role %q", got)
	}
	if _, err := ParseRole("pope"); err == nil {
		t.Fatal("expected invalid role error")
	}
	if Role("").IsValid() {
		t.Fatal("empty role must not be valid")
	}
}

func TestSortOrder(t *testing.T) {
	if SortAsc.Toggle() != SortDesc || SortDesc.Toggle() != SortAsc {
		t.Fatal("toggle should flip direction")
	}
	if got, err := ParseSortOrder("DESC"); err != nil || got != SortDesc {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
	if _, err := ParseSortOrder("sideways"); err == nil {
		t.Fatal("expected invalid sort order error")
	}
}

func TestSessionStateSettled(t *testing.T) {
	if SessionHydrating.Settled() || SessionUninitialized.Settled() {
		t.Fatal("transient states are not settled")
	}
	if !SessionAuthenticated.Settled() || !SessionUnauthenticated.Settled() {
		t.Fatal("terminal states are settled")
	}
}
