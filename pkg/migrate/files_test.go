package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n", true},
		{"no down", "-- +goose Up\nSELECT 1;\n", false},
		{"down first", "-- +goose Down\n-- +goose Up\n", false},
		{"unterminated", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n", false},
		{"stray end", "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBody(tt.body)
			if tt.ok && err != nil {
				t.Fatalf("expected valid body: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestCreateAtRefusesDuplicates(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createAt(dir, "  Sidebar Pins! ", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301090000_sidebar_pins.sql" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	if _, err := createAt(dir, "sidebar pins", now); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := createAt(dir, "!!!", now); err == nil {
		t.Fatal("expected empty slug error")
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	for _, name := range []string{"20260301090000_a.sql", "20260301090000_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected duplicate version error")
	}
}
