package consent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveThenCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "consent.yaml")
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	if _, err := Save(path, "Sam Doe", now); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := Check(path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if rec.User != "Sam Doe" || !rec.RecordedAt.Equal(now) || len(rec.Acknowledgements) != len(Acknowledgements) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCheckMissingOrRevoked(t *testing.T) {
	dir := t.TempDir()
	if _, err := Check(filepath.Join(dir, "absent.yaml")); !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("expected ErrNotRecorded for missing file, got %v", err)
	}

	revoked := filepath.Join(dir, "revoked.yaml")
	if err := os.WriteFile(revoked, []byte("user: Sam\nconsent: no\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Check(revoked); !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("expected ErrNotRecorded for revoked consent, got %v", err)
	}
}

func TestSaveRequiresUser(t *testing.T) {
	if _, err := Save(filepath.Join(t.TempDir(), "c.yaml"), "  ", time.Now()); err == nil {
		t.Fatal("expected error for blank user")
	}
}
