package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tracking.db"))

	if err := s.Set("tracking:events", `[{"trackId":1}]`); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := s.Get("tracking:events")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != `[{"trackId":1}]` {
		t.Errorf("Get() = %q", got)
	}

	// Overwriting replaces the previous blob.
	if err := s.Set("tracking:events", `[]`); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}
	got, err = s.Get("tracking:events")
	if err != nil {
		t.Fatalf("Get() after overwrite error: %v", err)
	}
	if got != `[]` {
		t.Errorf("Get() after overwrite = %q", got)
	}
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tracking.db"))

	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreRemove(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "tracking.db"))

	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(removed) error = %v, want ErrNotFound", err)
	}

	// Removing an absent key is not an error.
	if err := s.Remove("k"); err != nil {
		t.Errorf("Remove(absent) error = %v", err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.db")

	s := NewSQLiteStore(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Set("tracking:stats", `{"totalPlays":3}`); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened := openTestStore(t, path)
	got, err := reopened.Get("tracking:stats")
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if got != `{"totalPlays":3}` {
		t.Errorf("Get() after reopen = %q", got)
	}
}

func TestSQLiteStoreRequiresOpen(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "tracking.db"))

	if _, err := s.Get("k"); err == nil {
		t.Error("Get() on unopened store succeeded")
	}
	if err := s.Set("k", "v"); err == nil {
		t.Error("Set() on unopened store succeeded")
	}
}
