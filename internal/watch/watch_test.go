package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediadex/internal/config"
	"mediadex/internal/logger"
)

func TestChangedSince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte("id,title_name\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewService(nil, config.Config{}, logger.Nop())

	changed, modTime, err := s.changedSince(path)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("first sighting should count as changed")
	}
	s.lastSeen[path] = modTime

	changed, _, err = s.changedSince(path)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("unchanged file flagged as changed")
	}

	later := modTime.Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	changed, _, err = s.changedSince(path)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("newer mtime not detected")
	}
}

func TestChangedSinceMissingFile(t *testing.T) {
	s := NewService(nil, config.Config{}, logger.Nop())
	if _, _, err := s.changedSince(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected stat error for missing file")
	}
}
