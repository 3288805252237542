package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStore_SaveAndList(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), ".svg")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	path, err := store.Save([]byte("<svg>one</svg>"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(path, ".svg") {
		t.Errorf("Expected .svg extension, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(data) != "<svg>one</svg>" {
		t.Errorf("Unexpected file contents: %s", data)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	if files[0].Path != path {
		t.Errorf("Expected listed path %s, got %s", path, files[0].Path)
	}
	if files[0].Size != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), files[0].Size)
	}
}

func TestFSStore_SaveIsContentAddressed(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), ".svg")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	p1, err := store.Save([]byte("same bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	p2, err := store.Save([]byte("same bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p1 != p2 {
		t.Errorf("Expected identical content to share a path, got %s and %s", p1, p2)
	}

	p3, err := store.Save([]byte("different bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p3 == p1 {
		t.Error("Expected different content to get a different path")
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(files))
	}
}

func TestFSStore_Delete(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), ".svg")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	path, err := store.Save([]byte("<svg>gone</svg>"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}

	// Deleting a missing file is not an error
	if err := store.Delete(path); err != nil {
		t.Errorf("Expected missing-file delete to be a no-op, got: %v", err)
	}
}

func TestFSStore_DeleteRejectsOutsidePaths(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(filepath.Join(dir, "store"), ".svg")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	outside := filepath.Join(dir, "victim.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("Failed to write victim file: %v", err)
	}

	for _, p := range []string{
		outside,
		filepath.Join(dir, "store", "..", "victim.txt"),
		"/etc/hosts",
	} {
		if err := store.Delete(p); err == nil {
			t.Errorf("Expected delete of %q to be rejected", p)
		}
	}

	if _, err := os.Stat(outside); err != nil {
		t.Errorf("Expected victim file to survive: %v", err)
	}
}

func TestFSStore_ListSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, ".svg")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := store.Save([]byte("real")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Simulate an interrupted save
	if err := os.WriteFile(filepath.Join(dir, ".tmp-12345"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected temp file to be skipped, got %d files", len(files))
	}
}

func TestNewFSStore_EmptyDir(t *testing.T) {
	if _, err := NewFSStore("", ".svg"); err == nil {
		t.Error("Expected error for empty directory")
	}
}
