// Package artifacts persists generated artifact files (e.g. word-cloud
// images) and tracks the records that address them.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/pagelens/backend/internal/keys"
)

// Record addresses one stored artifact. It is the value held by the
// artifact cache tier; the janitor treats any file without a live Record
// as an orphan.
type Record struct {
	Key         keys.Key  `json:"key"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileInfo describes one file in the store.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store persists artifact bytes. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save writes data and returns the storage path it can be read
	// back from.
	Save(data []byte) (string, error)

	// Delete removes the file at path. Deleting a missing file is not
	// an error.
	Delete(path string) error

	// List returns every file currently in the store.
	List() ([]FileInfo, error)
}

// FSStore stores artifacts as files under a single directory, named by
// the hash of their content.
type FSStore struct {
	dir string
	ext string
}

// NewFSStore creates the store directory if needed. ext is the file
// extension given to saved artifacts, including the dot.
func NewFSStore(dir, ext string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts: empty store directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create dir: %w", err)
	}
	if ext == "" {
		ext = ".svg"
	}

	return &FSStore{dir: dir, ext: ext}, nil
}

// Save writes data to a content-named file. The write goes through a
// temp file and a rename so readers never observe a partial artifact.
func (s *FSStore) Save(data []byte) (string, error) {
	name := keys.FromBytes(data).Short() + s.ext
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("artifacts: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("artifacts: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("artifacts: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("artifacts: rename: %w", err)
	}

	return path, nil
}

// Delete removes the file at path if it lives inside the store directory.
func (s *FSStore) Delete(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("artifacts: path %q outside store", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifacts: delete: %w", err)
	}
	return nil
}

// List returns the store's files sorted oldest first, skipping
// in-progress temp files.
func (s *FSStore) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("artifacts: list: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

var _ Store = (*FSStore)(nil)
