package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/assistant/core"
)

// FileStore writes artifacts below a root directory, one file per artifact.
type FileStore struct {
	mu   sync.Mutex
	root string
}

var _ core.ArtifactStore = (*FileStore)(nil)

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create artifact directory %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the base directory.
func (f *FileStore) Root() string { return f.root }

// Save writes data to <root>/<owner>/<artifact>.
func (f *FileStore) Save(ownerID, artifactID string, data []byte) error {
	path, err := f.path(ownerID, artifactID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create owner directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Get reads an artifact back or returns ErrNotFound.
func (f *FileStore) Get(ownerID, artifactID string) ([]byte, error) {
	path, err := f.path(ownerID, artifactID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// List returns the sorted artifact ids of an owner.
func (f *FileStore) List(ownerID string) ([]string, error) {
	dir, err := f.path(ownerID, "")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an artifact or returns ErrNotFound.
func (f *FileStore) Delete(ownerID, artifactID string) error {
	path, err := f.path(ownerID, artifactID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

// path joins the components and rejects ids that escape the root.
func (f *FileStore) path(ownerID, artifactID string) (string, error) {
	for _, part := range []string{ownerID, artifactID} {
		if strings.Contains(part, "..") || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid artifact path component %q", part)
		}
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner id must not be empty")
	}
	return filepath.Join(f.root, ownerID, artifactID), nil
}
