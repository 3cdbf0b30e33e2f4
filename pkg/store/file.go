package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// FileStore keeps one JSON document per collection in a directory.
// Writes go to a temp file that is renamed over the old document, so a
// crash mid-save leaves the previous version intact.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewFile creates the directory if needed and returns a FileStore rooted there.
func NewFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("store: invalid collection name %q", collection)
	}
	return filepath.Join(s.dir, collection+".json"), nil
}

// Load reads a collection document. A missing file is an empty collection.
func (s *FileStore) Load(collection string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	p, err := s.path(collection)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // path built from validated collection name
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", collection, err)
	}
	out := map[string]json.RawMessage{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", collection, err)
	}
	return out, nil
}

// Save atomically replaces a collection document.
func (s *FileStore) Save(collection string, mapping map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	p, err := s.path(collection)
	if err != nil {
		return err
	}
	if mapping == nil {
		mapping = map[string]json.RawMessage{}
	}
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}

	tmp, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write %s: %w", collection, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("store: rename %s: %w", collection, err)
	}
	return nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
