package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// MemoryStore keeps values in process memory. Used by tests and by
// one-shot commands that should not persist anything.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[Key]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[Key]string)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key], nil
}

func (s *MemoryStore) Set(_ context.Context, values map[Key]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if v == "" {
			delete(s.m, k)
			continue
		}
		s.m[k] = v
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[Key]string)
	return nil
}

// FileStore keeps values in a single JSON document. Writes go to a temp
// file that is renamed over the target, so a reader sees either the old
// or the new session.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store at path on fsys. A nil fsys means the OS filesystem.
func NewFileStore(fsys afero.Fs, path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileStore{fs: fsys, path: path}, nil
}

func (s *FileStore) Get(_ context.Context, key Key) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return "", err
	}
	return m[key], nil
}

func (s *FileStore) Set(_ context.Context, values map[Key]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		if v == "" {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	return s.write(m)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) read() (map[Key]string, error) {
	m := make(map[Key]string)
	b, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.New("session file is corrupt; run logout to reset it")
	}
	return m, nil
}

func (s *FileStore) write(m map[Key]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, b, 0o600); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}
