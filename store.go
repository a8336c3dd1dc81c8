package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// MemoryStore is a Store over an in-process map. It does not survive
// restarts; use it for tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return "", ErrRecordNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// FileStore is a Store over a single JSON file, written atomically via a
// temp file and rename. It is the zero-infrastructure durable option.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore writing to path. The parent directory is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}

	value, ok := data[key]
	if !ok {
		return "", ErrRecordNotFound
	}
	return value, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	data[key] = value
	return s.write(data)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := data[key]; !ok {
		return nil
	}

	delete(data, key)
	return s.write(data)
}

func (s *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, goerrors.Wrap(err, ErrStorageFailure.Category, "failed to read session file").
			WithTextCode(TextCodeStorageFailure)
	}

	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, goerrors.Wrap(err, ErrStorageFailure.Category, "session file is corrupted").
			WithTextCode(TextCodeStorageFailure)
	}

	return data, nil
}

func (s *FileStore) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to encode session file").
			WithTextCode(TextCodeStorageFailure)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to create session directory").
			WithTextCode(TextCodeStorageFailure)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to write session file").
			WithTextCode(TextCodeStorageFailure)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return goerrors.Wrap(err, ErrStorageFailure.Category, "failed to replace session file").
			WithTextCode(TextCodeStorageFailure)
	}

	return nil
}
