package filestore

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/trezcool/learnspace/core"
)

type memoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ core.FileStore = (*memoryStore)(nil) // interface compliance check

func NewMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files[key] = data
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	if !ok {
		return nil, core.ErrFileNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

// Keys lists the stored keys.
func (s *memoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}
