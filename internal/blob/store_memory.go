package blob

import (
	"context"
	"sync"

	"neuramark/pkg/platform/sentinel"
)

// InMemoryStore keeps blobs in a map. It backs tests and local runs without MinIO.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	names map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		blobs: make(map[string][]byte),
		names: make(map[string]string),
	}
}

func (s *InMemoryStore) Put(_ context.Context, data []byte, name string) (string, error) {
	contentID, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[contentID]; !ok {
		s.blobs[contentID] = append([]byte(nil), data...)
		s.names[contentID] = name
	}
	return contentID, nil
}

func (s *InMemoryStore) Get(_ context.Context, contentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[contentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of distinct blobs held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
