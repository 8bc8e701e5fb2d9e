package crypt

import (
	"context"
	"sync"

	"github.com/vqmcore/queuecore/ports"
)

// MemoryKeyStore is an in-process ports.KeyStore, the default pairing for
// LocalProvider in development and single-process deployments.
// Production deployments should back KeyStore with the durable store and
// pair it with an external KeyProvider.
type MemoryKeyStore struct {
	mu    sync.Mutex
	items map[string]ports.KeyMetadata
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{items: make(map[string]ports.KeyMetadata)}
}

func (s *MemoryKeyStore) Put(_ context.Context, id string, metadata ports.KeyMetadata, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = metadata
	return nil
}

func (s *MemoryKeyStore) Get(_ context.Context, id string) ([]byte, ports.KeyMetadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	return nil, m, ok, nil
}

func (s *MemoryKeyStore) List(_ context.Context) ([]ports.KeyMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.KeyMetadata, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryKeyStore) SetStatus(_ context.Context, id string, status ports.KeyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return nil
	}
	m.Status = status
	s.items[id] = m
	return nil
}
