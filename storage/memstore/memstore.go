// Package memstore is an in-memory storage.Store.
package memstore

import (
	"bytes"
	"sync"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
)

// Store keeps payloads in a map. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[registry.Hash][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{objects: make(map[registry.Hash][]byte)}
}

func (s *Store) Put(data []byte) (registry.Hash, error) {
	h := cidutil.Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[h]; ok {
		if !bytes.Equal(existing, data) {
			return registry.Hash{}, storage.ErrImmutable
		}
		return h, nil
	}
	s.objects[h] = append([]byte(nil), data...)
	return h, nil
}

func (s *Store) Get(h registry.Hash) ([]byte, error) {
	s.mu.RLock()
	b, ok := s.objects[h]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	if cidutil.Sum(b) != h {
		return nil, storage.ErrHashMismatch
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Has(h registry.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[h]
	return ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
