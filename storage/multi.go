package storage

import (
	"errors"

	"xdao.co/matreg/registry"
)

// MultiStore reads from several stores in a fixed order and writes to the first.
//
// Read order is the slice order in Stores; callers supply it explicitly so
// retrieval never depends on map iteration.
type MultiStore struct {
	Stores []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Put(bytes []byte) (registry.Hash, error) {
	if len(m.Stores) == 0 {
		return registry.Hash{}, errors.New("storage: MultiStore has no stores")
	}
	return m.Stores[0].Put(bytes)
}

func (m MultiStore) Get(h registry.Hash) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(h)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(h registry.Hash) bool {
	for _, s := range m.Stores {
		if s.Has(h) {
			return true
		}
	}
	return false
}
