package storage

import (
	"fmt"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
)

// NamedStore associates a Store with a stable backend name for reporting.
type NamedStore struct {
	Name  string
	Store Store
}

// ReplicatingStore writes every payload to all backends and reads in order.
//
// A write succeeds only when every backend accepts it and reports the same
// hash; otherwise ErrHashMismatch is returned.
type ReplicatingStore struct {
	Backends []NamedStore
}

var _ Store = ReplicatingStore{}

// PutAll writes bytes to all backends and returns the expected hash plus
// the hash each backend reported.
func (r ReplicatingStore) PutAll(bytes []byte) (registry.Hash, map[string]registry.Hash, error) {
	if len(r.Backends) == 0 {
		return registry.Hash{}, nil, fmt.Errorf("storage: ReplicatingStore has no backends")
	}
	want := cidutil.Sum(bytes)

	out := make(map[string]registry.Hash, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return registry.Hash{}, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(bytes)
		if err != nil {
			return registry.Hash{}, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if got != want {
			return registry.Hash{}, out, ErrHashMismatch
		}
	}
	return want, out, nil
}

func (r ReplicatingStore) Put(bytes []byte) (registry.Hash, error) {
	h, _, err := r.PutAll(bytes)
	return h, err
}

func (r ReplicatingStore) Get(h registry.Hash) ([]byte, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(h)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r ReplicatingStore) Has(h registry.Hash) bool {
	for _, b := range r.Backends {
		if b.Store != nil && b.Store.Has(h) {
			return true
		}
	}
	return false
}
