package config

import (
	"errors"
	"fmt"

	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
)

const (
	// WriteFirst writes only to the first backend; reads fall back in order.
	WriteFirst = "first"
	// WriteAll writes to every backend and requires equal hashes.
	WriteAll = "all"
)

// ArchiveConfig selects the content archive backends.
//
// Backends must be linked into the binary (blank imports) to be opened.
//
//	[archive]
//	write_policy = "all"
//
//	[[archive.backends]]
//	name = "localfs"
//	options = { dir = "/var/lib/matreg/archive" }
//
//	[[archive.backends]]
//	name = "grpc"
//	id = "mirror"
//	options = { target = "mirror:7070", timeout = "5s" }
type ArchiveConfig struct {
	WritePolicy string          `toml:"write_policy"`
	Backends    []BackendConfig `toml:"backends"`
}

type BackendConfig struct {
	// Name is the registered backend name (e.g. "memory", "localfs", "grpc").
	Name string `toml:"name"`
	// ID is an optional alias used in per-backend results. Defaults to Name.
	ID      string            `toml:"id"`
	Options map[string]string `toml:"options"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c ArchiveConfig) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("config: archive needs at least one backend")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("config: archive backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("config: duplicate archive backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("config: invalid archive.write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend in order and combines them per WritePolicy.
// The returned close function closes the backends in reverse order.
func (c ArchiveConfig) Open(usage backends.Usage) (storage.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedStore, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Backends {
		s, closeFn, err := backends.OpenWithOptions(b.Name, usage, b.Options)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("config: archive backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedStore{Name: b.id(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return storage.ReplicatingStore{Backends: named}, closeAll, nil
	}
	stores := make([]storage.Store, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return storage.MultiStore{Stores: stores}, closeAll, nil
}
