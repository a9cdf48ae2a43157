package journal

import (
	"context"
	"sync"

	"xdao.co/matreg/registry"
)

// Memory is a volatile Journal.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

var _ Journal = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(ctx context.Context, eff registry.Effect) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Entry{}, ErrClosed
	}

	prev := GenesisHash
	if n := len(m.entries); n > 0 {
		prev = m.entries[n-1].Hash
	}
	e, err := newEntry(uint64(len(m.entries))+1, prev, eff)
	if err != nil {
		return Entry{}, err
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *Memory) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
