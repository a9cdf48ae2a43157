// Package journal is the append-only record of committed registry
// transitions.
//
// Each entry carries the effect that was committed, serialized as JSON, and
// is chained to its predecessor by a SHA-256 hash. A journal can be verified
// on its own and replayed into a fresh registry to rebuild state.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"xdao.co/matreg/registry"
)

// GenesisHash is the PrevHash of the first entry.
const GenesisHash = "genesis"

var (
	ErrBrokenChain = errors.New("journal: broken chain")
	ErrClosed      = errors.New("journal: closed")
)

// Entry is one committed transition.
type Entry struct {
	Seq      uint64             `json:"seq"`
	ID       uuid.UUID          `json:"id"`
	Op       registry.Op        `json:"op"`
	Caller   registry.Principal `json:"caller"`
	Height   uint64             `json:"height"`
	Payload  json.RawMessage    `json:"payload"`
	PrevHash string             `json:"prevHash"`
	Hash     string             `json:"hash"`
}

// Effect decodes the entry payload.
func (e Entry) Effect() (registry.Effect, error) {
	var eff registry.Effect
	if err := json.Unmarshal(e.Payload, &eff); err != nil {
		return registry.Effect{}, fmt.Errorf("journal: decode entry %d: %w", e.Seq, err)
	}
	return eff, nil
}

// Journal persists committed effects in commit order.
type Journal interface {
	Append(ctx context.Context, eff registry.Effect) (Entry, error)
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

func computeHash(seq uint64, op registry.Op, caller registry.Principal, height uint64, payload json.RawMessage, prev string) (string, error) {
	hashInput := struct {
		Seq      uint64             `json:"seq"`
		Op       registry.Op        `json:"op"`
		Caller   registry.Principal `json:"caller"`
		Height   uint64             `json:"height"`
		Payload  json.RawMessage    `json:"payload"`
		PrevHash string             `json:"prev"`
	}{seq, op, caller, height, payload, prev}

	raw, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("journal: marshal entry: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// newEntry builds the entry that follows (seq-1, prev) for eff.
func newEntry(seq uint64, prev string, eff registry.Effect) (Entry, error) {
	payload, err := json.Marshal(eff)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: marshal effect: %w", err)
	}
	h, err := computeHash(seq, eff.Op, eff.Call.Caller, eff.Call.Height, payload, prev)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Seq:      seq,
		ID:       uuid.New(),
		Op:       eff.Op,
		Caller:   eff.Call.Caller,
		Height:   eff.Call.Height,
		Payload:  payload,
		PrevHash: prev,
		Hash:     h,
	}, nil
}

// Verify checks sequence continuity and the hash chain of entries.
func Verify(entries []Entry) error {
	prev := GenesisHash
	for i, e := range entries {
		want := uint64(i) + 1
		if e.Seq != want {
			return fmt.Errorf("%w: entry %d has seq %d", ErrBrokenChain, want, e.Seq)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("%w: entry %d: expected prev %s, got %s", ErrBrokenChain, e.Seq, prev, e.PrevHash)
		}
		h, err := computeHash(e.Seq, e.Op, e.Caller, e.Height, e.Payload, e.PrevHash)
		if err != nil {
			return err
		}
		if h != e.Hash {
			return fmt.Errorf("%w: entry %d: content hash mismatch", ErrBrokenChain, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}

// LastHeight returns the highest call height in entries, or 0.
func LastHeight(entries []Entry) uint64 {
	var h uint64
	for _, e := range entries {
		if e.Height > h {
			h = e.Height
		}
	}
	return h
}
