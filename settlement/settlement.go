// Package settlement executes the fee transfers the registry emits.
//
// The registry only decides that a transfer is owed and how much; a Settler
// carries it out. Ledger is an in-memory reference implementation with
// per-principal balances. Recorder accepts every instruction without
// checking anything, which matches optimistic emission.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"xdao.co/matreg/registry"
)

var (
	ErrInsufficientFunds = errors.New("settlement: insufficient funds")
	ErrInvalidTransfer   = errors.New("settlement: invalid transfer")
)

// Settler executes a transfer instruction.
type Settler interface {
	Settle(ctx context.Context, t registry.Transfer) error
}

// Reverser is implemented by settlers that can undo a settled transfer.
type Reverser interface {
	Reverse(ctx context.Context, t registry.Transfer) error
}

// Restorer is implemented by settlers whose state lives only in process
// memory. When a host replays its journal it hands every journaled transfer
// to Restore so the settler's state matches the journal again. Settlers
// backed by an external system must not implement it.
type Restorer interface {
	Restore(ctx context.Context, t registry.Transfer) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ctx context.Context, t registry.Transfer) error

func (f SettlerFunc) Settle(ctx context.Context, t registry.Transfer) error { return f(ctx, t) }

func validate(t registry.Transfer) error {
	if t.From == "" || t.To == "" {
		return fmt.Errorf("%w: empty principal", ErrInvalidTransfer)
	}
	if t.From == t.To {
		return fmt.Errorf("%w: %s pays itself", ErrInvalidTransfer, t.From)
	}
	return nil
}

// Ledger keeps balances in integer minor units. It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[registry.Principal]uint64
	history  []registry.Transfer
}

var (
	_ Settler  = (*Ledger)(nil)
	_ Reverser = (*Ledger)(nil)
	_ Restorer = (*Ledger)(nil)
)

// NewLedger returns a ledger seeded with the given balances.
func NewLedger(initial map[registry.Principal]uint64) *Ledger {
	l := &Ledger{balances: make(map[registry.Principal]uint64, len(initial))}
	for p, amt := range initial {
		l.balances[p] = amt
	}
	return l
}

// Credit adds amount to p's balance.
func (l *Ledger) Credit(p registry.Principal, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[p] += amount
}

// Balance returns p's balance. Unknown principals have zero.
func (l *Ledger) Balance(p registry.Principal) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[p]
}

// Settle moves t.Amount from t.From to t.To, or fails without changing balances.
func (l *Ledger) Settle(ctx context.Context, t registry.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(t); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[t.From] < t.Amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, t.From, l.balances[t.From], t.Amount)
	}
	l.balances[t.From] -= t.Amount
	l.balances[t.To] += t.Amount
	l.history = append(l.history, t)
	return nil
}

// Reverse settles the inverse of t.
func (l *Ledger) Reverse(ctx context.Context, t registry.Transfer) error {
	return l.Settle(ctx, t.Reverse())
}

// Restore re-applies a transfer settled in an earlier run. Replaying the
// journal over the same seed balances reproduces the balances it left.
func (l *Ledger) Restore(ctx context.Context, t registry.Transfer) error {
	return l.Settle(ctx, t)
}

// Transfers returns every settled transfer in order.
func (l *Ledger) Transfers() []registry.Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]registry.Transfer(nil), l.history...)
}

// Recorder accepts every transfer and keeps it for inspection.
type Recorder struct {
	mu        sync.Mutex
	transfers []registry.Transfer
}

var (
	_ Settler  = (*Recorder)(nil)
	_ Restorer = (*Recorder)(nil)
)

func (r *Recorder) Settle(_ context.Context, t registry.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, t)
	return nil
}

func (r *Recorder) Restore(ctx context.Context, t registry.Transfer) error { return r.Settle(ctx, t) }

// Transfers returns every recorded transfer in order.
func (r *Recorder) Transfers() []registry.Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]registry.Transfer(nil), r.transfers...)
}
