// Package service hosts a Registry: it serializes mutating calls, stamps
// them with logical heights and makes settlement and journal durability
// preconditions of every commit.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/journal"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/settlement"
	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/memstore"
)

// Options configures New. Zero values select in-memory collaborators.
type Options struct {
	// Registry carries the initial MaxMaterials and RegistrationFee. Nil
	// selects the registry defaults.
	Registry *registry.Config

	Settler settlement.Settler
	Journal journal.Journal
	Archive storage.Store

	// Clock defaults to a StepClock resuming after the last journaled height.
	Clock   Clock
	Logger  zerolog.Logger
	Metrics *Metrics
}

// Service is the single writer for one Registry.
type Service struct {
	mu  sync.Mutex
	reg *registry.Registry

	settler settlement.Settler
	journal journal.Journal
	archive storage.Store
	clock   Clock
	log     zerolog.Logger
	metrics *Metrics

	// Set for the duration of one mutating call, under mu.
	callCtx   context.Context
	payload   []byte
	replaying bool
}

// New replays the journal into a fresh registry and returns the service.
func New(ctx context.Context, opts Options) (*Service, error) {
	s := &Service{
		settler: opts.Settler,
		journal: opts.Journal,
		archive: opts.Archive,
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if s.settler == nil {
		s.settler = &settlement.Recorder{}
	}
	if s.journal == nil {
		s.journal = journal.NewMemory()
	}
	if s.archive == nil {
		s.archive = memstore.New()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	regOpts := []registry.Option{registry.WithCommitGuard(s.guard)}
	if opts.Registry != nil {
		regOpts = append(regOpts, registry.WithConfig(*opts.Registry))
	}
	s.reg = registry.New(regOpts...)

	entries, err := s.journal.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: load journal: %w", err)
	}
	if err := journal.Verify(entries); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s.replaying, s.callCtx = true, ctx
	err = journal.Replay(ctx, entries, s.reg)
	s.replaying, s.callCtx = false, nil
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if s.clock == nil {
		s.clock = NewStepClock(journal.LastHeight(entries))
	}
	s.metrics.Materials.Set(float64(s.reg.MaterialCount()))

	s.log.Info().
		Int("entries", len(entries)).
		Uint64("materials", s.reg.MaterialCount()).
		Msg("registry restored")
	return s, nil
}

// guard runs inside the registry's atomic step. Order: archive the pending
// payload, settle the fee, append to the journal. A journal failure after
// settlement is compensated when the settler can reverse. During replay only
// in-memory settlers are brought back in line with the journal.
func (s *Service) guard(eff registry.Effect) error {
	if s.replaying {
		return s.restore(eff)
	}
	ctx := s.callCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if s.payload != nil && eff.Op == registry.OpRegisterMaterial {
		h, err := s.archive.Put(s.payload)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		if h != eff.Material.ContentHash {
			return fmt.Errorf("archive: stored %s, expected %s: %w", h, eff.Material.ContentHash, storage.ErrHashMismatch)
		}
	}

	if eff.Transfer != nil {
		if err := s.settler.Settle(ctx, *eff.Transfer); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}

	if _, err := s.journal.Append(ctx, eff); err != nil {
		err = fmt.Errorf("journal: %w", err)
		if eff.Transfer == nil {
			return err
		}
		rv, ok := s.settler.(settlement.Reverser)
		if !ok {
			s.log.Error().Err(err).Str("op", string(eff.Op)).Msg("transfer settled but not journaled; settler cannot reverse")
			return err
		}
		if rerr := rv.Reverse(context.WithoutCancel(ctx), *eff.Transfer); rerr != nil {
			s.log.Error().Err(rerr).Str("op", string(eff.Op)).Msg("compensating transfer failed")
			return errors.Join(err, fmt.Errorf("reverse: %w", rerr))
		}
		return err
	}

	if eff.Transfer != nil {
		s.metrics.FeesSettled.Add(float64(eff.Transfer.Amount))
	}
	return nil
}

func (s *Service) restore(eff registry.Effect) error {
	rs, ok := s.settler.(settlement.Restorer)
	if !ok || eff.Transfer == nil {
		return nil
	}
	if err := rs.Restore(s.callCtx, *eff.Transfer); err != nil {
		return fmt.Errorf("restore settlement: %w", err)
	}
	return nil
}

// mutate runs fn as one serialized call.
func (s *Service) mutate(ctx context.Context, op registry.Op, caller registry.Principal, fn func(registry.Call) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	call := registry.Call{Caller: caller, Height: s.clock.Now()}
	s.callCtx = ctx
	defer func() { s.callCtx, s.payload = nil, nil }()

	err := fn(call)
	s.observe(op, call, err)
	return err
}

func (s *Service) observe(op registry.Op, call registry.Call, err error) {
	outcome := "ok"
	if err != nil {
		if code := registry.CodeOf(err); code != 0 {
			outcome = code.Name()
		} else {
			outcome = "error"
		}
	}
	s.metrics.Transitions.WithLabelValues(string(op), outcome).Inc()
	s.metrics.Materials.Set(float64(s.reg.MaterialCount()))

	if err != nil {
		s.log.Debug().
			Str("op", string(op)).
			Str("caller", string(call.Caller)).
			Uint64("height", call.Height).
			Err(err).
			Msg("rejected")
		return
	}
	s.log.Info().
		Str("op", string(op)).
		Str("caller", string(call.Caller)).
		Uint64("height", call.Height).
		Msg("committed")
}

func (s *Service) SetAuthority(ctx context.Context, caller, candidate registry.Principal) error {
	return s.mutate(ctx, registry.OpSetAuthority, caller, func(call registry.Call) error {
		return s.reg.SetAuthority(call, candidate)
	})
}

func (s *Service) SetRegistrationFee(ctx context.Context, caller registry.Principal, fee uint64) error {
	return s.mutate(ctx, registry.OpSetRegistrationFee, caller, func(call registry.Call) error {
		return s.reg.SetRegistrationFee(call, fee)
	})
}

func (s *Service) SetMaxMaterials(ctx context.Context, caller registry.Principal, limit uint64) error {
	return s.mutate(ctx, registry.OpSetMaxMaterials, caller, func(call registry.Call) error {
		return s.reg.SetMaxMaterials(call, limit)
	})
}

func (s *Service) RegisterMaterial(ctx context.Context, caller registry.Principal, reg registry.Registration) (registry.Receipt, error) {
	var rcpt registry.Receipt
	err := s.mutate(ctx, registry.OpRegisterMaterial, caller, func(call registry.Call) error {
		var err error
		rcpt, err = s.reg.RegisterMaterial(call, reg)
		return err
	})
	return rcpt, err
}

// ArchiveAndRegister registers data under its SHA-256 hash and stores it in
// the archive in the same commit. The payload is written only once
// registration has passed validation. A non-empty reg.Hash that disagrees
// with data is an invalid-hash error, reported after the capacity check.
func (s *Service) ArchiveAndRegister(ctx context.Context, caller registry.Principal, data []byte, reg registry.Registration) (registry.Receipt, error) {
	h := cidutil.Sum(data)
	mismatch := len(reg.Hash) != 0 && !bytes.Equal(reg.Hash, h[:])
	reg.Hash = h.Bytes()

	var rcpt registry.Receipt
	err := s.mutate(ctx, registry.OpRegisterMaterial, caller, func(call registry.Call) error {
		if mismatch {
			if c := s.reg.Config(); c.NextMaterialID >= c.MaxMaterials {
				return registry.NewError(registry.CodeMaxMaterialsExceeded, fmt.Sprintf("registry is full (%d materials)", c.MaxMaterials))
			}
			return registry.NewError(registry.CodeInvalidHash, "hash does not match payload")
		}
		s.payload = data
		if s.payload == nil {
			s.payload = []byte{}
		}
		var err error
		rcpt, err = s.reg.RegisterMaterial(call, reg)
		return err
	})
	return rcpt, err
}

func (s *Service) UpdateMaterial(ctx context.Context, caller registry.Principal, id uint64, title, description string) error {
	return s.mutate(ctx, registry.OpUpdateMaterial, caller, func(call registry.Call) error {
		return s.reg.UpdateMaterial(call, id, title, description)
	})
}

func (s *Service) DeactivateMaterial(ctx context.Context, caller registry.Principal, id uint64) error {
	return s.mutate(ctx, registry.OpDeactivateMaterial, caller, func(call registry.Call) error {
		return s.reg.DeactivateMaterial(call, id)
	})
}

func (s *Service) GetMaterial(id uint64) (registry.Material, bool) { return s.reg.GetMaterial(id) }

func (s *Service) GetMaterialByHash(h registry.Hash) (registry.Material, bool) {
	return s.reg.GetMaterialByHash(h)
}

func (s *Service) VerifyMaterial(h registry.Hash) (registry.Material, error) {
	return s.reg.VerifyMaterial(h)
}

func (s *Service) MaterialCount() uint64 { return s.reg.MaterialCount() }

func (s *Service) Config() registry.Config { return s.reg.Config() }

// Materials returns every material in id order.
func (s *Service) Materials() []registry.Material {
	n := s.reg.MaterialCount()
	out := make([]registry.Material, 0, n)
	for id := uint64(0); id < n; id++ {
		if m, ok := s.reg.GetMaterial(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// Content returns the archived payload of h.
func (s *Service) Content(h registry.Hash) ([]byte, error) {
	return s.archive.Get(h)
}

// Archive returns the content store.
func (s *Service) Archive() storage.Store { return s.archive }

// Journal returns the transition journal.
func (s *Service) Journal() journal.Journal { return s.journal }

// Close closes the journal.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Close()
}
