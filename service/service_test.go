package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/journal"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/settlement"
	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/memstore"
)

const (
	admin registry.Principal = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	alice registry.Principal = "SP3FBR2AGK5H9QBDH3EEN6DF8EK8JY7RX8QJ5SVTE"
)

func registration(hash []byte) registry.Registration {
	return registry.Registration{
		Hash:        hash,
		Title:       "Oral History of the Delta",
		Description: "Interviews, 1962",
		Category:    "history",
		Language:    "en",
		Format:      "AUDIO",
	}
}

func newService(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestService_RegisterSettlesFee(t *testing.T) {
	ctx := context.Background()
	ledger := settlement.NewLedger(map[registry.Principal]uint64{alice: 1000})
	metrics := NewMetrics(prometheus.NewRegistry())
	s := newService(t, Options{Settler: ledger, Metrics: metrics})

	require.NoError(t, s.SetAuthority(ctx, admin, admin))
	rcpt, err := s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint64(0), rcpt.ID)
	require.Equal(t, &registry.Transfer{Amount: 500, From: alice, To: admin}, rcpt.Transfer)

	require.Equal(t, uint64(500), ledger.Balance(alice))
	require.Equal(t, uint64(500), ledger.Balance(admin))

	m, ok := s.GetMaterial(0)
	require.True(t, ok)
	require.Equal(t, uint64(2), m.Timestamp, "heights advance once per mutating call")

	entries, err := s.Journal().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("register-material", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Materials))
	require.Equal(t, 500.0, testutil.ToFloat64(metrics.FeesSettled))
}

func TestService_SettlementFailureRejectsCommit(t *testing.T) {
	ctx := context.Background()
	ledger := settlement.NewLedger(map[registry.Principal]uint64{alice: 499})
	metrics := NewMetrics(nil)
	s := newService(t, Options{Settler: ledger, Metrics: metrics})
	require.NoError(t, s.SetAuthority(ctx, admin, admin))

	_, err := s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.True(t, registry.IsCode(err, registry.CodeCommitRejected))
	require.ErrorIs(t, err, settlement.ErrInsufficientFunds)

	require.Equal(t, uint64(0), s.MaterialCount())
	require.Equal(t, uint64(499), ledger.Balance(alice))
	entries, err := s.Journal().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("register-material", "commit-rejected")))
}

type failingJournal struct {
	journal.Journal
	err error
}

func (f failingJournal) Append(ctx context.Context, eff registry.Effect) (journal.Entry, error) {
	if eff.Op == registry.OpRegisterMaterial {
		return journal.Entry{}, f.err
	}
	return f.Journal.Append(ctx, eff)
}

func TestService_JournalFailureCompensatesTransfer(t *testing.T) {
	ctx := context.Background()
	ledger := settlement.NewLedger(map[registry.Principal]uint64{alice: 500})
	diskFull := errors.New("disk full")
	s := newService(t, Options{
		Settler: ledger,
		Journal: failingJournal{Journal: journal.NewMemory(), err: diskFull},
	})
	require.NoError(t, s.SetAuthority(ctx, admin, admin))

	_, err := s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.True(t, registry.IsCode(err, registry.CodeCommitRejected))
	require.ErrorIs(t, err, diskFull)

	require.Equal(t, uint64(500), ledger.Balance(alice))
	require.Equal(t, uint64(0), ledger.Balance(admin))
	require.Equal(t, uint64(0), s.MaterialCount())
}

func TestService_ArchiveAndRegister(t *testing.T) {
	ctx := context.Background()
	archive := memstore.New()
	s := newService(t, Options{Archive: archive})
	require.NoError(t, s.SetAuthority(ctx, admin, admin))

	data := []byte("%PDF-1.7 ...")
	reg := registration(nil)
	reg.Format = "PDF"
	rcpt, err := s.ArchiveAndRegister(ctx, alice, data, reg)
	require.NoError(t, err)

	m, ok := s.GetMaterial(rcpt.ID)
	require.True(t, ok)
	require.Equal(t, cidutil.Sum(data), m.ContentHash)
	got, err := s.Content(m.ContentHash)
	require.NoError(t, err)
	require.Equal(t, data, got)

	// Validation failures never reach the archive.
	other := []byte("second payload")
	bad := registration(nil)
	bad.Title = ""
	_, err = s.ArchiveAndRegister(ctx, alice, other, bad)
	require.True(t, registry.IsCode(err, registry.CodeInvalidTitle))
	require.False(t, archive.Has(cidutil.Sum(other)))
	_, err = s.Content(cidutil.Sum(other))
	require.ErrorIs(t, err, storage.ErrNotFound)

	// A supplied hash must match the payload.
	mismatched := registration(cidutil.Sum([]byte("something else")).Bytes())
	_, err = s.ArchiveAndRegister(ctx, alice, other, mismatched)
	require.True(t, registry.IsCode(err, registry.CodeInvalidHash))

	// Duplicates are rejected before the archive is touched.
	_, err = s.ArchiveAndRegister(ctx, alice, data, reg)
	require.True(t, registry.IsCode(err, registry.CodeMaterialAlreadyExists))
	require.Equal(t, 1, archive.Len())
}

func TestService_ArchiveAndRegister_CapacityBeforeHashMismatch(t *testing.T) {
	ctx := context.Background()
	archive := memstore.New()
	s := newService(t, Options{Archive: archive, Registry: &registry.Config{MaxMaterials: 0, RegistrationFee: 0}})

	_, err := s.ArchiveAndRegister(ctx, alice, []byte("payload"), registration([]byte{1}))
	require.True(t, registry.IsCode(err, registry.CodeMaxMaterialsExceeded), "got %v", err)
	require.Equal(t, 0, archive.Len())

	require.NoError(t, s.SetAuthority(ctx, admin, admin))
	require.NoError(t, s.SetMaxMaterials(ctx, admin, 1))
	_, err = s.ArchiveAndRegister(ctx, alice, []byte("payload"), registration([]byte{1}))
	require.True(t, registry.IsCode(err, registry.CodeInvalidHash), "got %v", err)
	require.Equal(t, 0, archive.Len())
}

func TestService_ReplayRestoresLedgerBalances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	seed := map[registry.Principal]uint64{alice: 1200}

	j, err := journal.OpenSQLite(ctx, path)
	require.NoError(t, err)
	s, err := New(ctx, Options{Journal: j, Settler: settlement.NewLedger(seed)})
	require.NoError(t, err)
	require.NoError(t, s.SetAuthority(ctx, admin, admin))
	_, err = s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.NoError(t, err)
	_, err = s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("b")).Bytes()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	j, err = journal.OpenSQLite(ctx, path)
	require.NoError(t, err)
	ledger := settlement.NewLedger(seed)
	restored := newService(t, Options{Journal: j, Settler: ledger})

	require.Equal(t, uint64(200), ledger.Balance(alice))
	require.Equal(t, uint64(1000), ledger.Balance(admin))
	require.Len(t, ledger.Transfers(), 2)

	// The restored balance is what gates the next registration.
	_, err = restored.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("c")).Bytes()))
	require.True(t, registry.IsCode(err, registry.CodeCommitRejected))
	require.ErrorIs(t, err, settlement.ErrInsufficientFunds)
}

func TestService_ReplaySkipsExternalSettlers(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	s, err := New(ctx, Options{Journal: j})
	require.NoError(t, err)
	require.NoError(t, s.SetAuthority(ctx, admin, admin))
	_, err = s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.NoError(t, err)

	calls := 0
	external := settlement.SettlerFunc(func(context.Context, registry.Transfer) error {
		calls++
		return nil
	})
	restored, err := New(ctx, Options{Journal: j, Settler: external})
	require.NoError(t, err)
	require.Equal(t, uint64(1), restored.MaterialCount())
	require.Zero(t, calls, "replay must not settle through an external settler")
}

func TestService_RestoresFromSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	cfg := &registry.Config{MaxMaterials: 5, RegistrationFee: 0}

	j, err := journal.OpenSQLite(ctx, path)
	require.NoError(t, err)
	s, err := New(ctx, Options{Journal: j, Registry: cfg})
	require.NoError(t, err)

	require.NoError(t, s.SetAuthority(ctx, admin, admin))
	rcpt, err := s.RegisterMaterial(ctx, alice, registration(cidutil.Sum([]byte("a")).Bytes()))
	require.NoError(t, err)
	require.Nil(t, rcpt.Transfer)
	require.NoError(t, s.UpdateMaterial(ctx, alice, 0, "Retitled", ""))
	require.NoError(t, s.DeactivateMaterial(ctx, alice, 0))
	before := s.Materials()
	require.NoError(t, s.Close())

	j, err = journal.OpenSQLite(ctx, path)
	require.NoError(t, err)
	restored := newService(t, Options{Journal: j, Registry: cfg})

	require.Equal(t, before, restored.Materials())
	require.Equal(t, admin, restored.Config().Authority)
	require.Equal(t, uint64(5), restored.Config().MaxMaterials)

	// The clock resumes after the last journaled height.
	require.NoError(t, restored.SetMaxMaterials(ctx, admin, 6))
	entries, err := restored.Journal().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, uint64(5), entries[4].Height)
	require.NoError(t, journal.Verify(entries))
}

func TestService_CanceledContext(t *testing.T) {
	s := newService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.SetAuthority(ctx, admin, admin), context.Canceled)
	require.False(t, s.Config().AuthoritySet())
}

func TestStepClock(t *testing.T) {
	c := NewStepClock(41)
	require.Equal(t, uint64(42), c.Now())
	require.Equal(t, uint64(43), c.Now())

	var fixed Clock = ClockFunc(func() uint64 { return 7 })
	require.Equal(t, uint64(7), fixed.Now())
}
