package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/matreg/registry"
)

func TestLedger_Settle(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(map[registry.Principal]uint64{"payer": 700})

	require.NoError(t, l.Settle(ctx, registry.Transfer{Amount: 500, From: "payer", To: "authority"}))
	require.Equal(t, uint64(200), l.Balance("payer"))
	require.Equal(t, uint64(500), l.Balance("authority"))

	err := l.Settle(ctx, registry.Transfer{Amount: 500, From: "payer", To: "authority"})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(200), l.Balance("payer"))
	require.Len(t, l.Transfers(), 1)
}

func TestLedger_InvalidTransfers(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	require.ErrorIs(t, l.Settle(ctx, registry.Transfer{Amount: 1, From: "", To: "x"}), ErrInvalidTransfer)
	require.ErrorIs(t, l.Settle(ctx, registry.Transfer{Amount: 1, From: "x", To: "x"}), ErrInvalidTransfer)

	// Zero amounts need no funds.
	require.NoError(t, l.Settle(ctx, registry.Transfer{Amount: 0, From: "x", To: "y"}))
}

func TestLedger_ReverseAndCancel(t *testing.T) {
	l := NewLedger(map[registry.Principal]uint64{"payer": 10})
	tr := registry.Transfer{Amount: 10, From: "payer", To: "authority"}
	require.NoError(t, l.Settle(context.Background(), tr))
	require.NoError(t, l.Reverse(context.Background(), tr))
	require.Equal(t, uint64(10), l.Balance("payer"))
	require.Equal(t, uint64(0), l.Balance("authority"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Settle(ctx, tr), context.Canceled)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	tr := registry.Transfer{Amount: 500, From: "a", To: "b"}
	require.NoError(t, r.Settle(context.Background(), tr))
	require.Equal(t, []registry.Transfer{tr}, r.Transfers())

	var s Settler = SettlerFunc(func(context.Context, registry.Transfer) error { return nil })
	require.NoError(t, s.Settle(context.Background(), tr))
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	tr := registry.Transfer{Amount: 300, From: "payer", To: "authority"}

	l := NewLedger(map[registry.Principal]uint64{"payer": 500})
	var rs Restorer = l
	require.NoError(t, rs.Restore(ctx, tr))
	require.Equal(t, uint64(200), l.Balance("payer"))
	require.Equal(t, uint64(300), l.Balance("authority"))
	require.ErrorIs(t, rs.Restore(ctx, tr), ErrInsufficientFunds)

	var r Recorder
	require.NoError(t, r.Restore(ctx, tr))
	require.Equal(t, []registry.Transfer{tr}, r.Transfers())

	_, ok := Settler(SettlerFunc(nil)).(Restorer)
	require.False(t, ok)
}
