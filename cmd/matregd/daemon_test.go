package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"xdao.co/matreg/config"
	"xdao.co/matreg/logging"
	"xdao.co/matreg/registry"
)

const authority = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

func TestOpenService_BootstrapsAuthorityOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg, err := config.Parse(`
[registry]
authority = "` + authority + `"
registration_fee = 10

[settlement]
mode = "ledger"

[settlement.balances]
alice = 25

[journal]
driver = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "journal.db")) + `"

[[archive.backends]]
name = "localfs"
options = { dir = "` + filepath.ToSlash(filepath.Join(dir, "archive")) + `" }
`)
	require.NoError(t, err)

	svc, closeFn, err := openService(ctx, cfg, logging.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.Equal(t, registry.Principal(authority), svc.Config().Authority)
	require.Equal(t, uint64(10), svc.Config().RegistrationFee)

	rcpt, err := svc.ArchiveAndRegister(ctx, "alice", []byte("payload"), registry.Registration{
		Title: "Ledger of 1701", Category: "archives", Language: "nl", Format: "PDF",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(10), rcpt.Transfer.Amount)
	require.NoError(t, closeFn())

	// Reopening restores from the journal; the bootstrap is not repeated.
	svc, closeFn, err = openService(ctx, cfg, logging.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	entries, err := svc.Journal().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, BootstrapPrincipal, entries[0].Caller)

	m, ok := svc.GetMaterial(0)
	require.True(t, ok)
	got, err := svc.Content(m.ContentHash)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	// The ledger is rebuilt from the journal: alice paid 10 of her 25 before
	// the restart, so one more fee fits and the next does not.
	reg := registry.Registration{Title: "Ledger of 1702", Category: "archives", Language: "nl", Format: "PDF"}
	_, err = svc.ArchiveAndRegister(ctx, "alice", []byte("second"), reg)
	require.NoError(t, err)
	reg.Title = "Ledger of 1703"
	_, err = svc.ArchiveAndRegister(ctx, "alice", []byte("third"), reg)
	require.True(t, registry.IsCode(err, registry.CodeCommitRejected), "got %v", err)
	require.Equal(t, uint64(2), svc.MaterialCount())
}

func TestOpenService_BadArchive(t *testing.T) {
	cfg, err := config.Parse("[[archive.backends]]\nname = \"nope\"\n")
	require.NoError(t, err)
	_, _, err = openService(context.Background(), cfg, logging.Nop(), nil)
	require.Error(t, err)
}

func TestRun_ListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"--list-backends"}, &out, &errOut), errOut.String())
	require.Contains(t, out.String(), "memory\t")
	require.Contains(t, out.String(), "localfs\t")
	require.Contains(t, out.String(), "grpc\t")
	require.Contains(t, out.String(), "ipfs\t")
}

func TestRun_BadConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 1, run([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, &out, &errOut))
	require.True(t, strings.HasPrefix(errOut.String(), "config:"))
}
