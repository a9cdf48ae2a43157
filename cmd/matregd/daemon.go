package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"xdao.co/matreg/config"
	"xdao.co/matreg/journal"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/service"
	"xdao.co/matreg/settlement"
	"xdao.co/matreg/storage/backends"
)

// BootstrapPrincipal is the caller recorded for the configured authority.
const BootstrapPrincipal registry.Principal = "bootstrap"

// openService builds the service described by cfg. The returned close
// function closes the journal and then the archive backends.
func openService(ctx context.Context, cfg config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*service.Service, func() error, error) {
	archive, closeArchive, err := cfg.Archive.Open(backends.UsageDaemon)
	if err != nil {
		return nil, nil, err
	}

	var j journal.Journal
	switch cfg.Journal.Driver {
	case config.JournalSQLite:
		j, err = journal.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			_ = closeArchive()
			return nil, nil, err
		}
	default:
		j = journal.NewMemory()
	}

	var settler settlement.Settler = &settlement.Recorder{}
	if cfg.Settlement.Mode == config.SettlementLedger {
		settler = settlement.NewLedger(cfg.Balances())
	}

	svc, err := service.New(ctx, service.Options{
		Registry: cfg.RegistryOptions(),
		Settler:  settler,
		Journal:  j,
		Archive:  archive,
		Logger:   logger,
		Metrics:  service.NewMetrics(reg),
	})
	if err != nil {
		_ = j.Close()
		_ = closeArchive()
		return nil, nil, err
	}
	closeAll := func() error {
		return errors.Join(svc.Close(), closeArchive())
	}

	if a := cfg.Registry.Authority; a != "" && !svc.Config().AuthoritySet() {
		if err := svc.SetAuthority(ctx, BootstrapPrincipal, registry.Principal(a)); err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("bootstrap authority: %w", err)
		}
	}
	return svc, closeAll, nil
}
