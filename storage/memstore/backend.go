package memstore

import (
	"github.com/spf13/pflag"

	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
)

func init() {
	open := func() (storage.Store, func() error, error) { return New(), nil, nil }
	backends.MustRegister(backends.Backend{
		Name:          "memory",
		Description:   "In-memory archive (lost on exit)",
		Usage:         backends.UsageCLI | backends.UsageDaemon,
		RegisterFlags: func(*pflag.FlagSet) {},
		Open:          open,
		OpenWithOptions: func(map[string]string) (storage.Store, func() error, error) {
			return open()
		},
	})
}
