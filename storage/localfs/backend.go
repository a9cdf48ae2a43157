package localfs

import (
	"fmt"

	"github.com/spf13/pflag"

	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
)

var flagDir string

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "localfs",
		Description: "Local filesystem archive (directory)",
		Usage:       backends.UsageCLI | backends.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "LocalFS archive directory (for --archive=localfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagDir)
		},
		OpenWithOptions: func(opts map[string]string) (storage.Store, func() error, error) {
			return open(opts["dir"])
		},
	})
}

func open(dir string) (storage.Store, func() error, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("localfs: missing directory")
	}
	s, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}
