package ipfs

import (
	"os"

	"github.com/spf13/pflag"

	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
)

var (
	flagBin  string
	flagPath string
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repo via the Kubo CLI (raw blocks)",
		Usage:       backends.UsageCLI | backends.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "Path to the ipfs binary (for --archive=ipfs)")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS_PATH for the repo; empty uses the environment (for --archive=ipfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagBin, flagPath), nil, nil
		},
		OpenWithOptions: func(opts map[string]string) (storage.Store, func() error, error) {
			return open(opts["bin"], opts["path"]), nil, nil
		},
	})
}

func open(bin, repo string) storage.Store {
	opts := Options{Bin: bin}
	if repo != "" {
		opts.Env = append(os.Environ(), "IPFS_PATH="+repo)
	}
	return New(opts)
}
