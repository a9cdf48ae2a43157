package grpcstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/backends"
)

var (
	flagTarget      string
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func init() {
	backends.MustRegister(backends.Backend{
		Name:        "grpc",
		Description: "Remote archive served by matregd over gRPC",
		Usage:       backends.UsageCLI | backends.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-archive-target", "", "gRPC archive host:port (for --archive=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-archive-timeout", 0, "Per-RPC timeout (for --archive=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-archive-max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagTarget, flagTimeout, flagMaxMsgBytes)
		},
		OpenWithOptions: func(opts map[string]string) (storage.Store, func() error, error) {
			var (
				timeout time.Duration
				maxMsg  int
				err     error
			)
			if v := opts["timeout"]; v != "" {
				if timeout, err = time.ParseDuration(v); err != nil {
					return nil, nil, fmt.Errorf("grpc archive: timeout: %w", err)
				}
			}
			if v := opts["max_msg_bytes"]; v != "" {
				if maxMsg, err = strconv.Atoi(v); err != nil {
					return nil, nil, fmt.Errorf("grpc archive: max_msg_bytes: %w", err)
				}
			}
			return open(opts["target"], timeout, maxMsg)
		},
	})
}

func open(target string, timeout time.Duration, maxMsg int) (storage.Store, func() error, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil, fmt.Errorf("grpc archive: missing target")
	}
	client, err := Dial(target, DialOptions{MaxMsgBytes: maxMsg})
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = timeout
	return client, client.Close, nil
}
