// Package ipfs is an archive backend that shells out to the local Kubo
// "ipfs" CLI. It works offline against the local repo and does not need a
// daemon.
//
// Payloads are stored as raw blocks with CIDv1 + sha2-256, so the block CID
// is the material's content hash. Bytes returned by the CLI are always
// re-hashed before use.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
)

// Store is an archive backed by the ipfs binary.
type Store struct {
	bin string
	env []string
}

var _ storage.Store = (*Store)(nil)

type Options struct {
	// Bin is the path to the ipfs binary. If empty, "ipfs" is used.
	Bin string
	// Env optionally overrides the command environment (e.g. to set IPFS_PATH).
	// If nil, the process environment is used.
	Env []string
}

func New(opts Options) *Store {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &Store{bin: bin, env: opts.Env}
}

func (s *Store) Put(data []byte) (registry.Hash, error) {
	want := cidutil.Sum(data)

	out, err := s.run(data,
		"block", "put",
		"--quiet",
		"--format=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return registry.Hash{}, err
	}

	id, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return registry.Hash{}, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	got, err := cidutil.ToHash(id)
	if err != nil || got != want {
		return registry.Hash{}, storage.ErrHashMismatch
	}
	return want, nil
}

func (s *Store) Get(h registry.Hash) ([]byte, error) {
	out, err := s.run(nil, "block", "get", cidutil.String(h))
	if err != nil {
		if isLikelyNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if cidutil.Sum(out) != h {
		return nil, storage.ErrHashMismatch
	}
	return out, nil
}

func (s *Store) Has(h registry.Hash) bool {
	_, err := s.run(nil, "block", "stat", cidutil.String(h))
	return err == nil
}

func (s *Store) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(s.bin, args...)
	if s.env != nil {
		cmd.Env = s.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		msg := strings.TrimSpace(string(ee.Stderr))
		if msg == "" {
			return nil, fmt.Errorf("ipfs: %v", err)
		}
		return nil, fmt.Errorf("ipfs: %s", msg)
	}
	return nil, err
}

func isLikelyNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}
