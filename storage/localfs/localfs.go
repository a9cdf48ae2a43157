// Package localfs is a filesystem-backed storage.Store.
package localfs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
)

// Store keeps each payload in its own read-only file named by its CID.
//
// Files live under <root>/<first two hex digits of the hash>/<cid>. The
// store never rewrites an existing file; a file whose bytes no longer match
// its name is reported as ErrHashMismatch on read and ErrImmutable on write.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New constructs a filesystem store rooted at root. The directory is created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the store's directory.
func (s *Store) Root() string { return s.root }

func (s *Store) Put(data []byte) (registry.Hash, error) {
	h := cidutil.Sum(data)

	path := s.pathFor(h)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return registry.Hash{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := os.ReadFile(path)
			if rerr != nil || !bytes.Equal(existing, data) {
				return registry.Hash{}, storage.ErrImmutable
			}
			return h, nil
		}
		return registry.Hash{}, err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return registry.Hash{}, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return registry.Hash{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return registry.Hash{}, err
	}
	return h, nil
}

func (s *Store) Get(h registry.Hash) ([]byte, error) {
	b, err := os.ReadFile(s.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if cidutil.Sum(b) != h {
		return nil, storage.ErrHashMismatch
	}
	return b, nil
}

func (s *Store) Has(h registry.Hash) bool {
	_, err := os.Stat(s.pathFor(h))
	return err == nil
}

func (s *Store) pathFor(h registry.Hash) string {
	return filepath.Join(s.root, h.String()[:2], cidutil.String(h))
}
