// Package bundle moves material payloads between archives as a deterministic TAR.
//
// A bundle holds one payloads/<cid> entry per distinct content hash and,
// optionally, an index.json describing the materials the payloads belong
// to. The index is informational: importing a bundle never registers
// anything, it only fills an archive.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
)

// FormatVersion is the current index schema version.
const FormatVersion = 1

const (
	indexName     = "index.json"
	payloadPrefix = "payloads/"
)

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// IncludeIndex controls whether index.json is written.
	IncludeIndex bool
	// SkipMissing leaves out materials whose payload is not archived instead
	// of failing. Skipped materials still appear in the index.
	SkipMissing bool
}

// Index is the decoded index.json of a bundle.
type Index struct {
	Version   int                 `json:"version"`
	Multihash string              `json:"multihash"`
	Materials []registry.Material `json:"materials"`
	Payloads  []Payload           `json:"payloads"`
}

// Payload describes one archived object in the bundle.
type Payload struct {
	CID  string        `json:"cid"`
	Hash registry.Hash `json:"hash"`
	Size int           `json:"size"`
}

// Export writes the payloads of materials from store to w.
//
// Output bytes depend only on the set of materials and the stored payloads:
// entries are sorted, materials are ordered by id and TAR headers are normalized.
func Export(w io.Writer, store storage.Store, materials []registry.Material, opts ExportOptions) error {
	if store == nil {
		return errors.New("bundle: nil store")
	}

	ms := append([]registry.Material(nil), materials...)
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })

	uniq := make(map[string]registry.Hash, len(ms))
	for _, m := range ms {
		uniq[cidutil.String(m.ContentHash)] = m.ContentHash
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	payloads := make([]Payload, 0, len(names))
	for _, name := range names {
		h := uniq[name]
		b, err := store.Get(h)
		if err != nil {
			if opts.SkipMissing && storage.IsNotFound(err) {
				continue
			}
			_ = tw.Close()
			return fmt.Errorf("bundle: payload %s: %w", h, err)
		}
		if cidutil.Sum(b) != h {
			_ = tw.Close()
			return storage.ErrHashMismatch
		}
		if err := writeFile(tw, payloadPrefix+name, b); err != nil {
			_ = tw.Close()
			return err
		}
		payloads = append(payloads, Payload{CID: name, Hash: h, Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := Index{
			Version:   FormatVersion,
			Multihash: "sha2-256",
			Materials: ms,
			Payloads:  payloads,
		}
		b, err := json.Marshal(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unknown TAR entries. The default fails closed.
	IgnoreUnknown bool
}

// Import reads a bundle from r, stores every payload into store and
// returns the bundle index (zero Index if the bundle has none).
func Import(r io.Reader, store storage.Store, opts ImportOptions) (Index, error) {
	var idx Index
	if store == nil {
		return idx, errors.New("bundle: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[registry.Hash]struct{}{}
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return idx, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return idx, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return idx, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == indexName {
			if err := json.NewDecoder(tr).Decode(&idx); err != nil {
				return idx, fmt.Errorf("bundle: decode index: %w", err)
			}
			if idx.Version != FormatVersion {
				return idx, fmt.Errorf("bundle: unsupported index version %d", idx.Version)
			}
			continue
		}

		if !strings.HasPrefix(name, payloadPrefix) {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return idx, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, payloadPrefix))
		if derr != nil {
			return idx, storage.ErrInvalidKey
		}
		want, herr := cidutil.ToHash(id)
		if herr != nil {
			return idx, storage.ErrInvalidKey
		}
		if _, dup := seen[want]; dup {
			return idx, fmt.Errorf("bundle: duplicate payload entry: %s", name)
		}
		seen[want] = struct{}{}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return idx, rerr
		}
		if cidutil.Sum(payload) != want {
			return idx, storage.ErrHashMismatch
		}
		got, perr := store.Put(payload)
		if perr != nil {
			return idx, perr
		}
		if got != want {
			return idx, storage.ErrHashMismatch
		}
	}
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
