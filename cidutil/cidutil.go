// Package cidutil converts between registry content hashes and CIDs.
//
// A material content hash is a bare 32-byte sha2-256 digest. Its CID form is
// CIDv1 with the "raw" multicodec, which is what the archive uses for paths
// and what the CLI prints next to the hex digest.
package cidutil

import (
	"crypto/sha256"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/matreg/registry"
)

// Sum returns the content hash of data.
func Sum(data []byte) registry.Hash {
	return registry.Hash(sha256.Sum256(data))
}

// FromHash wraps a content hash in a CIDv1 (raw + sha2-256).
func FromHash(h registry.Hash) cid.Cid {
	mh, err := multihash.Encode(h[:], multihash.SHA2_256)
	if err != nil {
		// Encode only fails for unknown codes or oversize digests.
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// String is FromHash(h).String().
func String(h registry.Hash) string {
	return FromHash(h).String()
}

// ToHash extracts the content hash from a CID. The CID must carry a
// sha2-256 multihash; the codec is not checked.
func ToHash(id cid.Cid) (registry.Hash, error) {
	if !id.Defined() {
		return registry.Hash{}, fmt.Errorf("cidutil: undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return registry.Hash{}, fmt.Errorf("cidutil: decode multihash: %w", err)
	}
	if dec.Code != multihash.SHA2_256 {
		return registry.Hash{}, fmt.Errorf("cidutil: unsupported multihash %s", multihash.Codes[dec.Code])
	}
	h, ok := registry.HashFromBytes(dec.Digest)
	if !ok {
		return registry.Hash{}, fmt.Errorf("cidutil: digest is %d bytes", len(dec.Digest))
	}
	return h, nil
}

// Parse accepts either a 64-character hex digest or a CID string.
func Parse(s string) (registry.Hash, error) {
	if h, err := registry.ParseHash(s); err == nil {
		return h, nil
	}
	id, err := cid.Decode(s)
	if err != nil {
		return registry.Hash{}, fmt.Errorf("cidutil: %q is neither a hex digest nor a cid", s)
	}
	return ToHash(id)
}
