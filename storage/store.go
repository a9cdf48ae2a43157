// Package storage defines the content archive for material payloads.
//
// The archive holds the bytes a material's content hash was computed from.
// It is optional: the registry only records hashes, and a registration never
// requires the payload to be archived.
package storage

import "xdao.co/matreg/registry"

// Store is a content-addressable store keyed by the sha2-256 of the stored bytes.
//
// Contract:
// - Put MUST be idempotent and MUST return the sha2-256 of bytes.
// - Stored objects MUST be immutable.
// - Get MUST verify the returned bytes hash to the requested key.
// - Get MUST return ErrNotFound when the key is absent.
type Store interface {
	Put(bytes []byte) (registry.Hash, error)
	Get(h registry.Hash) ([]byte, error)
	Has(h registry.Hash) bool
}
