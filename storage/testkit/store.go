// Package testkit holds the conformance suite every storage.Store backend must pass.
package testkit

import (
	"bytes"
	"testing"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
)

// NewStore constructs a fresh, empty Store for a test.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, material archive")

		h, err := s.Put(want)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if h != cidutil.Sum(want) {
			t.Fatalf("Put returned %s, want sha2-256 %s", h, cidutil.Sum(want))
		}

		got, err := s.Get(h)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		h1, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put #1: %v", err)
		}
		h2, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put #2: %v", err)
		}
		if h1 != h2 {
			t.Fatalf("hash changed: %s vs %s", h1, h2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		h := cidutil.Sum(b)

		if s.Has(h) {
			t.Fatalf("Has reported an object never stored")
		}
		if _, err := s.Get(h); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(b); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if !s.Has(h) {
			t.Fatalf("Has false after Put")
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Put(nil)
		if err != nil {
			t.Fatalf("Put(nil): %v", err)
		}
		if h != cidutil.Sum(nil) {
			t.Fatalf("Put(nil) returned %s", h)
		}

		got, err := s.Get(h)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty payload, got %d bytes", len(got))
		}
	})

	t.Run("ZeroHashAbsent", func(t *testing.T) {
		s := newStore(t)
		var zero registry.Hash
		if s.Has(zero) {
			t.Fatalf("Has(zero) = true")
		}
		if _, err := s.Get(zero); err == nil {
			t.Fatalf("Get(zero): expected error")
		}
	})
}
