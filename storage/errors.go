package storage

import "errors"

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrHashMismatch = errors.New("storage: hash mismatch")
	ErrImmutable    = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
