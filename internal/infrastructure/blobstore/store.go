package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read for a key that was never written.
var ErrNotFound = errors.New("blob not found")

// Store is a keyed blob store with last-write-wins semantics. Writes
// overwrite; nothing stronger than at-most-once overwrite is assumed
// by callers.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}
