package store

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

// ErrConflict is returned when a commit was based on a stale version of a collection.
var ErrConflict = errors.New("store: collection changed since it was read")

// ErrReadOnly is returned when a write is attempted inside View.
var ErrReadOnly = errors.New("store: write in read-only transaction")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Blob is a serialized collection. Version 0 means the collection was never written.
type Blob struct {
	Data    []byte
	Version int64
}

// Write replaces a whole collection. Version is the version the caller read;
// the backend stores Version+1 on success.
type Write struct {
	Name    string
	Data    []byte
	Version int64
}

// Backend persists serialized collections keyed by name.
type Backend interface {
	Load(ctx context.Context, name string) (Blob, error)
	// Commit applies all writes or none of them, failing with ErrConflict
	// when any write's Version no longer matches the stored one.
	Commit(ctx context.Context, writes []Write) error
	Close() error
}
