// Package kv provides the durable key-value storage used for DeBot's
// personality and per-user memory records.
//
// Every key carries a version that increases on each write. Callers that
// read, modify and write a record use CompareAndSwap (or the UpdateJSON
// helper) so that concurrent updates to the same key never silently drop
// one another.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("kv: key not found")
	// ErrConflict is returned by CompareAndSwap when the stored version
	// no longer matches the expected one.
	ErrConflict = errors.New("kv: version conflict")
	// ErrNoChange may be returned by an UpdateJSON mutation to skip the write.
	ErrNoChange = errors.New("kv: no change")
)

// Entry is a stored value together with its version.
type Entry struct {
	Key       string
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

// Store is the storage contract the core depends on.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Set writes value unconditionally and returns the new version.
	Set(ctx context.Context, key string, value []byte) (int64, error)

	// CompareAndSwap writes value only if the stored version equals version.
	// A version of 0 means the key must not exist yet. On success the new
	// version is returned; on mismatch ErrConflict.
	CompareAndSwap(ctx context.Context, key string, version int64, value []byte) (int64, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
