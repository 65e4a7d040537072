package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultConflictRetries bounds how often UpdateJSON re-reads after a conflict.
	DefaultConflictRetries  = 10
	conflictInitialInterval = 5 * time.Millisecond
	conflictMaxInterval     = 250 * time.Millisecond
)

// GetJSON loads key and decodes it into out. found is false when the key
// does not exist; out is left untouched in that case.
func GetJSON[T any](ctx context.Context, s Store, key string, out *T) (found bool, err error) {
	entry, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and writes it unconditionally.
func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	_, err = s.Set(ctx, key, data)
	return err
}

// UpdateJSON performs an optimistic read-modify-write of key.
//
// init supplies the value used when the key is absent. mutate may be called
// more than once: after a version conflict the record is re-read and mutate
// runs again on the fresh value. Returning ErrNoChange from mutate skips the
// write and UpdateJSON returns the unmodified value.
func UpdateJSON[T any](ctx context.Context, s Store, key string, init func() T, mutate func(*T) error) (T, error) {
	var result T

	op := func() error {
		var (
			value   T
			version int64
		)
		entry, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			value = init()
		case err != nil:
			return backoff.Permanent(err)
		default:
			if err := json.Unmarshal(entry.Value, &value); err != nil {
				return backoff.Permanent(fmt.Errorf("decode %q: %w", key, err))
			}
			version = entry.Version
		}

		if err := mutate(&value); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = value
				return nil
			}
			return backoff.Permanent(err)
		}

		data, err := json.Marshal(value)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode %q: %w", key, err))
		}
		if _, err := s.CompareAndSwap(ctx, key, version, data); err != nil {
			if errors.Is(err, ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = value
		return nil
	}

	if err := backoff.Retry(op, conflictBackoff(ctx)); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func conflictBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = conflictInitialInterval
	b.MaxInterval = conflictMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, DefaultConflictRetries), ctx)
}
