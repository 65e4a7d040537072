package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
)

const tableName = "kv_store"

// SQLiteStore is a Store backed by the kv_store table.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a store on an already migrated database.
func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	logger = logger.With().Str("component", "kv_store").Logger()
	logger.Info().Msg("Initializing SQLite key-value store")
	return &SQLiteStore{db: db, logger: logger}
}

func now() int64 { return time.Now().Unix() }

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, error) {
	query, args, err := sq.Select("value", "version", "updated_at").
		From(tableName).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("build query: %w", err)
	}

	var (
		value     string
		version   int64
		updatedAt int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %q: %w", key, err)
	}

	s.logger.Trace().Str("key", key).Int64("version", version).Msg("get")
	return Entry{
		Key:       key,
		Value:     []byte(value),
		Version:   version,
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

// Set implements Store.Set.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) (int64, error) {
	ts := now()
	query, args, err := sq.Insert(tableName).
		Columns("key", "value", "version", "created_at", "updated_at").
		Values(key, string(value), 1, ts, ts).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = " + tableName + ".version + 1, updated_at = excluded.updated_at RETURNING version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var version int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("set %q: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int64("version", version).Msg("set")
	return version, nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, version int64, value []byte) (int64, error) {
	if version == 0 {
		return s.insertNew(ctx, key, value)
	}

	query, args, err := sq.Update(tableName).
		Set("value", string(value)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now()).
		Where(sq.Eq{"key": key, "version": version}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %q: %w", key, err)
	}
	if n == 0 {
		s.logger.Debug().Str("key", key).Int64("expected_version", version).Msg("version conflict")
		return 0, ErrConflict
	}
	return version + 1, nil
}

func (s *SQLiteStore) insertNew(ctx context.Context, key string, value []byte) (int64, error) {
	ts := now()
	query, args, err := sq.Insert(tableName).
		Columns("key", "value", "version", "created_at", "updated_at").
		Values(key, string(value), 1, ts, ts).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	// SQLite requires "OR IGNORE" to come after "INSERT"
	query = strings.Replace(query, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert %q: %w", key, err)
	}
	if n == 0 {
		s.logger.Debug().Str("key", key).Msg("key created concurrently")
		return 0, ErrConflict
	}
	return 1, nil
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete(tableName).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys implements Store.Keys.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := sq.Select("key").
		From(tableName).
		Where(sq.Like{"key": prefix + "%"}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		// LIKE treats '_' as a wildcard, so filter precisely here.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
