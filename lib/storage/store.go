// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/sqlitepool"
)

const (
	CodeUnknownMethod = "ERR_UNKNOWN_METHOD"
	CodeNotFound      = "ERR_NOT_FOUND"
	CodeStorage       = "ERR_STORAGE"
)

// Schema is applied to every pooled connection.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	workspace  TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (workspace, key)
) WITHOUT ROWID;
`

// ErrKeyNotFound is returned by Get for an absent key.
var ErrKeyNotFound = errors.New("storage: key not found")

// Store is the STORAGE_RPC collaborator: a key/value table scoped by
// workspace.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// New wraps an open pool. The pool must have been opened with Schema.
func New(pool *sqlitepool.Pool, clk clock.Clock, logger *slog.Logger) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{pool: pool, clock: clk, logger: logger}
}

// Open opens the database at path and returns a store owning the pool.
func Open(path string, poolSize int, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: poolSize,
		Schema:   Schema,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return New(pool, clk, logger), nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Get returns the stored JSON value of key in workspace.
func (s *Store) Get(ctx context.Context, workspace, key string) (json.RawMessage, error) {
	var value json.RawMessage
	found := false
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM kv WHERE workspace = ? AND key = ?", &sqlitex.ExecOptions{
			Args: []any{workspace, key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = json.RawMessage(stmt.ColumnText(0))
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s/%s: %w", workspace, key, err)
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// Put stores value, which must be valid JSON, under key.
func (s *Store) Put(ctx context.Context, workspace, key string, value json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return fmt.Errorf("storage: put %s/%s: value is not JSON: %w", workspace, key, err)
	}
	now := s.clock.Now().UnixMilli()
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO kv (workspace, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (workspace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{workspace, key, compact.String(), now}})
	})
	if err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", workspace, key, err)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, workspace, key string) (bool, error) {
	deleted := false
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM kv WHERE workspace = ? AND key = ?", &sqlitex.ExecOptions{
			Args: []any{workspace, key},
		})
		deleted = conn.Changes() > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("storage: delete %s/%s: %w", workspace, key, err)
	}
	return deleted, nil
}

// List returns the keys of workspace starting with prefix, sorted.
func (s *Store) List(ctx context.Context, workspace, prefix string) ([]string, error) {
	keys := []string{}
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT key FROM kv
			WHERE workspace = ? AND substr(key, 1, length(?)) = ?
			ORDER BY key`,
			&sqlitex.ExecOptions{
				Args: []any{workspace, prefix, prefix},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					keys = append(keys, stmt.ColumnText(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s/%q: %w", workspace, prefix, err)
	}
	return keys, nil
}
