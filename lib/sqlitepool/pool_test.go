// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/yai-labs/yai/lib/sqlitepool"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS numbers (value INTEGER NOT NULL);
`

func openTestPool(t *testing.T, size int) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "nested", "test.db"),
		PoolSize: size,
		Schema:   testSchema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func TestPragmasApplied(t *testing.T) {
	pool := openTestPool(t, 2)

	err := pool.With(context.Background(), func(conn *sqlite.Conn) error {
		var journalMode string
		err := sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if journalMode != "wal" {
			t.Errorf("journal_mode = %q, want wal", journalMode)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
}

func TestSchemaOnEveryConnection(t *testing.T) {
	pool := openTestPool(t, 4)

	err := pool.With(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, "INSERT INTO numbers (value) VALUES (1), (2), (3), (4), (5);", nil)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	const readers = 8
	var wg sync.WaitGroup
	failures := make(chan error, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.With(context.Background(), func(conn *sqlite.Conn) error {
				var sum int64
				err := sqlitex.Execute(conn, "SELECT value FROM numbers", &sqlitex.ExecOptions{
					ResultFunc: func(stmt *sqlite.Stmt) error {
						sum += stmt.ColumnInt64(0)
						return nil
					},
				})
				if err == nil && sum != 15 {
					err = fmt.Errorf("sum = %d, want 15", sum)
				}
				return err
			})
			if err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestTakeAfterClose(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: filepath.Join(t.TempDir(), "closed.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := pool.Take(context.Background()); !errors.Is(err, sqlitepool.ErrClosed) {
		t.Fatalf("Take after Close = %v, want ErrClosed", err)
	}
}

func TestTakeCancelled(t *testing.T) {
	pool := openTestPool(t, 1)

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
