// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool used by the
// storage collaborator.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection is
// prepared once with WAL journaling, NORMAL synchronous, a 5s busy
// timeout and in-memory temp storage, then the caller's schema script
// runs on it. Connections are not safe for concurrent use: each
// goroutine takes its own and puts it back, or uses [Pool.With].
package sqlitepool
