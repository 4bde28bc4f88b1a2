// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/yai-labs/yai/lib/codec"
)

// Sink receives evidence records.
type Sink interface {
	Append(Evidence) error
}

// Discard is a Sink that drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Append(Evidence) error { return nil }

// Log appends evidence to a CBOR sequence file. Safe for concurrent
// use.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens path for appending, creating it and its directory with
// owner-only permissions.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: creating directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	return &Log{path: path, file: file}, nil
}

// Path is the file the log appends to.
func (l *Log) Path() string { return l.path }

// Append encodes record and writes it in a single write call so
// concurrent appenders cannot interleave partial records.
func (l *Log) Append(record Evidence) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: encoding evidence: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit: log closed")
	}
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("audit: writing %s: %w", l.path, err)
	}
	return nil
}

// Close syncs and closes the file. Idempotent.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(syncErr, closeErr)
}

// ReadAll decodes every record in the file at path. A missing file
// yields no records.
func ReadAll(path string) ([]Evidence, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	defer file.Close()

	var records []Evidence
	decoder := codec.NewDecoder(file)
	for {
		var record Evidence
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("audit: decoding record %d of %s: %w", len(records), path, err)
		}
		records = append(records, record)
	}
}
