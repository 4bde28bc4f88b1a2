// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yai-labs/yai/lib/envelope"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEvidenceString(t *testing.T) {
	tests := []struct {
		command envelope.CommandID
		want    string
	}{
		{
			envelope.CommandStorageRPC,
			"effect=external;class=irreversible;target=unspecified;irreversible=true;authority=ok;intent=unspecified;risk=unspecified;mitigation=none",
		},
		{
			envelope.CommandProviderRPC,
			"effect=external;class=external;target=unspecified;irreversible=false;authority=ok;intent=unspecified;risk=unspecified;mitigation=none",
		},
	}
	for _, test := range tests {
		if got := New(test.command, "dev", "", at).String(); got != test.want {
			t.Errorf("%v evidence:\n got %s\nwant %s", test.command, got, test.want)
		}
	}
}

func TestLogAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev", "audit.cbor")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := New(envelope.CommandStorageRPC, "dev", "t-1", at)
	second := New(envelope.CommandProviderRPC, "dev", "t-2", at.Add(time.Second))
	for _, record := range []Evidence{first, second} {
		if err := log.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := log.Append(first); err == nil {
		t.Error("Append after Close succeeded")
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 || records[0] != first || records[1] != second {
		t.Errorf("records = %+v", records)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}
}

func TestLogReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.cbor")
	for i := 0; i < 2; i++ {
		log, err := Open(path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		log.Append(New(envelope.CommandProviderRPC, "dev", "", at))
		log.Close()
	}
	records, err := ReadAll(path)
	if err != nil || len(records) != 2 {
		t.Errorf("ReadAll = %d records, %v", len(records), err)
	}
}

func TestConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.cbor")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(New(envelope.CommandStorageRPC, "dev", "", at))
		}()
	}
	wg.Wait()
	log.Close()

	records, err := ReadAll(path)
	if err != nil || len(records) != 20 {
		t.Errorf("ReadAll = %d records, %v", len(records), err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "none.cbor"))
	if err != nil || records != nil {
		t.Errorf("ReadAll(missing) = %v, %v", records, err)
	}
}

func TestReadAllTruncatedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.cbor")
	log, _ := Open(path)
	log.Append(New(envelope.CommandStorageRPC, "dev", "", at))
	log.Close()

	data, _ := os.ReadFile(path)
	os.WriteFile(path, append(data, data[:len(data)/2]...), 0600)

	records, err := ReadAll(path)
	if err == nil {
		t.Error("ReadAll accepted a truncated record")
	}
	if len(records) != 1 {
		t.Errorf("records before the damage = %d, want 1", len(records))
	}
}
