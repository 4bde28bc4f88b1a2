// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createVault(t *testing.T, plane Plane, quota uint64) (*Vault, string) {
	t.Helper()
	dir := t.TempDir()
	v, err := Create(dir, "dev", plane, quota)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v, dir
}

func TestSegmentName(t *testing.T) {
	if got := SegmentName("dev", PlaneCore); got != "yai_vault_dev" {
		t.Errorf("core segment = %q", got)
	}
	if got := SegmentName("dev", PlaneBrain); got != "yai_vault_dev_brain" {
		t.Errorf("brain segment = %q", got)
	}
}

func TestCreateInitializesRecord(t *testing.T) {
	v, dir := createVault(t, PlaneBrain, 500)

	info, err := os.Stat(filepath.Join(dir, "yai_vault_dev_brain"))
	if err != nil {
		t.Fatalf("segment file: %v", err)
	}
	if info.Size() != RecordSize {
		t.Errorf("segment size = %d, want %d", info.Size(), RecordSize)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("segment mode = %v, want 0600", info.Mode().Perm())
	}

	raw := v.Bytes()
	if binary.LittleEndian.Uint32(raw[0:]) != Magic {
		t.Errorf("magic = %#x", binary.LittleEndian.Uint32(raw[0:]))
	}
	if string(raw[0:4]) != "YVLT" {
		t.Errorf("magic bytes = %q", raw[0:4])
	}
	if binary.LittleEndian.Uint64(raw[16:]) != 500 {
		t.Errorf("quota bytes = %d", binary.LittleEndian.Uint64(raw[16:]))
	}
	if string(raw[72:75]) != "dev" || string(raw[136:141]) != "brain" {
		t.Errorf("identity fields = %q %q", raw[72:75], raw[136:141])
	}

	snapshot := v.Snapshot()
	if snapshot.Status != StatusPreboot || snapshot.AuthorityLock || snapshot.CommandSeq != 0 {
		t.Errorf("fresh snapshot = %+v", snapshot)
	}
	if snapshot.WorkspaceID != "dev" || snapshot.Plane != PlaneBrain {
		t.Errorf("identity = %q/%q", snapshot.WorkspaceID, snapshot.Plane)
	}
}

func TestCreateTruncatesExisting(t *testing.T) {
	v, dir := createVault(t, PlaneCore, 10)
	v.SetStatus(StatusRunning)
	v.SetResponse("stale")
	v.Close()

	fresh, err := Create(dir, "dev", PlaneCore, 20)
	if err != nil {
		t.Fatalf("Create again: %v", err)
	}
	defer fresh.Close()
	if fresh.Status() != StatusPreboot || fresh.Response() != "" || fresh.EnergyQuota() != 20 {
		t.Errorf("recreated vault not reinitialized: %+v", fresh.Snapshot())
	}
}

func TestCreateRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	for _, ws := range []string{"", "a/b", strings.Repeat("w", WorkspaceIDSize)} {
		if _, err := Create(dir, ws, PlaneCore, 1); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidName", ws, err)
		}
	}
	if _, err := Create(dir, "dev", Plane(strings.Repeat("p", PlaneSize)), 1); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long plane error = %v", err)
	}
}

func TestCreateAllocationFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(filepath.Join(blocker, "sub"), "dev", PlaneCore, 1); !errors.Is(err, ErrAllocation) {
		t.Errorf("error = %v, want ErrAllocation", err)
	}
}

func TestAttachSharesState(t *testing.T) {
	owner, dir := createVault(t, PlaneCore, 100)

	observer, err := Attach(dir, "dev", PlaneCore)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer observer.Close()

	owner.SetStatus(StatusReady)
	owner.SetResponse("PONG")
	owner.SetLocked(true)

	if observer.Status() != StatusReady || observer.Response() != "PONG" || !observer.Locked() {
		t.Errorf("observer sees %+v", observer.Snapshot())
	}
}

func TestAttachErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Attach(dir, "ghost", PlaneCore); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing segment error = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(SegmentPath(dir, "short", PlaneCore), make([]byte, 100), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Attach(dir, "short", PlaneCore); !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("wrong size error = %v, want ErrLayoutMismatch", err)
	}

	if err := os.WriteFile(SegmentPath(dir, "zeroed", PlaneCore), make([]byte, RecordSize), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Attach(dir, "zeroed", PlaneCore); !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("bad magic error = %v, want ErrLayoutMismatch", err)
	}
}

func TestStringFieldsTruncate(t *testing.T) {
	v, _ := createVault(t, PlaneCore, 1)

	v.SetLastError(strings.Repeat("e", 400))
	if got := len(v.LastError()); got != LastErrorSize-1 {
		t.Errorf("last_error length = %d, want %d", got, LastErrorSize-1)
	}
	v.SetLastError("short")
	if v.LastError() != "short" {
		t.Errorf("shorter write left residue: %q", v.LastError())
	}
	v.SetResponse(strings.Repeat("r", 2000))
	if got := len(v.Response()); got != ResponseSize-1 {
		t.Errorf("response length = %d", got)
	}
	v.SetTraceID("boot-0000abcd")
	if v.TraceID() != "boot-0000abcd" {
		t.Errorf("trace = %q", v.TraceID())
	}
}

func TestChargeLocksOnBreach(t *testing.T) {
	v, _ := createVault(t, PlaneCore, 10)

	if consumed, breached := v.Charge(10); breached || consumed != 10 {
		t.Errorf("charge to quota = %d, %v; reaching the quota is not a breach", consumed, breached)
	}
	if v.Locked() {
		t.Fatal("locked at exactly the quota")
	}
	if consumed, breached := v.Charge(1); !breached || consumed != 11 {
		t.Errorf("charge past quota = %d, %v", consumed, breached)
	}
	if !v.Locked() {
		t.Error("breach did not set authority_lock")
	}
}

func TestTick(t *testing.T) {
	v, _ := createVault(t, PlaneCore, 1)
	for want := uint64(1); want <= 3; want++ {
		if got := v.Tick(); got != want {
			t.Errorf("Tick = %d, want %d", got, want)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	v, _ := createVault(t, PlaneCore, 1)
	if err := v.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStatusText(t *testing.T) {
	if StatusSuspended.String() != "SUSPENDED" || Status(42).String() != "STATUS(42)" {
		t.Errorf("status names wrong")
	}
	if !StatusHalt.Terminal() || !StatusError.Terminal() || StatusReady.Terminal() {
		t.Error("Terminal classification wrong")
	}
}
