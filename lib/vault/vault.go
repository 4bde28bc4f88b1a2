// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/yai-labs/yai/lib/envelope"
)

var (
	// ErrAllocation is returned by Create when the segment cannot be
	// created, sized or mapped.
	ErrAllocation = errors.New("vault: allocation failed")

	// ErrNotFound is returned by Attach when no segment exists for the
	// workspace and plane. Boot has not run for that workspace.
	ErrNotFound = errors.New("vault: segment not found")

	// ErrLayoutMismatch is returned by Attach when the segment has the
	// wrong size or names another workspace or plane.
	ErrLayoutMismatch = errors.New("vault: layout mismatch")

	// ErrSlotBusy is returned by Submit while another producer holds
	// the guard or the previous command is still unprocessed.
	ErrSlotBusy = errors.New("vault: command slot busy")

	// ErrPayloadTooBig is returned for command payloads larger than
	// PayloadSize.
	ErrPayloadTooBig = errors.New("vault: command payload exceeds 1024 bytes")

	// ErrInvalidName is returned for workspace ids that are empty, too
	// long or contain a path separator, and for unknown planes.
	ErrInvalidName = errors.New("vault: invalid workspace or plane name")
)

// DefaultDir is the POSIX shared-memory namespace on Linux.
const DefaultDir = "/dev/shm"

// Vault is a mapped view of one plane's state record. Several handles,
// in one process or many, may map the same segment.
type Vault struct {
	// mu serializes the owner-side field groups written by goroutines
	// of this process. It does not coordinate with other processes.
	mu sync.Mutex

	closeMu sync.Mutex
	data    []byte

	path        string
	workspaceID string
	plane       Plane
}

// SegmentName returns the file name for a plane segment:
// yai_vault_<ws> for the core plane, yai_vault_<ws>_<plane> otherwise.
func SegmentName(workspaceID string, plane Plane) string {
	if plane == PlaneCore || plane == "" {
		return "yai_vault_" + workspaceID
	}
	return "yai_vault_" + workspaceID + "_" + string(plane)
}

// SegmentPath joins dir and SegmentName.
func SegmentPath(dir, workspaceID string, plane Plane) string {
	return filepath.Join(dir, SegmentName(workspaceID, plane))
}

func checkNames(workspaceID string, plane Plane) error {
	if workspaceID == "" || len(workspaceID) >= WorkspaceIDSize || !envelope.ValidWorkspaceID(workspaceID) {
		return fmt.Errorf("%w: workspace %q", ErrInvalidName, workspaceID)
	}
	if plane == "" {
		plane = PlaneCore
	}
	if len(plane) >= PlaneSize || !envelope.ValidWorkspaceID(string(plane)) {
		return fmt.Errorf("%w: plane %q", ErrInvalidName, plane)
	}
	return nil
}

// Create truncates or creates the segment for (workspaceID, plane),
// zeroes it and writes the immutable identity fields. Status starts at
// PREBOOT. Only the boot path of a plane calls Create.
func Create(dir, workspaceID string, plane Plane, quota uint64) (*Vault, error) {
	if plane == "" {
		plane = PlaneCore
	}
	if err := checkNames(workspaceID, plane); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	path := SegmentPath(dir, workspaceID, plane)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrAllocation, path, err)
	}
	defer file.Close()

	if err := file.Truncate(RecordSize); err != nil {
		return nil, fmt.Errorf("%w: sizing %s: %v", ErrAllocation, path, err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, RecordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mapping %s: %v", ErrAllocation, path, err)
	}
	clear(data)

	v := &Vault{data: data, path: path, workspaceID: workspaceID, plane: plane}
	putString(data[offsetWorkspaceID:offsetWorkspaceID+WorkspaceIDSize], workspaceID)
	putString(data[offsetPlane:offsetPlane+PlaneSize], string(plane))
	atomic.StoreUint64(v.u64(offsetEnergyQuota), quota)
	atomic.StoreUint32(v.u32(offsetStatus), uint32(StatusPreboot))
	atomic.StoreUint32(v.u32(offsetVersion), LayoutVersion)
	// Magic last: an attacher that sees it sees the rest.
	atomic.StoreUint32(v.u32(offsetMagic), Magic)
	return v, nil
}

// Attach maps an existing segment read/write. It returns ErrNotFound
// when the segment does not exist and ErrLayoutMismatch when its size,
// magic or version differ from this build.
func Attach(dir, workspaceID string, plane Plane) (*Vault, error) {
	if plane == "" {
		plane = PlaneCore
	}
	if err := checkNames(workspaceID, plane); err != nil {
		return nil, err
	}
	path := SegmentPath(dir, workspaceID, plane)
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("vault: opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("vault: stat %s: %w", path, err)
	}
	if info.Size() != RecordSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrLayoutMismatch, path, info.Size(), RecordSize)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, RecordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("vault: mapping %s: %w", path, err)
	}

	v := &Vault{data: data, path: path, workspaceID: workspaceID, plane: plane}
	magic := atomic.LoadUint32(v.u32(offsetMagic))
	version := atomic.LoadUint32(v.u32(offsetVersion))
	if magic != Magic || version != LayoutVersion {
		unix.Munmap(data)
		return nil, fmt.Errorf("%w: %s has magic %#x version %d", ErrLayoutMismatch, path, magic, version)
	}
	return v, nil
}

// Remove unlinks a plane segment. Existing mappings stay valid until
// closed. A missing segment is not an error.
func Remove(dir, workspaceID string, plane Plane) error {
	err := os.Remove(SegmentPath(dir, workspaceID, plane))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("vault: removing segment: %w", err)
	}
	return nil
}

// Close unmaps the record. It is safe to call more than once. The
// handle must not be used after Close.
func (v *Vault) Close() error {
	v.closeMu.Lock()
	defer v.closeMu.Unlock()
	if v.data == nil {
		return nil
	}
	err := unix.Munmap(v.data)
	v.data = nil
	if err != nil {
		return fmt.Errorf("vault: unmapping %s: %w", v.path, err)
	}
	return nil
}

// Lock and Unlock serialize in-process writers of the owner field
// group (status, lock, result, error, response).
func (v *Vault) Lock()   { v.mu.Lock() }
func (v *Vault) Unlock() { v.mu.Unlock() }

// Path is the segment file backing the mapping.
func (v *Vault) Path() string { return v.path }

// WorkspaceID and Plane are the names the handle was opened with. Use
// StoredWorkspaceID and StoredPlane for what the record itself says.
func (v *Vault) WorkspaceID() string { return v.workspaceID }
func (v *Vault) Plane() Plane        { return v.plane }

func (v *Vault) u32(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&v.data[offset]))
}

func (v *Vault) u64(offset int) *uint64 {
	return (*uint64)(unsafe.Pointer(&v.data[offset]))
}

func putString(field []byte, value string) {
	n := copy(field[:len(field)-1], value)
	clear(field[n:])
}

func getString(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

// Status is the plane's lifecycle state. Only the owner sets it.
func (v *Vault) Status() Status { return Status(atomic.LoadUint32(v.u32(offsetStatus))) }

// SetStatus stores s. The caller holds Lock when writing it together
// with other owner fields.
func (v *Vault) SetStatus(s Status) { atomic.StoreUint32(v.u32(offsetStatus), uint32(s)) }

// Locked reports whether authority_lock is set. A locked plane denies
// EXTERNAL commands.
func (v *Vault) Locked() bool { return atomic.LoadUint32(v.u32(offsetAuthorityLock)) != 0 }

// SetLocked sets or clears authority_lock. Only boot clears it.
func (v *Vault) SetLocked(locked bool) {
	var word uint32
	if locked {
		word = 1
	}
	atomic.StoreUint32(v.u32(offsetAuthorityLock), word)
}

// EnergyQuota is fixed at Create. EnergyConsumed only grows, through
// Charge.
func (v *Vault) EnergyQuota() uint64    { return atomic.LoadUint64(v.u64(offsetEnergyQuota)) }
func (v *Vault) EnergyConsumed() uint64 { return atomic.LoadUint64(v.u64(offsetEnergyConsumed)) }

// Charge adds cost to energy_consumed and sets authority_lock when the
// total exceeds the quota. It returns the new total and whether the
// quota is breached.
func (v *Vault) Charge(cost uint64) (consumed uint64, breached bool) {
	consumed = atomic.AddUint64(v.u64(offsetEnergyConsumed), cost)
	if consumed > v.EnergyQuota() {
		v.SetLocked(true)
		return consumed, true
	}
	return consumed, false
}

// LogicalClock counts commands executed against the plane.
func (v *Vault) LogicalClock() uint64 { return atomic.LoadUint64(v.u64(offsetLogicalClock)) }

// Tick advances the logical clock by one and returns the new value.
func (v *Vault) Tick() uint64 { return atomic.AddUint64(v.u64(offsetLogicalClock), 1) }

// CommandSeq is the sequence number of the newest deposited command and
// LastProcessedSeq that of the newest one the owner finished. They are
// equal when the mailbox is free.
func (v *Vault) CommandSeq() uint32       { return atomic.LoadUint32(v.u32(offsetCommandSeq)) }
func (v *Vault) LastProcessedSeq() uint32 { return atomic.LoadUint32(v.u32(offsetLastProcessedSeq)) }

// LastCommandID is the id of the newest deposited command.
func (v *Vault) LastCommandID() envelope.CommandID {
	return envelope.CommandID(atomic.LoadUint32(v.u32(offsetLastCommandID)))
}

// LastResult is 1 when the last processed command succeeded, 0
// otherwise.
func (v *Vault) LastResult() uint32     { return atomic.LoadUint32(v.u32(offsetLastResult)) }
func (v *Vault) SetLastResult(r uint32) { atomic.StoreUint32(v.u32(offsetLastResult), r) }

func (v *Vault) field(offset, size int) []byte { return v.data[offset : offset+size] }

// TraceID is the trace id boot stamped on the plane. String fields
// are NUL-terminated in fixed slots; setters truncate to the slot size
// minus one and zero the rest.
func (v *Vault) TraceID() string         { return getString(v.field(offsetTraceID, TraceIDSize)) }
func (v *Vault) SetTraceID(trace string) { putString(v.field(offsetTraceID, TraceIDSize), trace) }

// LastError is the failure message of the last processed command.
func (v *Vault) LastError() string        { return getString(v.field(offsetLastError, LastErrorSize)) }
func (v *Vault) SetLastError(text string) { putString(v.field(offsetLastError, LastErrorSize), text) }

// Response is the success text of the last processed command.
func (v *Vault) Response() string        { return getString(v.field(offsetResponse, ResponseSize)) }
func (v *Vault) SetResponse(text string) { putString(v.field(offsetResponse, ResponseSize), text) }

// StoredWorkspaceID reads workspace_id from the record itself.
func (v *Vault) StoredWorkspaceID() string {
	return getString(v.field(offsetWorkspaceID, WorkspaceIDSize))
}

// StoredPlane reads plane from the record itself.
func (v *Vault) StoredPlane() Plane {
	return Plane(getString(v.field(offsetPlane, PlaneSize)))
}

// Snapshot is a point-in-time copy of a record for observers. Fields
// are read one by one, so a snapshot taken while the owner writes may
// mix two states.
type Snapshot struct {
	WorkspaceID      string             `json:"workspace_id"`
	Plane            Plane              `json:"plane"`
	TraceID          string             `json:"trace_id"`
	Status           Status             `json:"status"`
	AuthorityLock    bool               `json:"authority_lock"`
	EnergyQuota      uint64             `json:"energy_quota"`
	EnergyConsumed   uint64             `json:"energy_consumed"`
	LogicalClock     uint64             `json:"logical_clock"`
	CommandSeq       uint32             `json:"command_seq"`
	LastProcessedSeq uint32             `json:"last_processed_seq"`
	LastCommandID    envelope.CommandID `json:"last_command_id"`
	LastResult       uint32             `json:"last_result"`
	LastError        string             `json:"last_error"`
	Response         string             `json:"response"`
}

// Snapshot reads every field of the record.
func (v *Vault) Snapshot() Snapshot {
	return Snapshot{
		WorkspaceID:      v.StoredWorkspaceID(),
		Plane:            v.StoredPlane(),
		TraceID:          v.TraceID(),
		Status:           v.Status(),
		AuthorityLock:    v.Locked(),
		EnergyQuota:      v.EnergyQuota(),
		EnergyConsumed:   v.EnergyConsumed(),
		LogicalClock:     v.LogicalClock(),
		CommandSeq:       v.CommandSeq(),
		LastProcessedSeq: v.LastProcessedSeq(),
		LastCommandID:    v.LastCommandID(),
		LastResult:       v.LastResult(),
		LastError:        v.LastError(),
		Response:         v.Response(),
	}
}

// Bytes returns a copy of the raw record, for diagnostics.
func (v *Vault) Bytes() []byte {
	out := make([]byte, RecordSize)
	copy(out, v.data)
	return out
}
