// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import "fmt"

const (
	// Magic is "YVLT" read as a little-endian word.
	Magic uint32 = 0x544C5659

	LayoutVersion uint32 = 1

	// RecordSize is the exact size of a segment file.
	RecordSize = 2520

	WorkspaceIDSize = 64
	PlaneSize       = 16
	TraceIDSize     = 64
	LastErrorSize   = 256
	ResponseSize    = 1024
	PayloadSize     = 1024
)

const (
	offsetMagic             = 0
	offsetVersion           = 4
	offsetStatus            = 8
	offsetAuthorityLock     = 12
	offsetEnergyQuota       = 16
	offsetEnergyConsumed    = 24
	offsetLogicalClock      = 32
	offsetCommandSeq        = 40
	offsetLastProcessedSeq  = 44
	offsetLastCommandID     = 48
	offsetLastResult        = 52
	offsetProducerGuard     = 56
	offsetCommandGeneration = 60
	offsetPayloadLen        = 64
	offsetWorkspaceID       = 72
	offsetPlane             = offsetWorkspaceID + WorkspaceIDSize
	offsetTraceID           = offsetPlane + PlaneSize
	offsetLastError         = offsetTraceID + TraceIDSize
	offsetResponse          = offsetLastError + LastErrorSize
	offsetPayload           = offsetResponse + ResponseSize
)

// Compile-time check that the field table ends at RecordSize.
var _ [RecordSize - (offsetPayload + PayloadSize)]struct{}
var _ [(offsetPayload + PayloadSize) - RecordSize]struct{}

// Status is the lifecycle state stored in a plane.
type Status uint32

const (
	StatusPreboot Status = iota
	StatusBooting
	StatusReady
	StatusRunning
	StatusBusy
	StatusSuspended
	StatusError
	StatusPanic
	StatusHalt
)

var statusNames = [...]string{
	StatusPreboot:   "PREBOOT",
	StatusBooting:   "BOOTING",
	StatusReady:     "READY",
	StatusRunning:   "RUNNING",
	StatusBusy:      "BUSY",
	StatusSuspended: "SUSPENDED",
	StatusError:     "ERROR",
	StatusPanic:     "PANIC",
	StatusHalt:      "HALT",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("STATUS(%d)", uint32(s))
}

// MarshalText renders the status name in JSON snapshots.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether the engine poll loop stops in this state.
func (s Status) Terminal() bool { return s == StatusHalt || s == StatusError }

// Plane names one of the per-workspace state records.
type Plane string

const (
	PlaneCore    Plane = "core"
	PlaneStream  Plane = "stream"
	PlaneBrain   Plane = "brain"
	PlaneAudit   Plane = "audit"
	PlaneCache   Plane = "cache"
	PlaneControl Plane = "control"
)

// Planes lists every plane a workspace cluster holds, core first.
var Planes = []Plane{PlaneCore, PlaneStream, PlaneBrain, PlaneAudit, PlaneCache, PlaneControl}
