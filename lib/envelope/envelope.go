// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// Magic identifies a YAI control frame ("YAIP" as a little-endian
	// word). Any other value is a corrupt or foreign frame.
	Magic uint32 = 0x59414950

	// Version is the protocol version of this build. Peers must match
	// exactly.
	Version uint32 = 1

	// HeaderSize is the encoded size of the fixed header.
	HeaderSize = 150

	// FieldSize is the width of the ws_id and trace_id fields.
	FieldSize = 64

	// MaxFieldLength is the longest ws_id or trace_id that fits with
	// its NUL terminator.
	MaxFieldLength = FieldSize - 1

	// MaxPayload is the global payload ceiling. No receiver accepts a
	// larger payload regardless of its own buffer capacity.
	MaxPayload = 64 * 1024
)

// Header field offsets.
const (
	offsetMagic      = 0
	offsetVersion    = 4
	offsetCommandID  = 8
	offsetWorkspace  = 12
	offsetTrace      = offsetWorkspace + FieldSize
	offsetRole       = offsetTrace + FieldSize
	offsetArming     = offsetRole + 1
	offsetChecksum   = offsetArming + 1
	offsetPayloadLen = offsetChecksum + 4
)

// Header codec errors. ErrFieldTooLong comes from MarshalBinary; the
// rest from decoding and verifying received frames.
var (
	ErrShortHeader   = errors.New("envelope: header must be exactly 150 bytes")
	ErrFieldTooLong  = errors.New("envelope: field exceeds 63 bytes")
	ErrBadMagic      = errors.New("envelope: bad magic")
	ErrBadVersion    = errors.New("envelope: protocol version mismatch")
	ErrChecksum      = errors.New("envelope: checksum mismatch")
	ErrPayloadTooBig = errors.New("envelope: payload exceeds ceiling")
)

// Role distinguishes the caller's privilege level.
type Role uint8

const (
	RoleNone Role = iota
	RoleUser
	RoleOperator
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleUser:
		return "user"
	case RoleOperator:
		return "operator"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Arming values. Only ArmingArmed authorizes irreversible execution.
const (
	ArmingDisarmed uint8 = 0
	ArmingArmed    uint8 = 1
)

// Envelope is the decoded fixed header. WorkspaceID and TraceID hold
// the NUL-trimmed contents of their fixed-width fields.
type Envelope struct {
	Magic       uint32
	Version     uint32
	CommandID   CommandID
	WorkspaceID string
	TraceID     string
	Role        Role
	Arming      uint8
	Checksum    uint32
	PayloadLen  uint32
}

// New returns an envelope with this build's magic and version for the
// given command and workspace.
func New(command CommandID, workspaceID, traceID string) Envelope {
	return Envelope{
		Magic:       Magic,
		Version:     Version,
		CommandID:   command,
		WorkspaceID: workspaceID,
		TraceID:     traceID,
	}
}

// Armed reports whether the envelope authorizes irreversible execution.
func (e Envelope) Armed() bool { return e.Arming == ArmingArmed }

// MarshalBinary encodes the fixed header. Fields are written verbatim,
// including Checksum and PayloadLen; use [Seal] to populate those.
func (e Envelope) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, HeaderSize)
	if err := e.encode(buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}

func (e Envelope) encode(buffer []byte) error {
	if len(e.WorkspaceID) > MaxFieldLength {
		return fmt.Errorf("ws_id %q: %w", e.WorkspaceID, ErrFieldTooLong)
	}
	if len(e.TraceID) > MaxFieldLength {
		return fmt.Errorf("trace_id %q: %w", e.TraceID, ErrFieldTooLong)
	}
	binary.LittleEndian.PutUint32(buffer[offsetMagic:], e.Magic)
	binary.LittleEndian.PutUint32(buffer[offsetVersion:], e.Version)
	binary.LittleEndian.PutUint32(buffer[offsetCommandID:], uint32(e.CommandID))
	putField(buffer[offsetWorkspace:offsetWorkspace+FieldSize], e.WorkspaceID)
	putField(buffer[offsetTrace:offsetTrace+FieldSize], e.TraceID)
	buffer[offsetRole] = uint8(e.Role)
	buffer[offsetArming] = e.Arming
	binary.LittleEndian.PutUint32(buffer[offsetChecksum:], e.Checksum)
	binary.LittleEndian.PutUint32(buffer[offsetPayloadLen:], e.PayloadLen)
	return nil
}

// UnmarshalBinary decodes a fixed header. It does not validate magic,
// version, or checksum: the transport decides what to trust.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return ErrShortHeader
	}
	e.Magic = binary.LittleEndian.Uint32(data[offsetMagic:])
	e.Version = binary.LittleEndian.Uint32(data[offsetVersion:])
	e.CommandID = CommandID(binary.LittleEndian.Uint32(data[offsetCommandID:]))
	e.WorkspaceID = getField(data[offsetWorkspace : offsetWorkspace+FieldSize])
	e.TraceID = getField(data[offsetTrace : offsetTrace+FieldSize])
	e.Role = Role(data[offsetRole])
	e.Arming = data[offsetArming]
	e.Checksum = binary.LittleEndian.Uint32(data[offsetChecksum:])
	e.PayloadLen = binary.LittleEndian.Uint32(data[offsetPayloadLen:])
	return nil
}

// Validate reports whether env carries this build's magic and version
// and, when expectedWorkspace is non-empty, addresses exactly that
// workspace. An empty expectedWorkspace accepts any workspace; the
// plane-agnostic control commands rely on this.
func Validate(env *Envelope, expectedWorkspace string) bool {
	if env == nil {
		return false
	}
	if env.Magic != Magic || env.Version != Version {
		return false
	}
	if expectedWorkspace == "" {
		return true
	}
	return env.WorkspaceID == expectedWorkspace
}

// CheckIdentity returns ErrBadMagic or ErrBadVersion for a frame that
// does not belong to this protocol build.
func CheckIdentity(env *Envelope) error {
	if env.Magic != Magic {
		return fmt.Errorf("%w: 0x%08x", ErrBadMagic, env.Magic)
	}
	if env.Version != Version {
		return fmt.Errorf("%w: peer v%d, local v%d", ErrBadVersion, env.Version, Version)
	}
	return nil
}

// ValidWorkspaceID reports whether a ws_id is safe to route on. A ws_id
// is used to derive socket and segment paths, so it must not contain a
// path separator.
func ValidWorkspaceID(workspaceID string) bool {
	return !strings.ContainsRune(workspaceID, '/')
}

// PrepareAck builds a zeroed response envelope for request. The
// command id, ws_id, and trace_id are copied; role, arming, checksum,
// and payload length are zero. The caller attaches a payload and the
// transport seals the frame.
func PrepareAck(request *Envelope) Envelope {
	if request == nil {
		return Envelope{}
	}
	return Envelope{
		Magic:       Magic,
		Version:     Version,
		CommandID:   request.CommandID,
		WorkspaceID: truncateField(request.WorkspaceID),
		TraceID:     truncateField(request.TraceID),
	}
}

func putField(destination []byte, value string) {
	clear(destination)
	copy(destination, value)
}

func getField(source []byte) string {
	if index := indexNUL(source); index >= 0 {
		return string(source[:index])
	}
	return string(source)
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func truncateField(value string) string {
	if len(value) > MaxFieldLength {
		return value[:MaxFieldLength]
	}
	return value
}
