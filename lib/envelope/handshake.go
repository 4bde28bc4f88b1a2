// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HandshakeRequestSize is the exact payload size of a HANDSHAKE
	// request. Any other size is a malformed handshake.
	HandshakeRequestSize = 40

	// HandshakeAckSize is the payload size of a HANDSHAKE acknowledgement.
	HandshakeAckSize = 16

	// ClientNameSize is the width of the client name field.
	ClientNameSize = 32
)

// ErrHandshakeSize is returned when a handshake payload is not exactly
// HandshakeRequestSize or HandshakeAckSize bytes.
var ErrHandshakeSize = errors.New("envelope: handshake payload has wrong size")

// HandshakeRequest opens a session. ClientName identifies the agent
// whose contract may narrow the granted capabilities.
type HandshakeRequest struct {
	ClientVersion         uint32
	CapabilitiesRequested uint32
	ClientName            string
}

func (r HandshakeRequest) MarshalBinary() ([]byte, error) {
	if len(r.ClientName) > ClientNameSize-1 {
		return nil, fmt.Errorf("client name %q: %w", r.ClientName, ErrFieldTooLong)
	}
	buffer := make([]byte, HandshakeRequestSize)
	binary.LittleEndian.PutUint32(buffer[0:], r.ClientVersion)
	binary.LittleEndian.PutUint32(buffer[4:], r.CapabilitiesRequested)
	copy(buffer[8:], r.ClientName)
	return buffer, nil
}

func (r *HandshakeRequest) UnmarshalBinary(data []byte) error {
	if len(data) != HandshakeRequestSize {
		return fmt.Errorf("%w: got %d, want %d", ErrHandshakeSize, len(data), HandshakeRequestSize)
	}
	r.ClientVersion = binary.LittleEndian.Uint32(data[0:])
	r.CapabilitiesRequested = binary.LittleEndian.Uint32(data[4:])
	r.ClientName = getField(data[8 : 8+ClientNameSize])
	return nil
}

// HandshakeAck is the server's answer to a HandshakeRequest.
type HandshakeAck struct {
	ServerVersion       uint32
	CapabilitiesGranted uint32
	SessionID           uint32
	Status              uint32
}

func (a HandshakeAck) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, HandshakeAckSize)
	binary.LittleEndian.PutUint32(buffer[0:], a.ServerVersion)
	binary.LittleEndian.PutUint32(buffer[4:], a.CapabilitiesGranted)
	binary.LittleEndian.PutUint32(buffer[8:], a.SessionID)
	binary.LittleEndian.PutUint32(buffer[12:], a.Status)
	return buffer, nil
}

func (a *HandshakeAck) UnmarshalBinary(data []byte) error {
	if len(data) != HandshakeAckSize {
		return fmt.Errorf("%w: got %d, want %d", ErrHandshakeSize, len(data), HandshakeAckSize)
	}
	a.ServerVersion = binary.LittleEndian.Uint32(data[0:])
	a.CapabilitiesGranted = binary.LittleEndian.Uint32(data[4:])
	a.SessionID = binary.LittleEndian.Uint32(data[8:])
	a.Status = binary.LittleEndian.Uint32(data[12:])
	return nil
}
