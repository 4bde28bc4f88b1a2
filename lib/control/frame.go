// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
	"io"

	"github.com/yai-labs/yai/lib/envelope"
)

// Framing errors. ErrBadMagic, ErrBadVersion and ErrChecksum mean the
// peer does not speak this protocol; the connection is closed without
// a reply. ErrOverflow is reported before any payload byte is read.
var (
	ErrRead       = errors.New("control: read failed")
	ErrWrite      = errors.New("control: write failed")
	ErrBadMagic   = errors.New("control: bad magic")
	ErrBadVersion = errors.New("control: protocol version mismatch")
	ErrOverflow   = errors.New("control: payload exceeds capacity")
	ErrChecksum   = errors.New("control: checksum mismatch")
)

// ReadFrame reads one frame from r. capacity is the largest payload
// the caller accepts; the effective limit is the smaller of capacity
// and envelope.MaxPayload.
func ReadFrame(r io.Reader, capacity int) (envelope.Envelope, []byte, error) {
	var env envelope.Envelope

	header := make([]byte, envelope.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return env, nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}
	if err := env.UnmarshalBinary(header); err != nil {
		return env, nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	switch err := envelope.CheckIdentity(&env); {
	case errors.Is(err, envelope.ErrBadMagic):
		return env, nil, fmt.Errorf("%w: %#08x", ErrBadMagic, env.Magic)
	case errors.Is(err, envelope.ErrBadVersion):
		return env, nil, fmt.Errorf("%w: peer v%d, local v%d", ErrBadVersion, env.Version, envelope.Version)
	}

	limit := min(max(capacity, 0), envelope.MaxPayload)
	if uint64(env.PayloadLen) > uint64(limit) {
		return env, nil, fmt.Errorf("%w: payload_len %d, limit %d", ErrOverflow, env.PayloadLen, limit)
	}

	payload := make([]byte, env.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return env, nil, fmt.Errorf("%w: payload: %w", ErrRead, err)
	}

	if err := envelope.Verify(header, payload); err != nil {
		return env, nil, fmt.Errorf("%w: %w", ErrChecksum, err)
	}
	return env, payload, nil
}

// WriteFrame seals env for payload and writes header and payload in
// one buffer.
func WriteFrame(w io.Writer, env envelope.Envelope, payload []byte) error {
	header, err := envelope.Seal(&env, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
