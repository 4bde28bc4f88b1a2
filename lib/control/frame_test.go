// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/yai-labs/yai/lib/envelope"
)

func encodeFrame(t *testing.T, env envelope.Envelope, payload []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if err := WriteFrame(&buffer, env, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	return buffer.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	env := envelope.New(envelope.CommandStorageRPC, "dev", "trace-9")
	env.Arming = envelope.ArmingArmed
	payload := []byte(`{"method":"get"}`)

	got, gotPayload, err := ReadFrame(bytes.NewReader(encodeFrame(t, env, payload)), 1024)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.CommandID != env.CommandID || got.WorkspaceID != "dev" || got.TraceID != "trace-9" || !got.Armed() {
		t.Errorf("envelope = %+v", got)
	}
	if got.PayloadLen != uint32(len(payload)) || !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %q (len %d)", gotPayload, got.PayloadLen)
	}
}

func TestReadFrameErrors(t *testing.T) {
	valid := encodeFrame(t, envelope.New(envelope.CommandPing, "dev", ""), []byte("abc"))

	corrupt := func(mutate func([]byte)) []byte {
		frame := append([]byte(nil), valid...)
		mutate(frame)
		return frame
	}

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, ErrRead},
		{"short header", valid[:envelope.HeaderSize-1], ErrRead},
		{"short payload", valid[:len(valid)-1], ErrRead},
		{"bad magic", corrupt(func(f []byte) { f[0] ^= 0xFF }), ErrBadMagic},
		{"bad version", corrupt(func(f []byte) { binary.LittleEndian.PutUint32(f[4:], 2) }), ErrBadVersion},
		{"payload tampered", corrupt(func(f []byte) { f[len(f)-1] ^= 0x01 }), ErrChecksum},
		{"checksum zeroed", corrupt(func(f []byte) { clear(f[142:146]) }), ErrChecksum},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := ReadFrame(bytes.NewReader(test.frame), 1024)
			if !errors.Is(err, test.want) {
				t.Errorf("error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestReadFrameOverflowConsumesNoPayload(t *testing.T) {
	env := envelope.New(envelope.CommandNoop, "dev", "")
	payload := bytes.Repeat([]byte{'x'}, 200)
	frame := encodeFrame(t, env, payload)

	reader := bytes.NewReader(frame)
	_, _, err := ReadFrame(reader, 100)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
	if remaining := reader.Len(); remaining != len(payload) {
		t.Errorf("%d payload bytes left unread, want %d", remaining, len(payload))
	}
}

func TestReadFrameCeiling(t *testing.T) {
	header, err := envelope.New(envelope.CommandNoop, "dev", "").MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(header[146:], envelope.MaxPayload+1)

	reader := io.MultiReader(bytes.NewReader(header), bytes.NewReader([]byte("rest")))
	if _, _, err := ReadFrame(reader, 1<<20); !errors.Is(err, ErrOverflow) {
		t.Errorf("error = %v, want ErrOverflow above the protocol ceiling", err)
	}
}

func TestReadFrameZeroCapacity(t *testing.T) {
	frame := encodeFrame(t, envelope.New(envelope.CommandPing, "dev", ""), nil)
	if _, _, err := ReadFrame(bytes.NewReader(frame), 0); err != nil {
		t.Errorf("empty payload with zero capacity: %v", err)
	}
	frame = encodeFrame(t, envelope.New(envelope.CommandPing, "dev", ""), []byte{1})
	if _, _, err := ReadFrame(bytes.NewReader(frame), 0); !errors.Is(err, ErrOverflow) {
		t.Errorf("error = %v, want ErrOverflow", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteFrameErrors(t *testing.T) {
	env := envelope.New(envelope.CommandPing, "dev", "")
	if err := WriteFrame(failingWriter{}, env, nil); !errors.Is(err, ErrWrite) {
		t.Errorf("error = %v, want ErrWrite", err)
	}
	if err := WriteFrame(io.Discard, env, make([]byte, envelope.MaxPayload+1)); !errors.Is(err, ErrWrite) {
		t.Errorf("oversized error = %v, want ErrWrite", err)
	}
}
