// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
)

// checksumKey is the BLAKE3 keyed-mode key for frame checksums: the
// ASCII domain name zero-padded to 32 bytes. Changing it breaks
// compatibility with every peer, so it moves with Version.
var checksumKey = [32]byte{
	'y', 'a', 'i', '.', 'e', 'n', 'v', 'e', 'l', 'o', 'p', 'e', '.',
	'c', 'h', 'e', 'c', 'k', 's', 'u', 'm',
}

// Checksum computes the frame checksum over an encoded header and its
// payload. The checksum field inside header is treated as zero, so the
// value can be computed over a header that already carries one. The
// result is never zero; zero marks an unsealed frame.
func Checksum(header []byte, payload []byte) uint32 {
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("envelope: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var scratch [HeaderSize]byte
	copy(scratch[:], header)
	clear(scratch[offsetChecksum : offsetChecksum+4])
	hasher.Write(scratch[:])
	hasher.Write(payload)
	digest := hasher.Sum(nil)
	return nonZero(binary.LittleEndian.Uint32(digest[:4]))
}

func nonZero(sum uint32) uint32 {
	if sum == 0 {
		return 1
	}
	return sum
}

// Seal sets PayloadLen and Checksum on env for payload and returns the
// encoded header ready to be written before the payload.
func Seal(env *Envelope, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooBig, len(payload))
	}
	env.PayloadLen = uint32(len(payload))
	env.Checksum = 0
	header, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	env.Checksum = Checksum(header, payload)
	binary.LittleEndian.PutUint32(header[offsetChecksum:], env.Checksum)
	return header, nil
}

// Verify checks a received frame's checksum. header is the raw encoded
// header as read from the wire. A zero checksum is always rejected.
func Verify(header []byte, payload []byte) error {
	if len(header) != HeaderSize {
		return ErrShortHeader
	}
	declared := binary.LittleEndian.Uint32(header[offsetChecksum:])
	if declared == 0 {
		return fmt.Errorf("%w: frame not sealed (zero checksum)", ErrChecksum)
	}
	if computed := Checksum(header, payload); declared != computed {
		return fmt.Errorf("%w: declared 0x%08x, computed 0x%08x", ErrChecksum, declared, computed)
	}
	return nil
}
