// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v in Core Deterministic Encoding: map keys sorted,
// shortest integer forms. Equal values always produce equal bytes.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes one CBOR item from data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// Decoder reads items one at a time from a stream.
type Decoder = cbor.Decoder

// NewDecoder reads a CBOR sequence (RFC 8742) from r, such as records
// written back to back by repeated Marshal calls. Decode returns io.EOF
// at a clean end of stream.
func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }

// Diagnose renders one CBOR item in the diagnostic notation of RFC 8949
// section 8, for operators inspecting state files.
func Diagnose(data []byte) (string, error) { return cbor.Diagnose(data) }
