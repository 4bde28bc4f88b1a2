// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records evidence for every command with an effect
// outside the runtime.
//
// Before an EXTERNAL command executes, the engine writes an [Evidence]
// record. Its textual form goes into the plane's response buffer and
// the structured form is appended to <run_dir>/<ws>/audit.cbor, a CBOR
// sequence (RFC 8742) encoded with lib/codec so identical records
// produce identical bytes.
package audit
