// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the Unix-domain socket transport for envelope
// frames.
//
// A connection carries exactly one exchange: the client writes one
// frame (150-byte header followed by payload_len bytes), the server
// writes at most one frame back and closes. A server that rejects a
// frame closes without replying, so clients treat a closed connection
// with no reply as a refusal.
//
// [ReadFrame] enforces the receive limits before touching the payload:
// a declared payload_len larger than the caller's capacity or the
// protocol ceiling fails with [ErrOverflow] without consuming any
// payload byte.
package control
