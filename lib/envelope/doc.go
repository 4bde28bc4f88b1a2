// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope defines the fixed-layout binary envelope shared by
// every control socket in the runtime: the root plane, the kernel
// control plane, and each workspace engine plane.
//
// An envelope is a 150-byte little-endian header followed by
// PayloadLen raw payload bytes:
//
//	[magic u32][version u32][command_id u32][ws_id 64B][trace_id 64B]
//	[role u8][arming u8][checksum u32][payload_len u32]
//
// The header identifies the protocol (Magic, Version), routes the
// request (CommandID, WorkspaceID), and carries the caller's role and
// arming state. Version is a hard compatibility boundary: a peer built
// for another protocol version is rejected, never coerced.
//
// The command registry ([Classify]) maps every command id to an effect
// class. EXTERNAL commands have effects observable outside the process;
// IRREVERSIBLE commands cannot be undone by a later command. The
// authority gate in lib/dispatch and lib/engine keys off this class.
//
// Every writer populates Checksum with [Checksum], a BLAKE3 keyed
// digest over the header (checksum field zeroed) and the payload.
// Readers reject any mismatch, including an unset (zero) checksum.
package envelope
