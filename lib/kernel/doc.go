// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel implements the root and kernel control planes.
//
// The kernel answers HANDSHAKE, PING and STATUS itself. Every other
// command is handed to the addressed workspace's engine through the
// core Vault mailbox: the kernel attaches the segment as a producer,
// submits the command, waits for the engine to mark it processed and
// reports the engine's outcome as JSON. The kernel never writes owner
// fields of a Vault.
package kernel
