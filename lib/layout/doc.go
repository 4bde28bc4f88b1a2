// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout derives every runtime path from the run directory:
//
//	<run_dir>/root/control.sock     root plane
//	<run_dir>/kernel/control.sock   kernel control plane
//	<run_dir>/<ws>/control.sock     workspace engine plane
//	<run_dir>/<ws>/audit.cbor       workspace evidence log
//	<run_dir>/boot.cbor             boot manifest
//
// Workspace ids become path components, so [ValidateWorkspaceID] is
// the gate every binary applies before deriving a path from one.
package layout
