// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile writes small CBOR state files atomically.
//
// A file is written to a temporary sibling, fsynced, renamed into
// place, and the parent directory is synced, so readers see either the
// previous document or the new one and never a partial write. The boot
// manifest recorded by yai-boot is the main user.
package statefile
