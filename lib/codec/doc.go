// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used for files the
// runtime persists: the audit evidence log and the boot manifest.
//
// Encoding is RFC 8949 Core Deterministic so the same record always
// produces the same bytes, which keeps evidence logs hashable.
// Decoding into untyped targets yields map[string]any.
package codec
