// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by the yai binaries.
package process
