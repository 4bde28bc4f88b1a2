// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the package tests.
//
// [SocketDir] exists because sun_path is limited to 108 bytes, and
// t.TempDir() paths under some runners are long enough to exceed it
// once a socket name is appended. [RequireReceive] and [RequireClosed]
// bound channel waits so a broken test fails instead of hanging.
package testutil
