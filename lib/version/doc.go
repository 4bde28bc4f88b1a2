// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for --version output.
//
// Values are injected with -ldflags, for example:
//
//	go build -ldflags "-X github.com/yai-labs/yai/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
