// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the *slog.Logger each yai binary creates once
// in run() and injects into every component.
package logging
