// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine serves a workspace's engine control socket.
//
// Frames must be addressed to the engine's own workspace. Before the
// RPC router sees a request, the authority gate runs against the
// plane that owns the effect: the brain plane for provider and
// embedding calls, the core plane for everything else. A locked plane
// denies external effects, irreversible effects need an armed
// envelope, and every admitted external effect leaves an evidence
// record. Energy for admitted requests is charged to the core plane.
package engine
