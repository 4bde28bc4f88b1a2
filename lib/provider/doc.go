// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider is the reference PROVIDER_RPC collaborator.
//
// A request names the calling agent, a backend and an input:
//
//	{"agent_id": "scout", "provider": "echo", "input": "hello"}
//
// The agent's contract must grant LLM_DIRECT. Backends are registered
// by name on a [Gateway]; [Echo] is always available for wiring tests.
package provider
