// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability holds agent contracts: the set of capabilities
// each agent may exercise.
//
// Contracts are loaded from a JSONC file (comments and trailing commas
// allowed):
//
//	{
//	  "contracts": [
//	    // research agent may call models directly
//	    {"agent_id": "scout", "capabilities": ["FS_READ", "LLM_DIRECT"], "memory_limit": 268435456},
//	  ],
//	}
//
// An agent without a contract holds no capability. [Registry.Narrow]
// is the handshake grant policy: the granted set is the requested set
// intersected with the contract.
package capability
