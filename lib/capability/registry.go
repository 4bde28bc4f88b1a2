// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/jsonc"
)

// Contract binds an agent to its capabilities and memory limit.
type Contract struct {
	AgentID      string `json:"agent_id"`
	Capabilities Set    `json:"capabilities"`
	MemoryLimit  uint64 `json:"memory_limit"`
}

// Registry is a concurrency-safe contract table.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

// NewRegistry returns a registry holding contracts. A later contract
// for the same agent replaces an earlier one.
func NewRegistry(contracts ...Contract) *Registry {
	r := &Registry{contracts: make(map[string]Contract, len(contracts))}
	for _, contract := range contracts {
		r.contracts[contract.AgentID] = contract
	}
	return r
}

// Register adds or replaces a contract.
func (r *Registry) Register(contract Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[contract.AgentID] = contract
}

// Lookup returns the contract registered for agentID.
func (r *Registry) Lookup(agentID string) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	contract, ok := r.contracts[agentID]
	return contract, ok
}

// Check reports whether agentID's contract grants every bit of
// required. Unknown agents hold nothing.
func (r *Registry) Check(agentID string, required Set) bool {
	contract, ok := r.Lookup(agentID)
	return ok && contract.Capabilities.Has(required)
}

// Narrow returns requested restricted to agentID's contract.
func (r *Registry) Narrow(agentID string, requested Set) Set {
	contract, ok := r.Lookup(agentID)
	if !ok {
		return 0
	}
	return requested & contract.Capabilities
}

// Len is the number of registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contracts)
}

type contractsFile struct {
	Contracts []Contract `json:"contracts"`
}

// ParseContracts decodes a JSONC contracts document.
func ParseContracts(data []byte) (*Registry, error) {
	var file contractsFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("parsing contracts: %w", err)
	}
	registry := NewRegistry()
	for i, contract := range file.Contracts {
		if contract.AgentID == "" {
			return nil, fmt.Errorf("parsing contracts: entry %d has no agent_id", i)
		}
		if _, exists := registry.contracts[contract.AgentID]; exists {
			return nil, fmt.Errorf("parsing contracts: duplicate agent_id %q", contract.AgentID)
		}
		registry.contracts[contract.AgentID] = contract
	}
	return registry, nil
}

// LoadFile reads a contracts file. A file that does not exist yields
// an empty registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	registry, err := ParseContracts(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return registry, nil
}
