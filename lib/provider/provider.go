// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/rpcrouter"
)

const (
	CodeCapabilityDenied    = "ERR_CAPABILITY_DENIED"
	CodeProviderUnavailable = "ERR_PROVIDER_UNAVAILABLE"
	CodeProviderFailed      = "ERR_PROVIDER_FAILED"
)

// Backend produces an output for one agent input.
type Backend interface {
	Complete(ctx context.Context, agentID, input string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, agentID, input string) (string, error)

func (f BackendFunc) Complete(ctx context.Context, agentID, input string) (string, error) {
	return f(ctx, agentID, input)
}

// Echo returns its input unchanged.
var Echo Backend = BackendFunc(func(_ context.Context, _, input string) (string, error) {
	return input, nil
})

type request struct {
	AgentID  string `json:"agent_id"`
	Provider string `json:"provider"`
	Input    string `json:"input"`
}

type reply struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Output   string `json:"output"`
	TraceID  string `json:"trace_id,omitempty"`
}

// Gateway checks agent contracts and forwards to a named backend.
type Gateway struct {
	contracts *capability.Registry
	logger    *slog.Logger

	mu       sync.RWMutex
	backends map[string]Backend
}

// NewGateway returns a gateway with the echo backend registered.
func NewGateway(contracts *capability.Registry, logger *slog.Logger) *Gateway {
	if contracts == nil {
		contracts = capability.NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		contracts: contracts,
		logger:    logger,
		backends:  map[string]Backend{"echo": Echo},
	}
}

// Register installs or replaces the backend called name.
func (g *Gateway) Register(name string, backend Backend) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backends[name] = backend
}

// Backends lists registered backend names in order.
func (g *Gateway) Backends() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.backends))
	for name := range g.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch serves one PROVIDER_RPC request.
func (g *Gateway) Dispatch(ctx context.Context, env *envelope.Envelope, payload []byte) string {
	if len(payload) == 0 {
		return rpcrouter.ErrorBody(rpcrouter.CodeMissingPayload)
	}
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return rpcrouter.ErrorBody(rpcrouter.CodeInvalidJSON)
	}
	if req.AgentID == "" || req.Provider == "" {
		return rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)
	}

	if !g.contracts.Check(req.AgentID, capability.LLMDirect) {
		g.logger.Warn("provider call denied",
			"agent", req.AgentID,
			"provider", req.Provider,
			"workspace", env.WorkspaceID,
		)
		return rpcrouter.ErrorBody(CodeCapabilityDenied)
	}

	g.mu.RLock()
	backend, ok := g.backends[req.Provider]
	g.mu.RUnlock()
	if !ok {
		return rpcrouter.ErrorBody(CodeProviderUnavailable)
	}

	output, err := backend.Complete(ctx, req.AgentID, req.Input)
	if err != nil {
		g.logger.Error("provider backend failed",
			"agent", req.AgentID,
			"provider", req.Provider,
			"error", err,
		)
		return rpcrouter.ErrorBody(CodeProviderFailed)
	}

	data, err := json.Marshal(reply{Status: "ok", Provider: req.Provider, Output: output, TraceID: env.TraceID})
	if err != nil {
		return rpcrouter.ErrorBody(CodeProviderFailed)
	}
	return string(data)
}
