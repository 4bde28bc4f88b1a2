// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpcrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/yai-labs/yai/lib/envelope"
)

// Error codes produced by the router.
const (
	CodeInvalidArgs        = "ERR_INVALID_ARGS"
	CodeMissingPayload     = "ERR_MISSING_PAYLOAD"
	CodeInvalidJSON        = "ERR_INVALID_JSON"
	CodeMissingMethod      = "ERR_MISSING_METHOD"
	CodeInvalidParams      = "ERR_INVALID_PARAMS"
	CodeNotImplemented     = "ERR_NOT_IMPLEMENTED"
	CodeUnsupportedCommand = "ERR_UNSUPPORTED_COMMAND"
)

// PongBody is the reply to PING.
const PongBody = `{"status":"PONG"}`

// Storage serves STORAGE_RPC. params is a JSON object.
type Storage interface {
	HandleRPC(ctx context.Context, workspaceID, method, params string) string
}

// Provider serves PROVIDER_RPC.
type Provider interface {
	Dispatch(ctx context.Context, env *envelope.Envelope, payload []byte) string
}

// Router routes engine-socket RPCs to their collaborator.
type Router struct {
	storage  Storage
	provider Provider
	logger   *slog.Logger
}

// New returns a router. A nil collaborator makes its command answer
// ERR_NOT_IMPLEMENTED.
func New(storage Storage, provider Provider, logger *slog.Logger) *Router {
	return &Router{storage: storage, provider: provider, logger: logger}
}

// ErrorBody renders the error reply for code.
func ErrorBody(code string) string {
	return `{"status":"error","code":"` + code + `"}`
}

// Dispatch routes one request for workspaceID.
func (r *Router) Dispatch(ctx context.Context, workspaceID string, env *envelope.Envelope, payload []byte) string {
	if env == nil || workspaceID == "" {
		return ErrorBody(CodeInvalidArgs)
	}

	switch env.CommandID {
	case envelope.CommandPing:
		return PongBody

	case envelope.CommandStorageRPC:
		if r.storage == nil {
			return ErrorBody(CodeNotImplemented)
		}
		method, params, code := parseStorageRequest(payload)
		if code != "" {
			return ErrorBody(code)
		}
		return r.storage.HandleRPC(ctx, workspaceID, method, params)

	case envelope.CommandProviderRPC:
		if r.provider == nil {
			return ErrorBody(CodeNotImplemented)
		}
		return r.provider.Dispatch(ctx, env, payload)

	case envelope.CommandEmbeddingRPC:
		return ErrorBody(CodeNotImplemented)

	default:
		r.logger.Warn("unsupported rpc command",
			"command", env.CommandID,
			"workspace", workspaceID,
			"trace_id", env.TraceID,
		)
		return ErrorBody(CodeUnsupportedCommand)
	}
}

// parseStorageRequest extracts method and params from a
// {"method": ..., "params": {...}} document. Missing or null params
// become "{}".
func parseStorageRequest(payload []byte) (method, params, code string) {
	if len(payload) == 0 {
		return "", "", CodeMissingPayload
	}
	var request map[string]json.RawMessage
	if err := json.Unmarshal(payload, &request); err != nil || request == nil {
		return "", "", CodeInvalidJSON
	}

	rawMethod, ok := request["method"]
	if !ok || json.Unmarshal(rawMethod, &method) != nil || method == "" {
		return "", "", CodeMissingMethod
	}

	rawParams := bytes.TrimSpace(request["params"])
	if len(rawParams) == 0 || bytes.Equal(rawParams, []byte("null")) {
		return method, "{}", ""
	}
	if rawParams[0] != '{' {
		return "", "", CodeInvalidParams
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, rawParams); err != nil {
		return "", "", CodeInvalidJSON
	}
	return method, compact.String(), ""
}
