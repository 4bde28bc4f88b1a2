// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yai-labs/yai/lib/rpcrouter"
)

type keyParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type listParams struct {
	Prefix string `json:"prefix"`
}

type getReply struct {
	Status string          `json:"status"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
}

type putReply struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

type deleteReply struct {
	Status  string `json:"status"`
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

type listReply struct {
	Status string   `json:"status"`
	Keys   []string `json:"keys"`
}

// HandleRPC serves one STORAGE_RPC method. params is the JSON object
// forwarded by the router.
func (s *Store) HandleRPC(ctx context.Context, workspaceID, method, params string) string {
	switch method {
	case "get":
		var p keyParams
		if !decodeKey(params, &p) {
			return rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)
		}
		value, err := s.Get(ctx, workspaceID, p.Key)
		if errors.Is(err, ErrKeyNotFound) {
			return rpcrouter.ErrorBody(CodeNotFound)
		}
		if err != nil {
			return s.failure(method, workspaceID, err)
		}
		return encode(getReply{Status: "ok", Key: p.Key, Value: value})

	case "put":
		var p keyParams
		if !decodeKey(params, &p) || len(p.Value) == 0 {
			return rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)
		}
		if err := s.Put(ctx, workspaceID, p.Key, p.Value); err != nil {
			return s.failure(method, workspaceID, err)
		}
		return encode(putReply{Status: "ok", Key: p.Key})

	case "delete":
		var p keyParams
		if !decodeKey(params, &p) {
			return rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)
		}
		deleted, err := s.Delete(ctx, workspaceID, p.Key)
		if err != nil {
			return s.failure(method, workspaceID, err)
		}
		return encode(deleteReply{Status: "ok", Key: p.Key, Deleted: deleted})

	case "list":
		var p listParams
		if json.Unmarshal([]byte(params), &p) != nil {
			return rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)
		}
		keys, err := s.List(ctx, workspaceID, p.Prefix)
		if err != nil {
			return s.failure(method, workspaceID, err)
		}
		return encode(listReply{Status: "ok", Keys: keys})

	default:
		return rpcrouter.ErrorBody(CodeUnknownMethod)
	}
}

func decodeKey(params string, p *keyParams) bool {
	return json.Unmarshal([]byte(params), p) == nil && p.Key != ""
}

func (s *Store) failure(method, workspaceID string, err error) string {
	s.logger.Error("storage rpc failed", "method", method, "workspace", workspaceID, "error", err)
	return rpcrouter.ErrorBody(CodeStorage)
}

func encode(reply any) string {
	data, err := json.Marshal(reply)
	if err != nil {
		return rpcrouter.ErrorBody(CodeStorage)
	}
	return string(data)
}
