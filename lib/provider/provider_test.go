// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/rpcrouter"
)

func testGateway() *Gateway {
	contracts := capability.NewRegistry(
		capability.Contract{AgentID: "scout", Capabilities: capability.LLMDirect | capability.FSRead},
		capability.Contract{AgentID: "reader", Capabilities: capability.FSRead},
	)
	return NewGateway(contracts, nil)
}

func TestDispatch(t *testing.T) {
	gateway := testGateway()
	gateway.Register("broken", BackendFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("backend offline")
	}))
	env := envelope.New(envelope.CommandProviderRPC, "dev", "trace-7")

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"echo", `{"agent_id":"scout","provider":"echo","input":"hello"}`,
			`{"status":"ok","provider":"echo","output":"hello","trace_id":"trace-7"}`},
		{"no capability", `{"agent_id":"reader","provider":"echo","input":"x"}`, rpcrouter.ErrorBody(CodeCapabilityDenied)},
		{"unknown agent", `{"agent_id":"ghost","provider":"echo","input":"x"}`, rpcrouter.ErrorBody(CodeCapabilityDenied)},
		{"unknown backend", `{"agent_id":"scout","provider":"gpt","input":"x"}`, rpcrouter.ErrorBody(CodeProviderUnavailable)},
		{"backend failure", `{"agent_id":"scout","provider":"broken","input":"x"}`, rpcrouter.ErrorBody(CodeProviderFailed)},
		{"missing agent", `{"provider":"echo"}`, rpcrouter.ErrorBody(rpcrouter.CodeInvalidParams)},
		{"bad json", `{"agent_id":`, rpcrouter.ErrorBody(rpcrouter.CodeInvalidJSON)},
		{"empty", ``, rpcrouter.ErrorBody(rpcrouter.CodeMissingPayload)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := gateway.Dispatch(context.Background(), &env, []byte(test.payload)); got != test.want {
				t.Errorf("Dispatch = %s, want %s", got, test.want)
			}
		})
	}
}

func TestBackends(t *testing.T) {
	gateway := testGateway()
	gateway.Register("alt", Echo)
	if got, want := gateway.Backends(), []string{"alt", "echo"}; !slices.Equal(got, want) {
		t.Errorf("Backends = %v, want %v", got, want)
	}
}
