// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"sync/atomic"

	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/vault"
)

// GrantPolicy decides which of the requested capabilities a handshake
// grants to the named client.
type GrantPolicy func(clientName string, requested capability.Set) capability.Set

// GrantRequested grants exactly what was requested.
func GrantRequested(_ string, requested capability.Set) capability.Set { return requested }

// Handshaker answers handshake requests and numbers sessions. It is
// shared by the kernel control plane and the mailbox path.
type Handshaker struct {
	serverVersion uint32
	policy        GrantPolicy
	sessions      atomic.Uint32
}

// NewHandshaker returns a Handshaker reporting serverVersion. A nil
// policy grants what is requested.
func NewHandshaker(serverVersion uint32, policy GrantPolicy) *Handshaker {
	if policy == nil {
		policy = GrantRequested
	}
	return &Handshaker{serverVersion: serverVersion, policy: policy}
}

// Handshake builds the ack for request. Session ids start at 1.
func (h *Handshaker) Handshake(request envelope.HandshakeRequest) envelope.HandshakeAck {
	granted := h.policy(request.ClientName, capability.Set(request.CapabilitiesRequested))
	return envelope.HandshakeAck{
		ServerVersion:       h.serverVersion,
		CapabilitiesGranted: uint32(granted),
		SessionID:           h.sessions.Add(1),
		Status:              uint32(vault.StatusReady),
	}
}
