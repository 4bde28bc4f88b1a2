// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/dispatch"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/layout"
	"github.com/yai-labs/yai/lib/rpcrouter"
	"github.com/yai-labs/yai/lib/vault"
)

// DefaultCommandTimeout bounds the wait for an engine to process a
// submitted command.
const DefaultCommandTimeout = 5 * time.Second

// Error codes carried in kernel replies.
const (
	CodeWorkspaceNotFound = "ERR_WORKSPACE_NOT_FOUND"
	CodeEngineTimeout     = "ERR_ENGINE_TIMEOUT"
	CodeCommandFailed     = "ERR_COMMAND_FAILED"
	CodePayloadTooLarge   = "ERR_PAYLOAD_TOO_LARGE"
	CodeVault             = "ERR_VAULT"
)

type pong struct {
	Status string `json:"status"`
	Plane  string `json:"plane,omitempty"`
}

type statusReply struct {
	Status string         `json:"status"`
	Vault  vault.Snapshot `json:"vault"`
}

type commandReply struct {
	Status   string       `json:"status"`
	Code     string       `json:"code,omitempty"`
	State    vault.Status `json:"state"`
	Response string       `json:"response,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Config configures a Kernel. Zero fields take the defaults noted.
type Config struct {
	// VaultDir holds the workspace segments. Defaults to
	// vault.DefaultDir.
	VaultDir string

	// Handshaker answers HANDSHAKE on the control socket.
	Handshaker *dispatch.Handshaker

	Clock clock.Clock

	// CommandTimeout bounds the wait for an engine to process a
	// mailbox command. Defaults to DefaultCommandTimeout.
	CommandTimeout time.Duration

	Logger *slog.Logger
}

// Kernel is a control.Handler for the root and kernel sockets.
type Kernel struct {
	vaultDir   string
	handshaker *dispatch.Handshaker
	clock      clock.Clock
	timeout    time.Duration
	logger     *slog.Logger
}

// New returns a Kernel with config's defaults filled in.
func New(config Config) *Kernel {
	k := &Kernel{
		vaultDir:   config.VaultDir,
		handshaker: config.Handshaker,
		clock:      config.Clock,
		timeout:    config.CommandTimeout,
		logger:     config.Logger,
	}
	if k.vaultDir == "" {
		k.vaultDir = vault.DefaultDir
	}
	if k.handshaker == nil {
		k.handshaker = dispatch.NewHandshaker(envelope.Version, nil)
	}
	if k.clock == nil {
		k.clock = clock.Real()
	}
	if k.timeout <= 0 {
		k.timeout = DefaultCommandTimeout
	}
	if k.logger == nil {
		k.logger = slog.New(slog.DiscardHandler)
	}
	return k
}

// Handle serves one request. A malformed HANDSHAKE closes the
// connection without a reply.
func (k *Kernel) Handle(ctx context.Context, request control.Request) (control.Reply, bool) {
	env := request.Envelope

	switch env.CommandID {
	case envelope.CommandHandshake:
		var hello envelope.HandshakeRequest
		if err := hello.UnmarshalBinary(request.Payload); err != nil {
			k.logger.Warn("malformed handshake",
				"ws_id", env.WorkspaceID,
				"payload_len", len(request.Payload),
			)
			return control.Reply{}, false
		}
		ack := k.handshaker.Handshake(hello)
		k.logger.Info("handshake",
			"client", hello.ClientName,
			"client_version", hello.ClientVersion,
			"session_id", ack.SessionID,
			"granted", ack.CapabilitiesGranted,
		)
		data, err := ack.MarshalBinary()
		if err != nil {
			k.logger.Error("encoding handshake ack failed",
				"session_id", ack.SessionID,
				"error", err,
			)
			return control.Reply{}, false
		}
		return control.ReplyTo(request, data), true

	case envelope.CommandPing:
		body := pong{Status: "pong"}
		if env.WorkspaceID == layout.RootWorkspace {
			body.Plane = layout.RootWorkspace
		}
		return k.reply(request, body), true

	case envelope.CommandStatus:
		return control.ReplyTo(request, []byte(k.status(env.WorkspaceID))), true

	default:
		return control.ReplyTo(request, []byte(k.submit(ctx, env, request.Payload))), true
	}
}

func (k *Kernel) status(workspaceID string) string {
	if workspaceID == "" {
		return rpcrouter.ErrorBody(rpcrouter.CodeInvalidArgs)
	}
	v, code := k.attach(workspaceID)
	if v == nil {
		return rpcrouter.ErrorBody(code)
	}
	defer v.Close()
	return encode(statusReply{Status: "ok", Vault: v.Snapshot()})
}

// submit hands env's command to the workspace engine and waits for the
// outcome. The producer guard stays held until the outcome is read, so
// concurrent connections to one workspace are answered in turn.
func (k *Kernel) submit(ctx context.Context, env envelope.Envelope, payload []byte) string {
	if env.WorkspaceID == "" {
		return rpcrouter.ErrorBody(rpcrouter.CodeInvalidArgs)
	}
	if len(payload) > vault.PayloadSize {
		return rpcrouter.ErrorBody(CodePayloadTooLarge)
	}
	v, code := k.attach(env.WorkspaceID)
	if v == nil {
		return rpcrouter.ErrorBody(code)
	}
	defer v.Close()

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	outcome, err := v.Exchange(ctx, k.clock, env.CommandID, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			k.logger.Warn("engine did not process command",
				"workspace", env.WorkspaceID,
				"command", env.CommandID,
				"trace_id", env.TraceID,
				"timeout", k.timeout,
			)
			return rpcrouter.ErrorBody(CodeEngineTimeout)
		}
		k.logger.Error("submitting command failed",
			"workspace", env.WorkspaceID,
			"command", env.CommandID,
			"error", err,
		)
		return rpcrouter.ErrorBody(CodeVault)
	}

	if outcome.OK() {
		return encode(commandReply{Status: "ok", State: outcome.Status, Response: outcome.Response})
	}
	return encode(commandReply{
		Status:  "error",
		Code:    CodeCommandFailed,
		State:   outcome.Status,
		Message: outcome.Error,
	})
}

func (k *Kernel) attach(workspaceID string) (*vault.Vault, string) {
	v, err := vault.Attach(k.vaultDir, workspaceID, vault.PlaneCore)
	switch {
	case err == nil:
		return v, ""
	case errors.Is(err, vault.ErrNotFound):
		return nil, CodeWorkspaceNotFound
	case errors.Is(err, vault.ErrInvalidName):
		return nil, rpcrouter.CodeInvalidArgs
	default:
		k.logger.Error("attaching vault failed", "workspace", workspaceID, "error", err)
		return nil, CodeVault
	}
}

func (k *Kernel) reply(request control.Request, body any) control.Reply {
	return control.ReplyTo(request, []byte(encode(body)))
}

func encode(body any) string {
	data, err := json.Marshal(body)
	if err != nil {
		return rpcrouter.ErrorBody(CodeVault)
	}
	return string(data)
}
