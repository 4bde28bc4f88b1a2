// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/yai-labs/yai/lib/audit"
	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/dispatch"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/rpcrouter"
	"github.com/yai-labs/yai/lib/vault"
)

// Refusal codes of the authority gate.
const (
	CodeAuthorityDenied = "ERR_AUTHORITY_DENIED"
	CodeNotArmed        = "ERR_NOT_ARMED"
)

// Config configures a Plane. Cluster is required.
type Config struct {
	Cluster *vault.Cluster

	// Router serves admitted RPCs. Defaults to a router with no
	// storage and no provider gateway.
	Router *rpcrouter.Router

	// Audit receives evidence for admitted EXTERNAL requests.
	Audit audit.Sink

	Clock clock.Clock

	// Costs is charged to the core plane per request. The zero value
	// selects dispatch.DefaultCosts.
	Costs dispatch.Costs

	Logger *slog.Logger
}

// Plane is the control.Handler of one workspace engine.
type Plane struct {
	cluster *vault.Cluster
	router  *rpcrouter.Router
	audit   audit.Sink
	clock   clock.Clock
	costs   dispatch.Costs
	logger  *slog.Logger
}

// New returns a Plane over config.Cluster with defaults filled in.
func New(config Config) *Plane {
	p := &Plane{
		cluster: config.Cluster,
		router:  config.Router,
		audit:   config.Audit,
		clock:   config.Clock,
		costs:   config.Costs,
		logger:  config.Logger,
	}
	if p.audit == nil {
		p.audit = audit.Discard
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.costs == (dispatch.Costs{}) {
		p.costs = dispatch.DefaultCosts
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.router == nil {
		p.router = rpcrouter.New(nil, nil, p.logger)
	}
	return p
}

// GatePlane returns the plane whose authority lock governs command.
func GatePlane(command envelope.CommandID) vault.Plane {
	switch command {
	case envelope.CommandProviderRPC, envelope.CommandEmbeddingRPC:
		return vault.PlaneBrain
	default:
		return vault.PlaneCore
	}
}

// Handle serves one frame. Frames for another workspace are dropped.
func (p *Plane) Handle(ctx context.Context, request control.Request) (control.Reply, bool) {
	env := request.Envelope
	workspaceID := p.cluster.WorkspaceID()
	if !envelope.Validate(&env, workspaceID) {
		p.logger.Warn("dropping frame for another workspace",
			"ws_id", env.WorkspaceID,
			"workspace", workspaceID,
			"trace_id", env.TraceID,
		)
		return control.Reply{}, false
	}

	body := p.serve(ctx, &env, request.Payload)
	return control.ReplyTo(request, []byte(body)), true
}

func (p *Plane) serve(ctx context.Context, env *envelope.Envelope, payload []byte) string {
	class := envelope.Classify(env.CommandID)
	gate := p.cluster.Plane(GatePlane(env.CommandID))

	var evidence string
	if class.External() {
		var code string
		if evidence, code = p.admit(gate, env, class); code != "" {
			return rpcrouter.ErrorBody(code)
		}
	}

	body := p.router.Dispatch(ctx, env.WorkspaceID, env, payload)
	p.charge(class)
	if evidence != "" {
		body = withEvidence(body, evidence)
	}
	return body
}

// admit runs the authority gate and records evidence for an admitted
// external effect. It returns the evidence line, or the denial code
// when the request is refused.
func (p *Plane) admit(gate *vault.Vault, env *envelope.Envelope, class envelope.Class) (evidence, code string) {
	gate.Lock()
	locked := gate.Locked()
	if locked {
		dispatch.Deny(gate)
	}
	gate.Unlock()

	if locked {
		p.logger.Warn("external effect denied",
			"workspace", env.WorkspaceID,
			"plane", gate.Plane(),
			"command", env.CommandID,
			"trace_id", env.TraceID,
		)
		return "", CodeAuthorityDenied
	}
	if class.Irreversible() && !env.Armed() {
		p.logger.Warn("irreversible effect without arming",
			"workspace", env.WorkspaceID,
			"command", env.CommandID,
			"trace_id", env.TraceID,
		)
		return "", CodeNotArmed
	}

	record := audit.New(env.CommandID, env.WorkspaceID, env.TraceID, p.clock.Now())
	if err := p.audit.Append(record); err != nil {
		p.logger.Error("appending evidence failed",
			"workspace", env.WorkspaceID,
			"command", env.CommandID,
			"error", err,
		)
	}
	return record.String(), ""
}

// withEvidence adds an "evidence" member to a JSON object reply. Other
// bodies are returned unchanged.
func withEvidence(body, evidence string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") || !json.Valid([]byte(trimmed)) {
		return body
	}
	quoted, err := json.Marshal(evidence)
	if err != nil {
		return body
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return `{"evidence":` + string(quoted) + `}`
	}
	return `{` + inner + `,"evidence":` + string(quoted) + `}`
}

func (p *Plane) charge(class envelope.Class) {
	core := p.cluster.Core()
	core.Lock()
	defer core.Unlock()

	core.Tick()
	if consumed, breached := core.Charge(p.costs.For(class)); breached {
		p.logger.Warn("energy quota exceeded, plane locked",
			"workspace", core.WorkspaceID(),
			"consumed", consumed,
			"quota", core.EnergyQuota(),
		)
	}
}
