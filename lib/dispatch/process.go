// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/yai-labs/yai/lib/audit"
	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/vault"
)

const (
	MessageAuthorityRequired  = "External effect denied: authority required"
	MessageReconfigureState   = "Reconfigure requires SUSPENDED state"
	MessageHandshakeMalformed = "Handshake payload must be 40 bytes"
)

// Costs is the energy charged per command class.
type Costs struct {
	Internal uint64
	External uint64
}

// DefaultCosts applies when no costs are configured.
var DefaultCosts = Costs{Internal: 1, External: 10}

// For returns the cost of a command of class.
func (c Costs) For(class envelope.Class) uint64 {
	if class.External() {
		return c.External
	}
	return c.Internal
}

// Outcome is what Process wrote to the plane.
type Outcome struct {
	Command  envelope.CommandID
	Result   uint32
	Status   vault.Status
	Response string
	Error    string
	Denied   bool
}

// Succeeded reports last_result == 1.
func (o Outcome) Succeeded() bool { return o.Result == 1 }

// Config configures a Dispatcher. Every field is optional.
type Config struct {
	// Handshaker answers mailbox HANDSHAKE commands. Defaults to one
	// reporting envelope.Version that grants what is requested.
	Handshaker *Handshaker

	// Audit receives evidence for EXTERNAL commands. Defaults to
	// audit.Discard.
	Audit audit.Sink

	// Clock timestamps evidence. Defaults to the real clock.
	Clock clock.Clock

	// Costs is the energy charged per command class. The zero value
	// selects DefaultCosts.
	Costs Costs

	Logger *slog.Logger
}

// Dispatcher applies mailbox commands to vaults.
type Dispatcher struct {
	handshaker *Handshaker
	audit      audit.Sink
	clock      clock.Clock
	costs      Costs
	logger     *slog.Logger
}

// New returns a Dispatcher with config's defaults filled in.
func New(config Config) *Dispatcher {
	d := &Dispatcher{
		handshaker: config.Handshaker,
		audit:      config.Audit,
		clock:      config.Clock,
		costs:      config.Costs,
		logger:     config.Logger,
	}
	if d.handshaker == nil {
		d.handshaker = NewHandshaker(envelope.Version, nil)
	}
	if d.audit == nil {
		d.audit = audit.Discard
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.costs == (Costs{}) {
		d.costs = DefaultCosts
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Deny records an authority denial on v: result 0, the denial message
// and SUSPENDED. The caller holds v's lock.
func Deny(v *vault.Vault) {
	v.SetResponse("")
	v.SetLastResult(0)
	v.SetLastError(MessageAuthorityRequired)
	v.SetStatus(vault.StatusSuspended)
}

// Process applies command to v and returns the outcome. A denied
// command is not executed, so it neither ticks the clock nor spends
// energy.
func (d *Dispatcher) Process(v *vault.Vault, command vault.Command) Outcome {
	v.Lock()
	defer v.Unlock()

	previous := v.Status()
	class := envelope.Classify(command.ID)

	v.SetLastResult(0)
	v.SetResponse("")
	v.SetLastError("")

	if class.External() {
		if v.Locked() {
			Deny(v)
			d.logger.Warn("external command denied",
				"workspace", v.WorkspaceID(),
				"plane", v.Plane(),
				"command", command.ID,
				"seq", command.Seq,
			)
			return d.outcome(v, command.ID, true)
		}
		evidence := audit.New(command.ID, v.WorkspaceID(), v.TraceID(), d.clock.Now())
		v.SetResponse(evidence.String())
		if err := d.audit.Append(evidence); err != nil {
			d.logger.Error("appending evidence failed",
				"workspace", v.WorkspaceID(),
				"command", command.ID,
				"error", err,
			)
		}
	}

	v.SetStatus(vault.StatusRunning)
	switch command.ID {
	case envelope.CommandPing:
		d.succeed(v, "PONG", vault.StatusReady)

	case envelope.CommandNoop:
		d.succeed(v, "OK", vault.StatusReady)

	case envelope.CommandReconfigure:
		if previous != vault.StatusSuspended {
			v.SetLastError(MessageReconfigureState)
			v.SetLastResult(0)
			v.SetStatus(vault.StatusSuspended)
			break
		}
		v.SetLocked(false)
		d.succeed(v, "RECONFIGURED", vault.StatusHalt)

	case envelope.CommandHandshake:
		var request envelope.HandshakeRequest
		if err := request.UnmarshalBinary(command.Payload); err != nil {
			v.SetLastError(MessageHandshakeMalformed)
			v.SetLastResult(0)
			v.SetStatus(vault.StatusReady)
			break
		}
		ack := d.handshaker.Handshake(request)
		d.succeed(v, FormatAck(ack), vault.StatusReady)

	case envelope.CommandStatus:
		d.succeed(v, StatusLine(v, previous), previous)

	default:
		v.SetLastError(fmt.Sprintf("Unknown command id: %d", uint32(command.ID)))
		v.SetLastResult(0)
		v.SetStatus(vault.StatusError)
	}

	v.Tick()
	if consumed, breached := v.Charge(d.costs.For(class)); breached {
		d.logger.Warn("energy quota exceeded, plane locked",
			"workspace", v.WorkspaceID(),
			"plane", v.Plane(),
			"consumed", consumed,
			"quota", v.EnergyQuota(),
		)
	}
	return d.outcome(v, command.ID, false)
}

func (d *Dispatcher) succeed(v *vault.Vault, response string, status vault.Status) {
	v.SetResponse(response)
	v.SetLastResult(1)
	v.SetStatus(status)
}

func (d *Dispatcher) outcome(v *vault.Vault, command envelope.CommandID, denied bool) Outcome {
	return Outcome{
		Command:  command,
		Result:   v.LastResult(),
		Status:   v.Status(),
		Response: v.Response(),
		Error:    v.LastError(),
		Denied:   denied,
	}
}

// FormatAck renders a handshake ack for the response buffer.
func FormatAck(ack envelope.HandshakeAck) string {
	return fmt.Sprintf("server_version=%d;capabilities=0x%08x;session_id=%d;status=%s",
		ack.ServerVersion, ack.CapabilitiesGranted, ack.SessionID, vault.Status(ack.Status))
}

// StatusLine summarizes a plane for the STATUS command. status is the
// state to report, since Process has already moved v to RUNNING.
func StatusLine(v *vault.Vault, status vault.Status) string {
	return fmt.Sprintf("status=%s;lock=%t;energy=%d/%d;clock=%d;seq=%d",
		status, v.Locked(), v.EnergyConsumed(), v.EnergyQuota(), v.LogicalClock(), v.CommandSeq())
}
