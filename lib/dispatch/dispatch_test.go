// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yai-labs/yai/lib/audit"
	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/vault"
)

var epoch = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingSink keeps appended evidence in memory.
type recordingSink struct {
	mu      sync.Mutex
	records []audit.Evidence
	err     error
}

func (s *recordingSink) Append(e audit.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, e)
	return s.err
}

func newCluster(t *testing.T, quota uint64) *vault.Cluster {
	t.Helper()
	cluster, err := vault.CreateCluster(t.TempDir(), "dev", quota)
	if err != nil {
		t.Fatalf("CreateCluster: %v", err)
	}
	t.Cleanup(func() { cluster.Close() })
	return cluster
}

func newDispatcher(sink audit.Sink) *Dispatcher {
	return New(Config{
		Audit:  sink,
		Clock:  clock.Fake(epoch),
		Logger: testLogger(),
	})
}

func command(id envelope.CommandID) vault.Command {
	return vault.Command{Seq: 1, ID: id}
}

func TestProcessInternalCommands(t *testing.T) {
	tests := []struct {
		command  envelope.CommandID
		response string
		status   vault.Status
	}{
		{envelope.CommandPing, "PONG", vault.StatusReady},
		{envelope.CommandNoop, "OK", vault.StatusReady},
	}
	for _, test := range tests {
		t.Run(test.command.String(), func(t *testing.T) {
			core := newCluster(t, 100).Core()
			outcome := newDispatcher(nil).Process(core, command(test.command))

			if outcome.Result != 1 || outcome.Response != test.response || outcome.Status != test.status {
				t.Errorf("outcome = %+v", outcome)
			}
			if core.Response() != test.response || core.LastResult() != 1 || core.Status() != test.status {
				t.Errorf("vault = %+v", core.Snapshot())
			}
			if core.LogicalClock() != 1 || core.EnergyConsumed() != DefaultCosts.Internal {
				t.Errorf("clock=%d energy=%d", core.LogicalClock(), core.EnergyConsumed())
			}
		})
	}
}

func TestProcessUnknownCommand(t *testing.T) {
	core := newCluster(t, 100).Core()
	outcome := newDispatcher(nil).Process(core, command(envelope.CommandID(0x7777)))

	if outcome.Result != 0 || outcome.Status != vault.StatusError {
		t.Errorf("outcome = %+v", outcome)
	}
	if core.LastError() != "Unknown command id: 30583" {
		t.Errorf("last_error = %q", core.LastError())
	}
	if !core.Status().Terminal() {
		t.Error("unknown command did not leave a terminal status")
	}
}

func TestProcessExternalWhileLocked(t *testing.T) {
	for _, id := range []envelope.CommandID{envelope.CommandStorageRPC, envelope.CommandProviderRPC, envelope.CommandEmbeddingRPC} {
		t.Run(id.String(), func(t *testing.T) {
			core := newCluster(t, 100).Core()
			core.SetLocked(true)
			core.SetResponse("stale")
			sink := &recordingSink{}

			outcome := newDispatcher(sink).Process(core, command(id))

			if !outcome.Denied || outcome.Result != 0 || outcome.Status != vault.StatusSuspended {
				t.Errorf("outcome = %+v", outcome)
			}
			if core.LastError() != MessageAuthorityRequired {
				t.Errorf("last_error = %q", core.LastError())
			}
			if core.Response() != "" {
				t.Errorf("response = %q, want empty", core.Response())
			}
			if len(sink.records) != 0 {
				t.Errorf("denied command wrote %d evidence records", len(sink.records))
			}
			if core.EnergyConsumed() != 0 || core.LogicalClock() != 0 {
				t.Error("denied command was charged")
			}
		})
	}
}

func TestProcessExternalRecordsEvidence(t *testing.T) {
	core := newCluster(t, 100).Core()
	core.SetTraceID("boot-00000001")
	sink := &recordingSink{}

	newDispatcher(sink).Process(core, command(envelope.CommandStorageRPC))

	if len(sink.records) != 1 {
		t.Fatalf("evidence records = %d, want 1", len(sink.records))
	}
	record := sink.records[0]
	if !record.Irreversible || record.Class != "irreversible" || record.WorkspaceID != "dev" || record.TraceID != "boot-00000001" {
		t.Errorf("record = %+v", record)
	}
	if record.Timestamp != epoch.UnixMilli() {
		t.Errorf("timestamp = %d", record.Timestamp)
	}
	// The registered external ids have no mailbox handler, so they end
	// in the unknown-command branch with the evidence still in place.
	if !strings.HasPrefix(core.Response(), "effect=external;class=irreversible;") {
		t.Errorf("response = %q", core.Response())
	}
	if core.EnergyConsumed() != DefaultCosts.External {
		t.Errorf("energy = %d, want %d", core.EnergyConsumed(), DefaultCosts.External)
	}
}

func TestProcessEvidenceSinkFailure(t *testing.T) {
	core := newCluster(t, 100).Core()
	sink := &recordingSink{err: errors.New("disk full")}
	outcome := newDispatcher(sink).Process(core, command(envelope.CommandProviderRPC))
	if !strings.Contains(outcome.Response, "class=external;") {
		t.Errorf("response = %q", outcome.Response)
	}
}

func TestReconfigure(t *testing.T) {
	core := newCluster(t, 100).Core()
	d := newDispatcher(nil)

	core.SetStatus(vault.StatusReady)
	core.SetLocked(true)
	outcome := d.Process(core, command(envelope.CommandReconfigure))
	if outcome.Result != 0 || outcome.Status != vault.StatusSuspended || outcome.Error != MessageReconfigureState {
		t.Fatalf("reconfigure from READY = %+v", outcome)
	}
	if !core.Locked() {
		t.Fatal("failed reconfigure cleared the lock")
	}

	outcome = d.Process(core, command(envelope.CommandReconfigure))
	if outcome.Result != 1 || outcome.Status != vault.StatusHalt || outcome.Response != "RECONFIGURED" {
		t.Errorf("reconfigure from SUSPENDED = %+v", outcome)
	}
	if core.Locked() {
		t.Error("reconfigure did not clear the lock")
	}
}

func TestReconfigureAfterDenial(t *testing.T) {
	core := newCluster(t, 100).Core()
	d := newDispatcher(nil)
	core.SetLocked(true)

	d.Process(core, command(envelope.CommandStorageRPC))
	outcome := d.Process(core, command(envelope.CommandReconfigure))
	if outcome.Status != vault.StatusHalt || core.Locked() {
		t.Errorf("outcome = %+v, locked = %v", outcome, core.Locked())
	}
}

func TestProcessHandshake(t *testing.T) {
	core := newCluster(t, 100).Core()
	policy := capability.NewRegistry(capability.Contract{AgentID: "scout", Capabilities: capability.FSRead}).Narrow
	d := New(Config{Handshaker: NewHandshaker(7, policy), Logger: testLogger()})

	payload, _ := envelope.HandshakeRequest{ClientVersion: 1, CapabilitiesRequested: 0x1F, ClientName: "scout"}.MarshalBinary()
	outcome := d.Process(core, vault.Command{Seq: 1, ID: envelope.CommandHandshake, Payload: payload})
	want := "server_version=7;capabilities=0x00000001;session_id=1;status=READY"
	if outcome.Result != 1 || outcome.Response != want || outcome.Status != vault.StatusReady {
		t.Errorf("outcome = %+v, want response %q", outcome, want)
	}

	outcome = d.Process(core, vault.Command{Seq: 2, ID: envelope.CommandHandshake, Payload: payload[:10]})
	if outcome.Result != 0 || outcome.Error != MessageHandshakeMalformed || outcome.Status.Terminal() {
		t.Errorf("malformed handshake = %+v", outcome)
	}
}

func TestProcessStatusKeepsState(t *testing.T) {
	core := newCluster(t, 100).Core()
	core.SetStatus(vault.StatusSuspended)
	core.SetLocked(true)

	outcome := newDispatcher(nil).Process(core, command(envelope.CommandStatus))
	if outcome.Status != vault.StatusSuspended || outcome.Result != 1 {
		t.Errorf("outcome = %+v", outcome)
	}
	if !strings.HasPrefix(outcome.Response, "status=SUSPENDED;lock=true;") {
		t.Errorf("response = %q", outcome.Response)
	}
}

func TestChargeBreachLocksPlane(t *testing.T) {
	core := newCluster(t, 2).Core()
	d := newDispatcher(nil)

	d.Process(core, command(envelope.CommandPing))
	d.Process(core, command(envelope.CommandPing))
	if core.Locked() {
		t.Fatal("locked at the quota")
	}
	d.Process(core, command(envelope.CommandPing))
	if !core.Locked() {
		t.Fatal("plane not locked after exceeding the quota")
	}

	outcome := d.Process(core, command(envelope.CommandProviderRPC))
	if !outcome.Denied {
		t.Error("external command allowed on an exhausted plane")
	}
}

func TestHandshakerDefaultPolicy(t *testing.T) {
	h := NewHandshaker(envelope.Version, nil)
	ack := h.Handshake(envelope.HandshakeRequest{CapabilitiesRequested: 0x13})
	if ack.CapabilitiesGranted != 0x13 || ack.SessionID != 1 || ack.Status != uint32(vault.StatusReady) {
		t.Errorf("ack = %+v", ack)
	}
	if next := h.Handshake(envelope.HandshakeRequest{}); next.SessionID != 2 {
		t.Errorf("second session id = %d", next.SessionID)
	}
}

func TestCostsFor(t *testing.T) {
	costs := Costs{Internal: 2, External: 30}
	if costs.For(envelope.Classify(envelope.CommandNoop)) != 2 || costs.For(envelope.Classify(envelope.CommandStorageRPC)) != 30 {
		t.Error("cost lookup wrong")
	}
}
