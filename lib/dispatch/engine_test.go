// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/envelope"
	"github.com/yai-labs/yai/lib/testutil"
	"github.com/yai-labs/yai/lib/vault"
)

func TestEngineStep(t *testing.T) {
	cluster := newCluster(t, 100)
	engine := NewEngine(cluster, newDispatcher(nil), clock.Fake(epoch), 0, testLogger())

	if _, ok := engine.Step(); ok {
		t.Fatal("Step processed a command on an empty mailbox")
	}

	seq, err := cluster.Core().AdvanceCommand(envelope.CommandPing)
	if err != nil {
		t.Fatal(err)
	}
	outcome, ok := engine.Step()
	if !ok || outcome.Response != "PONG" {
		t.Fatalf("Step = %+v, %v", outcome, ok)
	}
	if cluster.Core().LastProcessedSeq() != seq {
		t.Errorf("last_processed_seq = %d, want %d", cluster.Core().LastProcessedSeq(), seq)
	}
	if _, ok := engine.Step(); ok {
		t.Error("command processed twice")
	}
}

func TestEngineResumesFromProcessedSeq(t *testing.T) {
	cluster := newCluster(t, 100)
	core := cluster.Core()
	core.AdvanceCommand(envelope.CommandNoop)
	core.MarkProcessed(1)
	core.AdvanceCommand(envelope.CommandPing)

	engine := NewEngine(cluster, newDispatcher(nil), clock.Fake(epoch), 0, testLogger())
	outcome, ok := engine.Step()
	if !ok || outcome.Command != envelope.CommandPing {
		t.Errorf("Step = %+v, %v; want the unprocessed PING", outcome, ok)
	}
}

func TestEngineStepLocksBrainOnBreach(t *testing.T) {
	cluster := newCluster(t, 1)
	cluster.Core().Charge(2)
	engine := NewEngine(cluster, newDispatcher(nil), clock.Fake(epoch), 0, testLogger())
	engine.Step()
	if !cluster.Brain().Locked() {
		t.Error("brain plane not locked")
	}
}

func TestEngineRunStopsOnHalt(t *testing.T) {
	cluster := newCluster(t, 100)
	core := cluster.Core()
	fake := clock.Fake(epoch)
	engine := NewEngine(cluster, newDispatcher(nil), fake, DefaultPollInterval, testLogger())

	type result struct {
		status vault.Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := engine.Run(context.Background())
		done <- result{status, err}
	}()

	fake.WaitForTimers(1)
	if core.Status() != vault.StatusReady {
		t.Fatalf("status after start = %s", core.Status())
	}

	submitAndWait(t, fake, core, envelope.CommandReconfigure)
	if core.Status() != vault.StatusSuspended {
		t.Fatalf("status = %s after RECONFIGURE from READY", core.Status())
	}

	core.Submit(envelope.CommandReconfigure, nil)
	fake.Advance(DefaultPollInterval)

	got := testutil.RequireReceive(t, done, 5*time.Second, "engine exit")
	if got.err != nil || got.status != vault.StatusHalt {
		t.Errorf("Run = %s, %v", got.status, got.err)
	}
}

func TestEngineRunCancelled(t *testing.T) {
	cluster := newCluster(t, 100)
	fake := clock.Fake(epoch)
	engine := NewEngine(cluster, newDispatcher(nil), fake, DefaultPollInterval, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(ctx)
		done <- err
	}()
	fake.WaitForTimers(1)
	cancel()

	if err := testutil.RequireReceive(t, done, 5*time.Second, "engine exit"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

// submitAndWait submits id and advances the fake clock until the
// engine has processed it.
func submitAndWait(t *testing.T, fake *clock.FakeClock, core *vault.Vault, id envelope.CommandID) {
	t.Helper()
	seq, err := core.Submit(id, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for core.LastProcessedSeq() != seq {
		if time.Now().After(deadline) {
			t.Fatalf("command %d not processed", seq)
		}
		fake.Advance(DefaultPollInterval)
		time.Sleep(time.Millisecond)
	}
}
