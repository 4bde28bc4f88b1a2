// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/vault"
)

// DefaultPollInterval matches the engine's 50ms mailbox poll.
const DefaultPollInterval = 50 * time.Millisecond

// Engine polls the core plane's mailbox of a workspace cluster.
type Engine struct {
	cluster    *vault.Cluster
	dispatcher *Dispatcher
	clock      clock.Clock
	interval   time.Duration
	logger     *slog.Logger

	lastSeen uint32
	breached bool
}

// NewEngine polls cluster's core mailbox every interval, or every
// DefaultPollInterval when interval is not positive. It resumes after
// the core plane's last_processed_seq, so commands already handled by
// a previous engine are not replayed.
func NewEngine(cluster *vault.Cluster, dispatcher *Dispatcher, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		cluster:    cluster,
		dispatcher: dispatcher,
		clock:      clk,
		interval:   interval,
		logger:     logger,
		lastSeen:   cluster.Core().LastProcessedSeq(),
	}
}

// Step runs one poll iteration: the integrity check, then at most one
// pending command. ok is false when nothing was pending.
func (e *Engine) Step() (outcome Outcome, ok bool) {
	if CheckIntegrity(e.cluster) {
		if !e.breached {
			e.logger.Warn("core energy quota exceeded, brain plane locked",
				"workspace", e.cluster.WorkspaceID(),
				"consumed", e.cluster.Core().EnergyConsumed(),
				"quota", e.cluster.Core().EnergyQuota(),
			)
		}
		e.breached = true
	}

	core := e.cluster.Core()
	command, ok := core.PendingCommand(e.lastSeen)
	if !ok {
		return Outcome{}, false
	}
	outcome = e.dispatcher.Process(core, command)
	core.MarkProcessed(command.Seq)
	e.lastSeen = command.Seq

	e.logger.Debug("command processed",
		"workspace", e.cluster.WorkspaceID(),
		"seq", command.Seq,
		"command", command.ID,
		"result", outcome.Result,
		"status", outcome.Status,
	)
	return outcome, true
}

// Run marks the core plane READY and polls until the plane reaches
// HALT or ERROR, returning that status, or until ctx is cancelled.
// A plane left SUSPENDED by a previous run stays SUSPENDED.
func (e *Engine) Run(ctx context.Context) (vault.Status, error) {
	core := e.cluster.Core()
	core.Lock()
	if core.Status() != vault.StatusSuspended {
		core.SetStatus(vault.StatusReady)
	}
	core.Unlock()

	e.logger.Info("engine running",
		"workspace", e.cluster.WorkspaceID(),
		"interval", e.interval,
		"last_processed_seq", e.lastSeen,
	)

	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.Step()
		if status := core.Status(); status.Terminal() {
			e.logger.Info("engine stopping", "workspace", e.cluster.WorkspaceID(), "status", status)
			return status, nil
		}
		select {
		case <-ctx.Done():
			return core.Status(), ctx.Err()
		case <-ticker.C:
		}
	}
}
