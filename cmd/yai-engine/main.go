// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-engine owns the Vault cluster of one workspace. It polls the
// core plane's mailbox, runs the authority gate and the RPC router on
// its workspace control socket, and appends effect evidence to the
// workspace audit log.
//
// On SIGINT or SIGTERM the engine puts the core plane into ERROR with
// the authority lock set before exiting, so no further external effect
// is admitted until the workspace is booted again.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/audit"
	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/dispatch"
	"github.com/yai-labs/yai/lib/engine"
	"github.com/yai-labs/yai/lib/layout"
	"github.com/yai-labs/yai/lib/logging"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/provider"
	"github.com/yai-labs/yai/lib/rpcrouter"
	"github.com/yai-labs/yai/lib/statefile"
	"github.com/yai-labs/yai/lib/storage"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		workspace   string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("yai-engine", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVarP(&workspace, "workspace", "w", "system", "workspace owned by this engine")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("yai-engine %s\n", version.Full())
		return nil
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New("yai-engine", level).With("workspace", workspace)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := layout.ValidateWorkspaceID(workspace); err != nil {
		return err
	}

	runtimeLayout := layout.New(cfg.Paths.RunDir)
	if err := runtimeLayout.EnsureWorkspace(workspace); err != nil {
		return err
	}

	cluster, err := vault.AttachCluster(cfg.Paths.VaultDir, workspace)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return fmt.Errorf("workspace %s has no vault cluster (run yai-boot -w %s first): %w", workspace, workspace, err)
		}
		return err
	}
	defer cluster.Close()
	checkManifest(runtimeLayout.Manifest(workspace), cluster.Core(), logger)

	auditLog, err := audit.Open(runtimeLayout.AuditLog(workspace))
	if err != nil {
		return err
	}
	defer auditLog.Close()

	contracts, err := capability.LoadFile(cfg.Paths.Contracts)
	if err != nil {
		return err
	}

	clk := clock.Real()
	store, err := storage.Open(cfg.Storage.Database, cfg.Storage.PoolSize, clk, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	policy := dispatch.GrantRequested
	if contracts.Len() > 0 {
		policy = contracts.Narrow
	}
	costs := dispatch.Costs{Internal: cfg.Engine.InternalCost, External: cfg.Engine.ExternalCost}

	dispatcher := dispatch.New(dispatch.Config{
		Handshaker: dispatch.NewHandshaker(cfg.Kernel.ServerVersion, policy),
		Audit:      auditLog,
		Clock:      clk,
		Costs:      costs,
		Logger:     logger,
	})
	poller := dispatch.NewEngine(cluster, dispatcher, clk, cfg.Engine.PollInterval, logger)

	rpcPlane := engine.New(engine.Config{
		Cluster: cluster,
		Router:  rpcrouter.New(store, provider.NewGateway(contracts, logger), logger),
		Audit:   auditLog,
		Clock:   clk,
		Costs:   costs,
		Logger:  logger,
	})

	signals, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(signals)
	defer cancel()

	server := control.NewServer(runtimeLayout.WorkspaceSocket(workspace), cfg.Engine.PayloadCapacity, rpcPlane.Handle, logger)
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx) }()

	logger.Info("engine started",
		"version", version.Info(),
		"socket", runtimeLayout.WorkspaceSocket(workspace),
		"audit_log", auditLog.Path(),
	)

	status, runErr := poller.Run(ctx)
	cancel()
	serveErr := <-served

	if signals.Err() != nil {
		dispatch.EmergencyLock(cluster.Core())
		logger.Warn("engine interrupted, core plane locked")
		return serveErr
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	logger.Info("engine stopped", "status", status)
	return errors.Join(runErr, serveErr)
}

// checkManifest compares the boot manifest with the attached core
// plane. A missing or different manifest means the cluster was not
// created by the last yai-boot; the engine still runs, but says so.
func checkManifest(path string, core *vault.Vault, logger *slog.Logger) {
	manifest, found, err := statefile.ReadManifest(path)
	switch {
	case err != nil:
		logger.Warn("reading boot manifest failed", "path", path, "error", err)
		return
	case !found:
		logger.Warn("no boot manifest for workspace", "path", path)
		return
	}
	for _, mismatch := range manifest.Mismatches(core.StoredWorkspaceID(), core.TraceID(), core.EnergyQuota()) {
		logger.Warn("vault does not match boot manifest", "path", path, "mismatch", mismatch)
	}
	logger.Info("boot manifest",
		"trace_id", manifest.TraceID,
		"booted_at", manifest.BootedAt,
		"boot_version", manifest.Version,
	)
}
