// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-boot prepares a machine for the runtime: it creates the run
// directory layout, recreates the Vault cluster of every named
// workspace and records a boot manifest. It must run before the
// kernel and the engines. Recreating a cluster resets its planes, so
// yai-boot must not run while an engine owns one of them.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/layout"
	"github.com/yai-labs/yai/lib/logging"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/statefile"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/version"
)

// systemWorkspace is always booted alongside the requested workspaces.
const systemWorkspace = "system"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		workspaces  []string
		quota       uint64
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("yai-boot", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringSliceVarP(&workspaces, "workspace", "w", nil, "workspace to boot (repeatable)")
	flagSet.Uint64Var(&quota, "quota", 0, "energy quota per plane (default from config)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("yai-boot %s\n", version.Full())
		return nil
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New("yai-boot", level)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if quota == 0 {
		quota = cfg.Engine.EnergyQuota
	}

	if os.Getuid() == 0 {
		logger.Warn("running as root; the runtime is meant to run as an unprivileged user")
	}

	runtimeLayout := layout.New(cfg.Paths.RunDir)
	if err := runtimeLayout.EnsureLayout(); err != nil {
		return err
	}

	targets := []string{systemWorkspace}
	for _, workspace := range workspaces {
		if workspace != systemWorkspace {
			targets = append(targets, workspace)
		}
	}

	traceID := statefile.TraceID(rand.Uint32())
	bootedAt := time.Now()
	for _, workspace := range targets {
		if err := bootWorkspace(runtimeLayout, cfg.Paths.VaultDir, workspace, traceID, quota, bootedAt); err != nil {
			return err
		}
		logger.Info("workspace booted",
			"workspace", workspace,
			"vault_dir", cfg.Paths.VaultDir,
			"trace_id", traceID,
			"energy_quota", quota,
		)
	}

	logger.Info("boot complete", "workspaces", targets, "trace_id", traceID)
	return nil
}

// bootWorkspace recreates the cluster of workspace and writes its
// manifest to the workspace run directory. The previous manifest is
// removed first, so a boot that fails part way leaves none behind.
func bootWorkspace(runtimeLayout layout.Layout, vaultDir, workspace, traceID string, quota uint64, bootedAt time.Time) error {
	if err := runtimeLayout.EnsureWorkspace(workspace); err != nil {
		return fmt.Errorf("preparing workspace %s: %w", workspace, err)
	}
	manifestPath := runtimeLayout.Manifest(workspace)
	if err := statefile.Remove(manifestPath); err != nil {
		return err
	}

	cluster, err := vault.CreateCluster(vaultDir, workspace, quota)
	if err != nil {
		return fmt.Errorf("creating vault cluster for %s: %w", workspace, err)
	}
	defer cluster.Close()

	var segments []string
	cluster.Each(func(plane vault.Plane, v *vault.Vault) {
		v.SetTraceID(traceID)
		segments = append(segments, vault.SegmentName(workspace, plane))
	})

	manifest := statefile.Manifest{
		Version:     version.Short(),
		WorkspaceID: workspace,
		TraceID:     traceID,
		PID:         os.Getpid(),
		BootedAt:    bootedAt,
		VaultDir:    vaultDir,
		Segments:    segments,
		EnergyQuota: quota,
	}
	if err := statefile.Write(manifestPath, manifest); err != nil {
		return fmt.Errorf("writing boot manifest for %s: %w", workspace, err)
	}
	return nil
}
