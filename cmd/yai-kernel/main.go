// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-kernel serves the root and kernel control sockets. It answers
// handshakes, pings and status queries itself and forwards every
// other command to the addressed workspace's engine through the core
// Vault mailbox.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/capability"
	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/dispatch"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/layout"
	"github.com/yai-labs/yai/lib/logging"
	"github.com/yai-labs/yai/lib/process"
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
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("yai-kernel", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("yai-kernel %s\n", version.Full())
		return nil
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.New("yai-kernel", level)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	contracts, err := capability.LoadFile(cfg.Paths.Contracts)
	if err != nil {
		return err
	}
	policy := dispatch.GrantRequested
	if contracts.Len() > 0 {
		policy = contracts.Narrow
	}
	logger.Info("contracts loaded", "path", cfg.Paths.Contracts, "count", contracts.Len())

	runtimeLayout := layout.New(cfg.Paths.RunDir)
	if err := runtimeLayout.EnsureLayout(); err != nil {
		return err
	}

	handler := kernel.New(kernel.Config{
		VaultDir:       cfg.Paths.VaultDir,
		Handshaker:     dispatch.NewHandshaker(cfg.Kernel.ServerVersion, policy),
		Clock:          clock.Real(),
		CommandTimeout: cfg.Kernel.CommandTimeout,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sockets := []string{runtimeLayout.RootSocket(), runtimeLayout.KernelSocket()}
	listeners := make([]*control.Listener, 0, len(sockets))
	for _, path := range sockets {
		listener, err := control.Listen(path)
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return err
		}
		listeners = append(listeners, listener)
	}

	errs := make(chan error, len(listeners))
	for _, listener := range listeners {
		server := control.NewServer(listener.Path(), cfg.Engine.PayloadCapacity, handler.Handle, logger)
		go func() { errs <- server.ServeListener(ctx, listener) }()
	}

	logger.Info("kernel running", "version", version.Info(), "sockets", sockets)

	var serveErrs []error
	for range listeners {
		if err := <-errs; err != nil {
			serveErrs = append(serveErrs, err)
			stop()
		}
	}
	logger.Info("kernel stopped")
	return errors.Join(serveErrs...)
}
