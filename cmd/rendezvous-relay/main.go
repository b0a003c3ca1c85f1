// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/logging"
	"github.com/bureau-foundation/rendezvous/lib/process"
	"github.com/bureau-foundation/rendezvous/lib/version"
	"github.com/bureau-foundation/rendezvous/relay"
	"github.com/bureau-foundation/rendezvous/transport"
)

const binary = "rendezvous-relay"

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(binary, err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		listen      string
		logLevel    string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet(binary, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to rendezvous.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address (overrides relay.listen_address)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log.level)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print(binary)
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Relay.ListenAddress = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub, err := relay.NewHub(relay.HubConfig{
		Clock:        clock.Real(),
		Logger:       logger.With("component", "hub"),
		HistoryLimit: cfg.Relay.HistoryLimit,
		RateLimit:    cfg.Relay.ActionRate,
	})
	if err != nil {
		return err
	}
	defer hub.Close()

	server := relay.NewServer(relay.ServerConfig{
		Hub:        hub,
		Rendezvous: relay.NewRendezvous(cfg.Relay.PairBacklog, logger.With("component", "rendezvous")),
		ICE:        transport.ICEConfigFromSettings(cfg.ICE),
		Logger:     logger,
	})

	listener, err := net.Listen("tcp", cfg.Relay.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Relay.ListenAddress, err)
	}

	logger.Info("starting rendezvous relay",
		"version", version.Info(),
		"environment", cfg.Environment,
		"ice_servers", len(cfg.ICE.Servers),
		"rate_per_second", cfg.Relay.ActionRate.PerSecond,
	)
	if err := server.Serve(ctx, listener); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}

// loadConfig reads --config, then RENDEZVOUS_CONFIG, then falls back to
// the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}
