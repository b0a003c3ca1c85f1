// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/client"
	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/logging"
	"github.com/bureau-foundation/rendezvous/lib/process"
	"github.com/bureau-foundation/rendezvous/lib/version"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/transport"
)

const binary = "rendezvous-peer"

// demoPointerID is the pointerId of the synthetic pointer.
const demoPointerID = pointer.PointerID("1")

// demoSteps is the number of moves per revolution of the demo circle.
const demoSteps = 120

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(binary, err)
	}
}

func run(args []string) error {
	var (
		configPath   string
		signalURL    string
		clientID     string
		demoInterval string
		logLevel     string
		showVersion  bool
	)
	flagSet := pflag.NewFlagSet(binary, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to rendezvous.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&signalURL, "signal-url", "", "relay /signal websocket URL (overrides peer.signal_url)")
	flagSet.StringVar(&clientID, "client-id", "", "client id (default: generated)")
	flagSet.StringVar(&demoInterval, "demo-interval", "", "move a synthetic pointer at this interval, e.g. 50ms")
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
	applyFlags(cfg, signalURL, clientID, demoInterval, logLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Peer.ClientID == "" {
		cfg.Peer.ClientID = uuid.NewString()
	}
	interval, err := cfg.Peer.Duration()
	if err != nil {
		return err
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

	peer, err := client.New(ctx, client.Config{
		ClientID:  cfg.Peer.ClientID,
		SignalURL: cfg.Peer.SignalURL,
		ICE:       transport.ICEConfigFromSettings(cfg.ICE),
		Clock:     clock.Real(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	subscription := peer.Store().Subscribe(func(state pointer.State) {
		logger.Debug("state published", "clients", len(state.Clients), "pointers", countPointers(state))
	})
	defer subscription.Close()

	if interval > 0 {
		go runDemo(ctx, peer, clock.Real(), interval, logger)
	}

	logger.Info("starting rendezvous peer",
		"version", version.Info(),
		"client", cfg.Peer.ClientID,
		"signal_url", cfg.Peer.SignalURL,
	)
	err = peer.Run(ctx)
	if errors.Is(err, client.ErrSessionClosed) {
		logger.Info("session ended", "error", err)
		return nil
	}
	return err
}

func applyFlags(cfg *config.Config, signalURL, clientID, demoInterval, logLevel string) {
	if signalURL != "" {
		cfg.Peer.SignalURL = signalURL
	}
	if clientID != "" {
		cfg.Peer.ClientID = clientID
	}
	if demoInterval != "" {
		cfg.Peer.DemoInterval = demoInterval
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
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

// runDemo waits for the session, presses the synthetic pointer, and
// moves it every interval until ctx ends.
func runDemo(ctx context.Context, peer *client.Peer, c clock.Clock, interval time.Duration, logger *slog.Logger) {
	select {
	case <-peer.Ready():
	case <-ctx.Done():
		return
	}

	x, y := demoPosition(0)
	if _, err := peer.Dispatch(pointer.TypePointerStart, demoPointer(x, y)); err != nil {
		logger.Warn("demo pointer start failed", "error", err)
		return
	}

	ticker := c.NewTicker(interval)
	defer ticker.Stop()
	for step := 1; ; step++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		x, y := demoPosition(step)
		if _, err := peer.Dispatch(pointer.TypePointerMove, demoPointer(x, y)); err != nil {
			if errors.Is(err, client.ErrSessionClosed) {
				return
			}
			logger.Warn("demo pointer move failed", "error", err)
		}
	}
}

func demoPointer(x, y float64) pointer.Pointer {
	return pointer.Pointer{
		PointerID:   demoPointerID,
		PointerType: "mouse",
		IsDown:      true,
		X:           x,
		Y:           y,
	}
}

// demoPosition places step on a circle of radius 100 centred at
// (200, 200).
func demoPosition(step int) (float64, float64) {
	angle := 2 * math.Pi * float64(step%demoSteps) / demoSteps
	return 200 + 100*math.Cos(angle), 200 + 100*math.Sin(angle)
}

func countPointers(state pointer.State) int {
	count := 0
	for _, record := range state.Clients {
		count += len(record.Pointers)
	}
	return count
}
