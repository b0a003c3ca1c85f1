// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/rendezvous/lib/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Relay.ListenAddress != config.Default().Relay.ListenAddress {
		t.Errorf("listen address = %q, want default", cfg.Relay.ListenAddress)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous.yaml")
	if err := os.WriteFile(path, []byte("relay:\n  listen_address: \":9191\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvironmentVariable, path)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Relay.ListenAddress != ":9191" {
		t.Errorf("listen address = %q, want :9191", cfg.Relay.ListenAddress)
	}
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	if err := run([]string{"--log-level", "loud"}); err == nil {
		t.Error("run accepted --log-level loud")
	}
	if err := run([]string{"stray"}); err == nil {
		t.Error("run accepted a positional argument")
	}
}
