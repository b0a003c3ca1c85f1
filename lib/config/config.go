// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "RENDEZVOUS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the master configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Log   LogConfig   `yaml:"log"`
	ICE   ICEConfig   `yaml:"ice"`
	Relay RelayConfig `yaml:"relay"`
	Peer  PeerConfig  `yaml:"peer"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the per-environment replacements. Nil sections are
// left alone.
type Overrides struct {
	Log *LogConfig `yaml:"log,omitempty"`
	ICE *ICEConfig `yaml:"ice,omitempty"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error")
// and format ("auto", "text", "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ICEConfig lists STUN/TURN servers for candidate gathering.
type ICEConfig struct {
	Servers []ICEServer `yaml:"servers"`

	// IncludeLoopback adds 127.0.0.1 host candidates. Needed when
	// relay and peer share a machine with no other interface.
	IncludeLoopback bool `yaml:"include_loopback"`
}

// ICEServer is one STUN or TURN entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// RelayConfig configures rendezvous-relay.
type RelayConfig struct {
	// ListenAddress is the HTTP listen address for /signal, /pair,
	// /state, and /healthz.
	ListenAddress string `yaml:"listen_address"`

	// PairBacklog bounds how many signaling messages the rendezvous
	// stores for an endpoint whose partner has not joined yet.
	PairBacklog int `yaml:"pair_backlog"`

	// ActionRate limits inbound actions per client. PerSecond 0
	// disables limiting.
	ActionRate RateConfig `yaml:"action_rate"`

	// HistoryLimit bounds the server-action history kept for /state.
	HistoryLimit int `yaml:"history_limit"`
}

// RateConfig is a token bucket: PerSecond refill, Burst capacity.
type RateConfig struct {
	PerSecond int `yaml:"per_second"`
	Burst     int `yaml:"burst"`
}

// PeerConfig configures rendezvous-peer.
type PeerConfig struct {
	// SignalURL is the relay's websocket signaling endpoint.
	SignalURL string `yaml:"signal_url"`

	// ClientID is the identity used in channel labels and actions.
	// Empty means generate one at startup.
	ClientID string `yaml:"client_id"`

	// DemoInterval, when set, moves a synthetic pointer at this
	// interval (Go duration syntax, e.g. "50ms").
	DemoInterval string `yaml:"demo_interval"`
}

// Duration parses DemoInterval. Empty means zero (disabled).
func (p PeerConfig) Duration() (time.Duration, error) {
	if p.DemoInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(p.DemoInterval)
}

// Default returns the configuration used as the base before a file is
// applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		ICE: ICEConfig{
			Servers: []ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
			IncludeLoopback: true,
		},
		Relay: RelayConfig{
			ListenAddress: ":8080",
			PairBacklog:   256,
			ActionRate: RateConfig{
				PerSecond: 240,
				Burst:     480,
			},
			HistoryLimit: 1024,
		},
		Peer: PeerConfig{
			SignalURL: "ws://localhost:8080/signal",
		},
	}
}

// Load loads the file named by RENDEZVOUS_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your rendezvous.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of [Default], applies
// environment overrides, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			ice := c.ICE
			ice.IncludeLoopback = false
			overrides = &Overrides{
				Log: &LogConfig{Level: c.Log.Level, Format: "json"},
				ICE: &ice,
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}

	if overrides.ICE != nil {
		if len(overrides.ICE.Servers) > 0 {
			c.ICE.Servers = overrides.ICE.Servers
		}
		// IncludeLoopback is a bool, so an override section always sets it.
		c.ICE.IncludeLoopback = overrides.ICE.IncludeLoopback
	}
}

func (c *Config) expandVariables() {
	c.Relay.ListenAddress = expandVars(c.Relay.ListenAddress)
	c.Peer.SignalURL = expandVars(c.Peer.SignalURL)
	c.Peer.ClientID = expandVars(c.Peer.ClientID)
	for i := range c.ICE.Servers {
		server := &c.ICE.Servers[i]
		for j := range server.URLs {
			server.URLs[j] = expandVars(server.URLs[j])
		}
		server.Username = expandVars(server.Username)
		server.Credential = expandVars(server.Credential)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level))
	}
	if !contains([]string{"auto", "text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of auto, text, json; got %q", c.Log.Format))
	}

	for i, server := range c.ICE.Servers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice.servers[%d].urls is required", i))
		}
	}

	if c.Relay.ListenAddress == "" {
		errs = append(errs, errors.New("relay.listen_address is required"))
	}
	if c.Relay.PairBacklog <= 0 {
		errs = append(errs, fmt.Errorf("relay.pair_backlog must be positive, got %d", c.Relay.PairBacklog))
	}
	if c.Relay.ActionRate.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("relay.action_rate.per_second must not be negative, got %d", c.Relay.ActionRate.PerSecond))
	}
	if c.Relay.ActionRate.PerSecond > 0 && c.Relay.ActionRate.Burst < c.Relay.ActionRate.PerSecond {
		errs = append(errs, fmt.Errorf("relay.action_rate.burst (%d) must be at least per_second (%d)",
			c.Relay.ActionRate.Burst, c.Relay.ActionRate.PerSecond))
	}
	if c.Relay.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("relay.history_limit must not be negative, got %d", c.Relay.HistoryLimit))
	}

	if c.Peer.SignalURL == "" {
		errs = append(errs, errors.New("peer.signal_url is required"))
	}
	if _, err := c.Peer.Duration(); err != nil {
		errs = append(errs, fmt.Errorf("peer.demo_interval: %w", err))
	}

	return errors.Join(errs...)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
