// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"math"
	"testing"

	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/pointer"
)

func TestDemoPositionCircles(t *testing.T) {
	tests := []struct {
		step int
		x, y float64
	}{
		{0, 300, 200},
		{demoSteps / 4, 200, 300},
		{demoSteps / 2, 100, 200},
		{demoSteps, 300, 200},
	}
	for _, test := range tests {
		x, y := demoPosition(test.step)
		if math.Abs(x-test.x) > 1e-9 || math.Abs(y-test.y) > 1e-9 {
			t.Errorf("demoPosition(%d) = (%v, %v), want (%v, %v)", test.step, x, y, test.x, test.y)
		}
	}
}

func TestApplyFlagsOverridesConfig(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, "ws://relay.example:9000/signal", "a1", "20ms", "debug")

	if cfg.Peer.SignalURL != "ws://relay.example:9000/signal" || cfg.Peer.ClientID != "a1" {
		t.Errorf("peer = %+v", cfg.Peer)
	}
	if cfg.Peer.DemoInterval != "20ms" || cfg.Log.Level != "debug" {
		t.Errorf("demo interval %q, log level %q", cfg.Peer.DemoInterval, cfg.Log.Level)
	}

	unchanged := config.Default()
	applyFlags(unchanged, "", "", "", "")
	if unchanged.Peer.SignalURL != config.Default().Peer.SignalURL {
		t.Errorf("empty flags changed signal URL to %q", unchanged.Peer.SignalURL)
	}
}

func TestCountPointers(t *testing.T) {
	state := pointer.State{Clients: map[string]pointer.Client{
		"a1": {Pointers: map[pointer.PointerID]pointer.Pointer{"1": {}, "2": {}}},
		"b2": {Pointers: map[pointer.PointerID]pointer.Pointer{"1": {}}},
		"c3": {Pointers: map[pointer.PointerID]pointer.Pointer{}},
	}}
	if got := countPointers(state); got != 3 {
		t.Errorf("countPointers = %d, want 3", got)
	}
}
