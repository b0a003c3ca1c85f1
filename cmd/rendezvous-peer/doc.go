// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// rendezvous-peer is a headless rendezvous client.
//
// It dials the relay's /signal websocket, negotiates a WebRTC
// connection as the impolite side, opens its action and state data
// channels, and keeps a reconciled copy of the shared pointer state.
// Every published state change is logged at debug level with a
// summary; syncs are logged at info with their fingerprint.
//
// With --demo-interval the peer moves a synthetic pointer in a circle,
// which is enough to watch several peers converge:
//
//	rendezvous-peer --signal-url ws://localhost:8080/signal --demo-interval 50ms
//
// The peer runs until its session ends or it receives SIGINT or
// SIGTERM.
package main
