// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// rendezvous-relay serves the rendezvous relay over HTTP.
//
// GET /signal upgrades to a websocket on which the relay negotiates a
// WebRTC connection with the dialing peer, acting as the polite side.
// The peer's action:<id> and state:<id> data channels are attached to
// the action hub, which orders, applies, and fans out every client
// action. GET /pair/{key} is a 1:1 store-and-forward websocket relay
// for two endpoints that share a key. GET /state returns the
// authoritative pointer state with its fingerprint, and GET /healthz
// returns "ok".
//
// Configuration comes from --config or RENDEZVOUS_CONFIG, falling back
// to built-in defaults. Flags override file values:
//
//	rendezvous-relay --config rendezvous.yaml --listen :9000 --log-level debug
//
// The relay runs until SIGINT or SIGTERM.
package main
