// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the server side of rendezvous.
//
// [Hub] is the action relay. Each client attaches two channels,
// action:<clientId> (unordered, lossy) and state:<clientId> (reliable).
// A client action arriving on an action channel is validated,
// rate-limited per client, stamped with the next serverActionId, applied
// to the hub's authoritative reconcile.Store, and fanned out: to every
// other client's action channel, and back to the origin over its own
// state channel, which is the reliable confirmation path. Opening a
// state channel, or sending anything on it, returns a sync snapshot to
// that channel only. When either channel of a client ends, the hub
// drops both, closes the survivor, and announces a close (or error)
// action for that client. Id assignment and fan-out happen under one
// mutex, so issuance order equals send order.
//
// [Rendezvous] is a 1:1 store-and-forward relay for signaling between
// two endpoints that share a pairing key. The first endpoint's messages
// are held in a bounded backlog until its partner joins. A third
// endpoint is rejected with [ErrPairFull].
//
// [Server] exposes both over HTTP with gorilla/mux. On /signal the
// server itself is the polite peer: it negotiates a pion connection
// with the dialing client and attaches the client's data channels to
// the hub.
package relay
