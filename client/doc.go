// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the peer side of rendezvous.
//
// A [Session] owns one client's pair of data channels, action:<id> and
// state:<id>, and a reconcile.Store over the pointer domain. Local
// actions are applied optimistically and sent on the action channel;
// server actions arriving on either channel settle them. Once both
// channels are open and the relay's first sync has arrived, the
// session announces itself with an "open" action. When the server's action ids skip ahead the session asks for
// a sync on its state channel, at most once per [SyncRequestInterval].
// Closing or failing either channel ends the session.
//
// A [Peer] builds a Session over WebRTC: it dials the relay's /signal
// websocket, runs the impolite side of perfect negotiation, and
// creates the two data channels on a pion peer connection.
package client
