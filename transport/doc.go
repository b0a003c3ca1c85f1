// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the narrow capabilities the negotiation
// engine, the relay, and the client consume from the network.
//
// [Channel] is a message channel: Send, plus open, message, close, and
// error notifications delivered through [Channel.Subscribe]. Three
// implementations exist: [DataChannel] adapts a pion data channel,
// [WebSocketChannel] adapts a gorilla websocket connection (the
// signaling path), and [NewMemoryChannelPair] builds a connected
// in-process pair for tests. A channel delivers exactly one terminal
// event, close or error, after which Send returns [ErrClosed].
//
// [Outbox] wraps a Channel whose open has not happened yet. Sends made
// before open are queued and flushed in order when the channel opens.
//
// [PeerConnection] is the description and candidate surface of a
// WebRTC peer connection. [PionPeer] implements it over pion/webrtc
// and republishes pion's callbacks as [PeerEvent] values, so a single
// consumer goroutine can serialize them. ICE restart is expressed as
// an offer with the ICE-restart option plus a synthetic
// negotiation-needed event.
//
// [SignalMessage] is the signaling wire format: exactly one of a
// candidate or a description per JSON object. Channel labels follow
// the action:<clientId> and state:<clientId> convention; see
// [ParseLabel].
package transport
