// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network helpers shared by the transport
// adapters and the relay.
//
// [IsExpectedCloseError] separates ordinary teardown (EOF, closed
// connection, reset, websocket normal closure) from real failures so
// that channel adapters report the former as a close and the latter
// as an error. [DecodeResponse] bounds JSON response reads at
// [MaxMessageSize], which is also the read limit applied to signaling
// websockets.
package netutil
