// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout safety valve so individual tests never call
// time.After directly. Negotiation and relay tests use them to wait on
// channels fed by pion and websocket goroutines.
//
// [UniqueID] returns monotonically increasing identifiers, used for
// pairing keys and client ids that must not collide across tests in
// one process.
//
// All helpers call t.Fatalf on failure.
package testutil
