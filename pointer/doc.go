// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pointer is the shared application state: every connected
// client and the pointers it currently has on screen.
//
// [Reduce] is the pure reducer plugged into a reconcile.Store. It
// never modifies its input; changed maps are copied on write, so a
// settled state can be folded against pending actions any number of
// times. pointerstart and pointermove upsert, creating the client if
// needed. Removals (pointerend, close, error) for a client that is not
// in the state are no-ops, so stale pending actions replay without
// error after a sync removed their client.
//
// [Fingerprint] hashes the deterministic CBOR encoding of a state with
// keyed BLAKE3, so two replicas can compare state without shipping it.
package pointer
