// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the deterministic CBOR encoding used to
// fingerprint application state.
//
// Everything on the wire (signaling frames, actions, sync snapshots)
// is JSON. CBOR appears only where two processes must derive identical
// bytes from logically equal values: the relay and every peer encode
// their settled state with [Marshal] and hash the result, so equal
// states produce equal fingerprints regardless of map iteration order.
// The encoder uses Core Deterministic Encoding (RFC 8949 section 4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items.
//
// Types carry `json` tags only. fxamacker/cbor reads them as a
// fallback, so one tag controls field naming for both formats.
package codec
