// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pointer

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/rendezvous/lib/codec"
)

// fingerprintKey is the BLAKE3 key for state fingerprints: the ASCII
// domain name, zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'r', 'e', 'n', 'd', 'e', 'z', 'v', 'o', 'u', 's', '.', 'p', 'o', 'i', 'n', 't',
	'e', 'r', '.', 's', 't', 'a', 't', 'e', 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns the hex BLAKE3 keyed hash of the state's
// deterministic CBOR encoding. Equal states hash equal regardless of
// map insertion order. A nil map and an empty map hash differently, so
// compare states built by NewState, Reduce, or DecodeSnapshot.
func Fingerprint(state State) (string, error) {
	encoded, err := codec.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encoding state for fingerprint: %w", err)
	}
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("pointer: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(encoded)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
