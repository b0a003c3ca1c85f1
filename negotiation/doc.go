// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package negotiation drives one WebRTC peer connection through
// offer/answer/candidate exchange over a signaling channel, resolving
// simultaneous offers ("glare") by role.
//
// Exactly one side of each pairing is [Polite]. When an offer arrives
// while this side is offering or not stable, the impolite side ignores
// it and keeps its own offer; the polite side rolls back and answers.
// Either side may renegotiate at any time without a leader handshake.
//
// An [Engine] serializes every event on one goroutine ([Engine.Run]):
// peer connection notifications and signaling messages are posted into
// its event queue, and no negotiation state is touched elsewhere.
// [Engine.Session] returns a snapshot of the session for other
// goroutines.
//
// Remote candidates that arrive before any remote description are
// buffered and applied, in arrival order, right after the next
// successful SetRemoteDescription. ICE failure triggers an ICE restart
// and does not end the session. Malformed signaling and rejected
// descriptions or candidates are logged and dropped. Run ends only when
// its context is cancelled or the signaling channel closes.
package negotiation
