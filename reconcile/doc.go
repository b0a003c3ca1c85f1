// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile merges optimistic client actions with the
// authoritative, server-ordered action stream.
//
// A [Store] holds two things: settled state, advanced only by server
// actions, and an ordered list of pending client actions not yet
// confirmed. The published state is always recomputed as a fold of the
// pending actions over the settled state with a pure [Reducer]; it is
// never stored. A confirming server action removes the pending entry
// with the same (clientId, clientActionId, type) [Key]. Because
// confirmations are matched by key rather than position, the action
// channel may drop or reorder messages without corrupting the result.
//
// A server action of type [TypeSync] replaces settled state with a
// snapshot. Its serverActionId becomes the sync watermark: server
// actions at or below it are already contained in the snapshot and are
// not applied again, though they still confirm pending entries.
//
// [Action] is the wire envelope. Meta fields (clientId, clientNow,
// clientActionId, serverNow, serverActionId) travel flattened into the
// JSON payload alongside the domain fields in Body. [Issuer] assigns
// client action ids starting at 1; the relay assigns server ids.
package reconcile
