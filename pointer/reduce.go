// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pointer

import (
	"maps"

	"github.com/bureau-foundation/rendezvous/reconcile"
)

// Compile-time check that Reduce fits the store.
var _ reconcile.Reducer[State] = Reduce

// Reduce applies one action to state and returns the result. The input
// is never modified. pointerstart and pointermove create the client
// when it is absent; pointerend, close, and error on an absent client,
// unknown types, actions without a clientId, and undecodable bodies
// return state unchanged.
func Reduce(state State, action reconcile.Action) State {
	clientID := action.Meta.ClientID
	if clientID == "" {
		return state
	}

	switch action.Type {
	case TypeOpen:
		return withClient(state, clientID, Client{Pointers: map[PointerID]Pointer{}})

	case TypeClose, TypeError:
		if _, ok := state.Clients[clientID]; !ok {
			return state
		}
		clients := maps.Clone(state.Clients)
		delete(clients, clientID)
		return State{Clients: clients}

	case TypePointerStart, TypePointerMove:
		var pointer Pointer
		if err := action.Decode(&pointer); err != nil {
			return state
		}
		pointers := cloneOrEmpty(state.Clients[clientID].Pointers)
		pointers[pointer.PointerID] = pointer
		return withClient(state, clientID, Client{Pointers: pointers})

	case TypePointerEnd:
		client, ok := state.Clients[clientID]
		if !ok {
			return state
		}
		var body struct {
			PointerID PointerID `json:"pointerId"`
		}
		if err := action.Decode(&body); err != nil {
			return state
		}
		if _, ok := client.Pointers[body.PointerID]; !ok {
			return state
		}
		pointers := maps.Clone(client.Pointers)
		delete(pointers, body.PointerID)
		return withClient(state, clientID, Client{Pointers: pointers})
	}

	return state
}

func withClient(state State, clientID string, client Client) State {
	clients := cloneOrEmpty(state.Clients)
	clients[clientID] = client
	return State{Clients: clients}
}

func cloneOrEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}
