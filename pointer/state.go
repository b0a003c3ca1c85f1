// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pointer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Action types understood by Reduce.
const (
	TypeOpen         = "open"
	TypeClose        = "close"
	TypeError        = "error"
	TypePointerStart = "pointerstart"
	TypePointerMove  = "pointermove"
	TypePointerEnd   = "pointerend"
)

// PointerID identifies one pointer of a client. Browsers send numbers
// and some clients send strings; both decode to the same ID. Integer
// IDs are encoded back as JSON numbers.
type PointerID string

// UnmarshalJSON accepts a JSON number or string.
func (id *PointerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PointerID(s)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("pointerId must be a number or string: %w", err)
	}
	*id = PointerID(number.String())
	return nil
}

// MarshalJSON emits integer IDs as numbers and everything else as a
// string.
func (id PointerID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Pointer is the last known position of one pointer.
type Pointer struct {
	PointerID   PointerID `json:"pointerId"`
	PointerType string    `json:"pointerType"`
	IsDown      bool      `json:"isDown"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

// Client is one connected client.
type Client struct {
	Pointers map[PointerID]Pointer `json:"pointers"`
}

// State is the whole shared state, keyed by clientId.
type State struct {
	Clients map[string]Client `json:"clients"`
}

// NewState returns an empty state.
func NewState() State {
	return State{Clients: map[string]Client{}}
}

// Client returns the client record and whether it exists.
func (s State) Client(clientID string) (Client, bool) {
	client, ok := s.Clients[clientID]
	return client, ok
}

// Pointer returns one pointer of one client.
func (s State) Pointer(clientID string, pointerID PointerID) (Pointer, bool) {
	client, ok := s.Clients[clientID]
	if !ok {
		return Pointer{}, false
	}
	pointer, ok := client.Pointers[pointerID]
	return pointer, ok
}

// DecodeSnapshot parses a sync body into a State. Missing maps decode
// as empty.
func DecodeSnapshot(body json.RawMessage) (State, error) {
	var state State
	if len(body) > 0 {
		if err := json.Unmarshal(body, &state); err != nil {
			return State{}, fmt.Errorf("decoding pointer snapshot: %w", err)
		}
	}
	if state.Clients == nil {
		state.Clients = map[string]Client{}
	}
	for clientID, client := range state.Clients {
		if client.Pointers == nil {
			state.Clients[clientID] = Client{Pointers: map[PointerID]Pointer{}}
		}
	}
	return state, nil
}
