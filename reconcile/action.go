// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownSource is returned for an action whose source is neither
// client nor server.
var ErrUnknownSource = errors.New("reconcile: unknown action source")

// Source says who produced an action.
type Source string

const (
	Client Source = "client"
	Server Source = "server"
)

// TypeSync is the reserved action type carrying a full state snapshot.
const TypeSync = "sync"

// Payload keys owned by Meta. Body may not use them.
const (
	keyClientID       = "clientId"
	keyClientNow      = "clientNow"
	keyClientActionID = "clientActionId"
	keyServerNow      = "serverNow"
	keyServerActionID = "serverActionId"
)

var metaKeys = []string{keyClientID, keyClientNow, keyClientActionID, keyServerNow, keyServerActionID}

// Meta is the bookkeeping carried by every action. Times are Unix
// milliseconds.
type Meta struct {
	ClientID       string
	ClientNow      int64
	ClientActionID uint64
	ServerNow      int64
	ServerActionID uint64
}

// Action is one client or server action. Body holds the domain fields
// as a JSON object, without the meta keys.
type Action struct {
	Source Source
	Type   string
	Meta   Meta
	Body   json.RawMessage
}

// Key identifies the client action a server action confirms.
type Key struct {
	ClientID       string
	ClientActionID uint64
	Type           string
}

// Key returns the confirmation key of the action.
func (a Action) Key() Key {
	return Key{ClientID: a.Meta.ClientID, ClientActionID: a.Meta.ClientActionID, Type: a.Type}
}

// IsSync reports whether the action is a server sync snapshot.
func (a Action) IsSync() bool {
	return a.Source == Server && a.Type == TypeSync
}

// Decode unmarshals the domain body into v.
func (a Action) Decode(v any) error {
	if len(a.Body) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	if err := json.Unmarshal(a.Body, v); err != nil {
		return fmt.Errorf("decoding %s body: %w", a.Type, err)
	}
	return nil
}

// Validate checks the source and type.
func (a Action) Validate() error {
	switch a.Source {
	case Client, Server:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, a.Source)
	}
	if a.Type == "" {
		return errors.New("reconcile: action type is empty")
	}
	return nil
}

// Confirm returns the server action confirming a client action: the
// same type, body, and client fields, stamped with the server id and
// time.
func Confirm(action Action, serverActionID uint64, serverNow int64) Action {
	confirmed := action
	confirmed.Source = Server
	confirmed.Meta.ServerActionID = serverActionID
	confirmed.Meta.ServerNow = serverNow
	return confirmed
}

// NewSync builds a sync action whose body is snapshot.
func NewSync(snapshot any, serverActionID uint64, serverNow int64) (Action, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return Action{}, fmt.Errorf("encoding sync snapshot: %w", err)
	}
	return Action{
		Source: Server,
		Type:   TypeSync,
		Meta:   Meta{ServerActionID: serverActionID, ServerNow: serverNow},
		Body:   body,
	}, nil
}

type wireAction struct {
	Source  Source                     `json:"source"`
	Type    string                     `json:"type"`
	Payload map[string]json.RawMessage `json:"payload"`
}

// MarshalJSON emits {"source","type","payload"} with the meta fields
// merged into the payload. Client fields are emitted when ClientID is
// set, server fields for server actions.
func (a Action) MarshalJSON() ([]byte, error) {
	payload := make(map[string]json.RawMessage)
	if len(a.Body) > 0 && !bytes.Equal(bytes.TrimSpace(a.Body), []byte("null")) {
		if err := json.Unmarshal(a.Body, &payload); err != nil {
			return nil, fmt.Errorf("action %s body must be a JSON object: %w", a.Type, err)
		}
	}
	for _, key := range metaKeys {
		delete(payload, key)
	}

	if a.Meta.ClientID != "" {
		payload[keyClientID] = rawJSON(a.Meta.ClientID)
		payload[keyClientNow] = rawJSON(a.Meta.ClientNow)
		payload[keyClientActionID] = rawJSON(a.Meta.ClientActionID)
	}
	if a.Source == Server {
		payload[keyServerNow] = rawJSON(a.Meta.ServerNow)
		payload[keyServerActionID] = rawJSON(a.Meta.ServerActionID)
	}

	return json.Marshal(wireAction{Source: a.Source, Type: a.Type, Payload: payload})
}

// UnmarshalJSON parses the wire form, splitting meta fields out of the
// payload. Unknown sources fail with ErrUnknownSource.
func (a *Action) UnmarshalJSON(data []byte) error {
	var wire wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding action: %w", err)
	}

	action := Action{Source: wire.Source, Type: wire.Type}
	if err := action.Validate(); err != nil {
		return err
	}

	fields := []struct {
		key    string
		target any
	}{
		{keyClientID, &action.Meta.ClientID},
		{keyClientNow, &action.Meta.ClientNow},
		{keyClientActionID, &action.Meta.ClientActionID},
		{keyServerNow, &action.Meta.ServerNow},
		{keyServerActionID, &action.Meta.ServerActionID},
	}
	for _, field := range fields {
		raw, ok := wire.Payload[field.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, field.target); err != nil {
			return fmt.Errorf("decoding action %s field %s: %w", wire.Type, field.key, err)
		}
		delete(wire.Payload, field.key)
	}

	if len(wire.Payload) > 0 {
		body, err := json.Marshal(wire.Payload)
		if err != nil {
			return fmt.Errorf("re-encoding action %s body: %w", wire.Type, err)
		}
		action.Body = body
	}

	*a = action
	return nil
}

// ParseAction decodes one action message.
func ParseAction(data []byte) (Action, error) {
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Action{}, err
	}
	return action, nil
}

func rawJSON(v any) json.RawMessage {
	// Strings and integers always marshal.
	data, _ := json.Marshal(v)
	return data
}
