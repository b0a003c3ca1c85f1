// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bureau-foundation/rendezvous/lib/clock"
)

// Issuer stamps client actions for one client: clientId, clientNow,
// and a clientActionId that starts at 1 and strictly increases.
type Issuer struct {
	clientID string
	clock    clock.Clock

	mu   sync.Mutex
	last uint64
}

// NewIssuer returns an Issuer for clientID.
func NewIssuer(clientID string, c clock.Clock) *Issuer {
	return &Issuer{clientID: clientID, clock: c}
}

// ClientID returns the client the issuer stamps actions for.
func (i *Issuer) ClientID() string {
	return i.clientID
}

// Issue builds the next client action of actionType with body
// marshaled as its domain fields. A nil body yields an empty payload.
func (i *Issuer) Issue(actionType string, body any) (Action, error) {
	var raw json.RawMessage
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Action{}, fmt.Errorf("encoding %s body: %w", actionType, err)
		}
		raw = encoded
	}

	i.mu.Lock()
	i.last++
	id := i.last
	i.mu.Unlock()

	return Action{
		Source: Client,
		Type:   actionType,
		Meta: Meta{
			ClientID:       i.clientID,
			ClientNow:      clock.UnixMilli(i.clock),
			ClientActionID: id,
		},
		Body: raw,
	}, nil
}

// Last returns the most recently issued clientActionId, 0 if none.
func (i *Issuer) Last() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}
