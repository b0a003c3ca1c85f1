// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/rendezvous/lib/event"
	"github.com/bureau-foundation/rendezvous/transport"
)

// ErrPairFull is returned when a third endpoint joins a pairing key.
var ErrPairFull = errors.New("relay: pairing key already has two endpoints")

// Rendezvous forwards messages verbatim between the two endpoints that
// joined with the same key.
type Rendezvous struct {
	backlogLimit int
	logger       *slog.Logger

	mu    sync.Mutex
	pairs map[string]*pairing
}

// pairing is one key's endpoints. backlog holds the first endpoint's
// messages until the second joins. Sends go through outboxes so an
// endpoint that has not started yet still receives them in order.
type pairing struct {
	key       string
	endpoints [2]transport.Channel
	outboxes  [2]*transport.Outbox
	subs      [2]*event.Subscription
	backlog   [][]byte
}

// NewRendezvous creates a Rendezvous that holds at most backlogLimit
// messages for an unpaired endpoint.
func NewRendezvous(backlogLimit int, logger *slog.Logger) *Rendezvous {
	return &Rendezvous{
		backlogLimit: backlogLimit,
		logger:       logger,
		pairs:        make(map[string]*pairing),
	}
}

// Join adds endpoint under key. The second endpoint receives the first
// endpoint's backlog, in order, before anything else. Subscribe-side
// events are consumed by the Rendezvous; callers start the endpoint
// after Join returns.
func (r *Rendezvous) Join(key string, endpoint transport.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, exists := r.pairs[key]
	if !exists {
		pair = &pairing{key: key}
		pair.endpoints[0] = endpoint
		pair.outboxes[0] = transport.NewOutbox(endpoint, r.logger)
		pair.subs[0] = endpoint.Subscribe(func(ev transport.ChannelEvent) {
			r.handle(pair, 0, ev)
		})
		r.pairs[key] = pair
		r.logger.Debug("rendezvous waiting for partner", "key", key)
		return nil
	}
	if pair.endpoints[1] != nil {
		return fmt.Errorf("joining %s: %w", key, ErrPairFull)
	}

	pair.endpoints[1] = endpoint
	pair.outboxes[1] = transport.NewOutbox(endpoint, r.logger)
	for _, data := range pair.backlog {
		if err := pair.outboxes[1].Send(data); err != nil {
			r.logger.Warn("forwarding backlog failed", "key", key, "error", err)
			break
		}
	}
	r.logger.Info("rendezvous paired", "key", key, "backlog", len(pair.backlog))
	pair.backlog = nil
	pair.subs[1] = endpoint.Subscribe(func(ev transport.ChannelEvent) {
		r.handle(pair, 1, ev)
	})
	return nil
}

// Full reports whether key already has two endpoints.
func (r *Rendezvous) Full(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair, exists := r.pairs[key]
	return exists && pair.endpoints[1] != nil
}

// Pending returns the number of keys with a single endpoint waiting.
func (r *Rendezvous) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, pair := range r.pairs {
		if pair.endpoints[1] == nil {
			count++
		}
	}
	return count
}

func (r *Rendezvous) handle(pair *pairing, side int, ev transport.ChannelEvent) {
	switch ev.Kind {
	case transport.EventMessage:
		r.forward(pair, side, ev.Data)
	case transport.EventClose, transport.EventError:
		r.release(pair)
	}
}

func (r *Rendezvous) forward(pair *pairing, side int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pairs[pair.key] != pair {
		return
	}
	partner := pair.outboxes[1-side]
	if partner == nil {
		if len(pair.backlog) >= r.backlogLimit {
			r.logger.Warn("rendezvous backlog full, dropping message",
				"key", pair.key,
				"limit", r.backlogLimit,
			)
			return
		}
		pair.backlog = append(pair.backlog, data)
		return
	}
	if err := partner.Send(data); err != nil {
		r.logger.Warn("rendezvous forward failed", "key", pair.key, "error", err)
	}
}

// release frees the key and closes both endpoints.
func (r *Rendezvous) release(pair *pairing) {
	r.mu.Lock()
	if r.pairs[pair.key] != pair {
		r.mu.Unlock()
		return
	}
	delete(r.pairs, pair.key)
	for i := range pair.subs {
		pair.subs[i].Close()
		if pair.outboxes[i] != nil {
			pair.outboxes[i].Close()
		}
	}
	endpoints := pair.endpoints
	r.mu.Unlock()

	r.logger.Debug("rendezvous released", "key", pair.key)
	for _, endpoint := range endpoints {
		if endpoint != nil {
			endpoint.Close()
		}
	}
}

// Close releases every key and closes all endpoints.
func (r *Rendezvous) Close() {
	r.mu.Lock()
	pairs := make([]*pairing, 0, len(r.pairs))
	for _, pair := range r.pairs {
		pairs = append(pairs, pair)
	}
	r.mu.Unlock()

	for _, pair := range pairs {
		r.release(pair)
	}
}
