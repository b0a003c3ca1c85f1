// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/rendezvous/lib/event"
)

// Outbox queues messages for a Channel until it opens, then flushes
// them in the order they were sent. After open, sends go straight
// through. Send never blocks waiting for open.
//
// Once the channel closes or fails, queued messages are dropped and
// Send returns [ErrClosed].
type Outbox struct {
	channel Channel
	logger  *slog.Logger

	mu           sync.Mutex
	queue        [][]byte
	closed       bool
	subscription *event.Subscription
}

// NewOutbox attaches an outbox to channel. Close the outbox to detach
// it from the channel's events.
func NewOutbox(channel Channel, logger *slog.Logger) *Outbox {
	outbox := &Outbox{
		channel: channel,
		logger:  logger,
	}
	outbox.subscription = channel.Subscribe(outbox.handle)
	// The open may have happened before the subscription existed.
	if channel.IsOpen() {
		outbox.flush()
	}
	return outbox
}

// Send transmits data, or queues it if the channel is not open yet.
// The slice is retained while queued; callers must not modify it.
func (o *Outbox) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if len(o.queue) > 0 || !o.channel.IsOpen() {
		o.queue = append(o.queue, data)
		return nil
	}
	if err := o.channel.Send(data); err != nil {
		return fmt.Errorf("sending on %s: %w", o.channel.Label(), err)
	}
	return nil
}

// Pending returns the number of queued messages.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close detaches the outbox and drops anything still queued. The
// underlying channel is not closed.
func (o *Outbox) Close() {
	o.subscription.Close()
	o.mu.Lock()
	o.closed = true
	o.queue = nil
	o.mu.Unlock()
}

func (o *Outbox) handle(ev ChannelEvent) {
	switch ev.Kind {
	case EventOpen:
		o.flush()
	case EventClose, EventError:
		o.mu.Lock()
		dropped := len(o.queue)
		o.closed = true
		o.queue = nil
		o.mu.Unlock()
		if dropped > 0 {
			o.logger.Debug("outbox dropped queued messages",
				"label", o.channel.Label(),
				"dropped", dropped,
			)
		}
	}
}

func (o *Outbox) flush() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.queue) > 0 {
		if err := o.channel.Send(o.queue[0]); err != nil {
			o.logger.Warn("outbox flush failed",
				"label", o.channel.Label(),
				"queued", len(o.queue),
				"error", err,
			)
			return
		}
		o.queue[0] = nil
		o.queue = o.queue[1:]
	}
}
