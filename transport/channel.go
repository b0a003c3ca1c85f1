// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"sync"

	"github.com/bureau-foundation/rendezvous/lib/event"
)

var (
	// ErrNotOpen is returned by Send before the channel has opened.
	ErrNotOpen = errors.New("transport: channel not open")

	// ErrClosed is returned by Send after the channel closed or failed.
	ErrClosed = errors.New("transport: channel closed")
)

// EventKind identifies a channel notification.
type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventMessage
	EventClose
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ChannelEvent is one notification from a [Channel]. Data is set for
// EventMessage and Err for EventError.
type ChannelEvent struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Terminal reports whether the event ends the channel.
func (e ChannelEvent) Terminal() bool {
	return e.Kind == EventClose || e.Kind == EventError
}

// Channel is a bidirectional message channel.
type Channel interface {
	// Label names the channel, e.g. "action:a1".
	Label() string

	// Send transmits one message. Returns ErrNotOpen before open and
	// ErrClosed after the terminal event.
	Send(data []byte) error

	// IsOpen reports whether the channel is currently open.
	IsOpen() bool

	// Subscribe registers a handler for channel events. Events that
	// happened before the call are not replayed; check IsOpen after
	// subscribing to catch an open that already happened.
	Subscribe(handler func(ChannelEvent)) *event.Subscription

	// Close closes the channel. The terminal event is delivered to
	// subscribers if it has not been already.
	Close() error
}

type channelState int

const (
	stateConnecting channelState = iota
	stateOpen
	stateClosed
)

// channelBase carries the state machine and subscriber feed shared by
// every Channel implementation. Transitions are one-way: connecting,
// open, closed. Each transition publishes at most once.
type channelBase struct {
	label string

	mu    sync.Mutex
	state channelState

	feed event.Feed[ChannelEvent]
}

func (b *channelBase) Label() string { return b.label }

func (b *channelBase) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen
}

func (b *channelBase) Subscribe(handler func(ChannelEvent)) *event.Subscription {
	return b.feed.Subscribe(handler)
}

func (b *channelBase) checkSend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateConnecting:
		return ErrNotOpen
	case stateClosed:
		return ErrClosed
	}
	return nil
}

func (b *channelBase) opened() {
	b.mu.Lock()
	if b.state != stateConnecting {
		b.mu.Unlock()
		return
	}
	b.state = stateOpen
	b.mu.Unlock()
	b.feed.Publish(ChannelEvent{Kind: EventOpen})
}

func (b *channelBase) received(data []byte) {
	b.mu.Lock()
	open := b.state == stateOpen
	b.mu.Unlock()
	if !open {
		return
	}
	b.feed.Publish(ChannelEvent{Kind: EventMessage, Data: data})
}

// terminate moves the channel to closed and publishes the terminal
// event. It returns false if the channel was already closed.
func (b *channelBase) terminate(err error) bool {
	b.mu.Lock()
	if b.state == stateClosed {
		b.mu.Unlock()
		return false
	}
	b.state = stateClosed
	b.mu.Unlock()

	if err != nil {
		b.feed.Publish(ChannelEvent{Kind: EventError, Err: err})
	} else {
		b.feed.Publish(ChannelEvent{Kind: EventClose})
	}
	return true
}
