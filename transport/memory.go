// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"sync"
)

// MemoryChannel is one end of an in-process channel pair. Messages are
// delivered to the other end asynchronously, in send order, on a
// goroutine owned by the receiving end. Both ends start connecting;
// [MemoryChannel.Open] opens the pair.
type MemoryChannel struct {
	channelBase

	peer *MemoryChannel

	queueMu sync.Mutex
	queue   []memoryItem
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
}

// memoryItem is a queued delivery: a message, or the peer's close.
type memoryItem struct {
	data     []byte
	terminal bool
	err      error
}

// Compile-time interface check.
var _ Channel = (*MemoryChannel)(nil)

// NewMemoryChannelPair returns two connected ends sharing label.
func NewMemoryChannelPair(label string) (*MemoryChannel, *MemoryChannel) {
	left := newMemoryChannel(label)
	right := newMemoryChannel(label)
	left.peer = right
	right.peer = left
	go left.deliver()
	go right.deliver()
	return left, right
}

func newMemoryChannel(label string) *MemoryChannel {
	return &MemoryChannel{
		channelBase: channelBase{label: label},
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Open opens both ends. Open notifications run on the caller's
// goroutine, this end first.
func (c *MemoryChannel) Open() {
	c.opened()
	c.peer.opened()
}

// Send queues a copy of data for delivery to the other end.
func (c *MemoryChannel) Send(data []byte) error {
	if err := c.checkSend(); err != nil {
		return err
	}
	c.peer.enqueue(memoryItem{data: append([]byte(nil), data...)})
	return nil
}

// Close closes this end immediately. The other end observes the close
// after every message sent before it.
func (c *MemoryChannel) Close() error {
	c.shutdown(nil)
	return nil
}

// Fail terminates this end with err. The other end observes a plain
// close after every message sent before it.
func (c *MemoryChannel) Fail(err error) {
	if err == nil {
		err = errors.New("memory channel failed")
	}
	c.shutdown(err)
}

func (c *MemoryChannel) shutdown(err error) {
	if c.terminate(err) {
		c.peer.enqueue(memoryItem{terminal: true})
	}
	c.stop.Do(func() { close(c.done) })
}

func (c *MemoryChannel) enqueue(item memoryItem) {
	c.queueMu.Lock()
	c.queue = append(c.queue, item)
	c.queueMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *MemoryChannel) deliver() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}
		for {
			c.queueMu.Lock()
			if len(c.queue) == 0 {
				c.queueMu.Unlock()
				break
			}
			item := c.queue[0]
			c.queue = c.queue[1:]
			c.queueMu.Unlock()

			if item.terminal {
				c.terminate(item.err)
				c.stop.Do(func() { close(c.done) })
				return
			}
			c.received(item.data)
		}
	}
}
