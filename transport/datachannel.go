// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DataChannel adapts a pion data channel to [Channel]. Messages are
// sent as text frames; the action protocol is JSON.
type DataChannel struct {
	channelBase
	raw *webrtc.DataChannel
}

// Compile-time interface check.
var _ Channel = (*DataChannel)(nil)

// NewDataChannel wraps raw and takes over its OnOpen, OnMessage,
// OnClose, and OnError callbacks. A channel that is already open is
// reported open immediately.
func NewDataChannel(raw *webrtc.DataChannel) *DataChannel {
	channel := &DataChannel{
		channelBase: channelBase{label: raw.Label()},
		raw:         raw,
	}
	raw.OnOpen(channel.opened)
	raw.OnMessage(func(message webrtc.DataChannelMessage) {
		channel.received(message.Data)
	})
	raw.OnClose(func() { channel.terminate(nil) })
	raw.OnError(func(err error) { channel.terminate(err) })

	if raw.ReadyState() == webrtc.DataChannelStateOpen {
		channel.opened()
	}
	return channel
}

// Send transmits data as a text message.
func (c *DataChannel) Send(data []byte) error {
	if err := c.checkSend(); err != nil {
		return err
	}
	if err := c.raw.SendText(string(data)); err != nil {
		return fmt.Errorf("data channel %s: %w", c.label, err)
	}
	return nil
}

// Close closes the pion data channel and publishes the close.
func (c *DataChannel) Close() error {
	err := c.raw.Close()
	c.terminate(nil)
	return err
}

// ActionChannelInit returns the data channel parameters for an
// action:<clientId> channel: unordered, no retransmits. Loss is
// tolerated because every action is confirmed over the state channel.
func ActionChannelInit() *webrtc.DataChannelInit {
	ordered := false
	var maxRetransmits uint16
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}

// StateChannelInit returns the parameters for a state:<clientId>
// channel: ordered and reliable.
func StateChannelInit() *webrtc.DataChannelInit {
	ordered := true
	return &webrtc.DataChannelInit{Ordered: &ordered}
}
