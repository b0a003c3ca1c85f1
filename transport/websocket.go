// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/lib/netutil"
)

// closeGracePeriod bounds how long Close waits to deliver the close
// frame before dropping the connection.
const closeGracePeriod = time.Second

// WebSocketChannel adapts a gorilla websocket connection to [Channel].
// Gorilla allows one concurrent writer, so writes are serialized by
// writeMu. Reads happen on a single goroutine started by Start.
type WebSocketChannel struct {
	channelBase
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex
}

// Compile-time interface check.
var _ Channel = (*WebSocketChannel)(nil)

// NewWebSocketChannel wraps an established connection, typically one
// returned by a websocket.Upgrader. The channel reports open when
// Start is called, so subscribers registered before Start see it.
func NewWebSocketChannel(conn *websocket.Conn, label string, logger *slog.Logger) *WebSocketChannel {
	conn.SetReadLimit(netutil.MaxMessageSize)
	return &WebSocketChannel{
		channelBase: channelBase{label: label},
		logger:      logger,
		conn:        conn,
	}
}

// Start opens the channel and begins reading.
func (c *WebSocketChannel) Start() {
	c.opened()
	go c.readLoop(c.conn)
}

// DialWebSocket returns a channel that is connecting to url. It does
// not block: the dial runs in the background and the channel reports
// open once the handshake completes, or an error event if it fails.
// Pair it with an [Outbox] to send before the connection is up.
func DialWebSocket(ctx context.Context, url, label string, logger *slog.Logger) *WebSocketChannel {
	dialContext, cancel := context.WithCancel(ctx)
	channel := &WebSocketChannel{
		channelBase: channelBase{label: label},
		logger:      logger,
		cancel:      cancel,
	}

	go func() {
		defer cancel()
		conn, _, err := websocket.DefaultDialer.DialContext(dialContext, url, nil)
		if err != nil {
			channel.terminate(fmt.Errorf("dialing %s: %w", url, err))
			return
		}
		conn.SetReadLimit(netutil.MaxMessageSize)

		channel.connMu.Lock()
		channel.conn = conn
		channel.connMu.Unlock()

		// Close raced with the dial.
		if channel.checkSend() == ErrClosed {
			conn.Close()
			return
		}
		logger.Debug("websocket connected", "label", label, "url", url)
		channel.Start()
	}()

	return channel
}

// Send writes data as one text frame.
func (c *WebSocketChannel) Send(data []byte) error {
	if err := c.checkSend(); err != nil {
		return err
	}
	conn := c.connection()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket %s: %w", c.label, err)
	}
	return nil
}

// Close sends a normal-closure frame and closes the connection.
func (c *WebSocketChannel) Close() error {
	return c.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith closes the connection with the given close code and reason.
func (c *WebSocketChannel) CloseWith(code int, reason string) error {
	if !c.terminate(nil) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.connection()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	message := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGracePeriod)); err != nil &&
		!netutil.IsExpectedCloseError(err) && err != websocket.ErrCloseSent {
		c.logger.Debug("websocket close frame failed", "label", c.label, "error", err)
	}
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *WebSocketChannel) connection() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *WebSocketChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if netutil.IsExpectedCloseError(err) {
				c.terminate(nil)
			} else if c.terminate(fmt.Errorf("reading websocket %s: %w", c.label, err)) {
				c.logger.Warn("websocket read failed", "label", c.label, "error", err)
			}
			conn.Close()
			return
		}
		c.received(data)
	}
}
