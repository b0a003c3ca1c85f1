// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/negotiation"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/reconcile"
	"github.com/bureau-foundation/rendezvous/transport"
)

// Config configures a Peer.
type Config struct {
	ClientID string

	// SignalURL is the relay's /signal websocket URL.
	SignalURL string

	ICE    transport.ICEConfig
	Clock  clock.Clock
	Logger *slog.Logger
}

// Peer is one client connected to the relay over WebRTC.
type Peer struct {
	logger *slog.Logger

	signaling  *transport.WebSocketChannel
	connection *transport.PionPeer
	engine     *negotiation.Engine
	session    *Session
}

// New dials the relay in the background and prepares the peer
// connection. Nothing is negotiated until Run.
func New(ctx context.Context, config Config) (*Peer, error) {
	logger := config.Logger.With("client", config.ClientID)

	connection, err := transport.NewPionPeer(config.ICE, logger)
	if err != nil {
		return nil, err
	}
	signaling := transport.DialWebSocket(ctx, config.SignalURL, "signal:"+config.ClientID, logger)

	// The engine subscribes before the data channels exist so it sees
	// the negotiation-needed they raise.
	engine := negotiation.New(negotiation.Config{
		Role:      negotiation.Impolite,
		Peer:      connection,
		Signaling: signaling,
		Logger:    logger,
	})

	action, err := connection.CreateDataChannel(
		transport.Label(transport.ActionLabel, config.ClientID),
		transport.ActionChannelInit(),
	)
	if err != nil {
		signaling.Close()
		connection.Close()
		return nil, err
	}
	state, err := connection.CreateDataChannel(
		transport.Label(transport.StateLabel, config.ClientID),
		transport.StateChannelInit(),
	)
	if err != nil {
		signaling.Close()
		connection.Close()
		return nil, err
	}

	return &Peer{
		logger:     logger,
		signaling:  signaling,
		connection: connection,
		engine:     engine,
		session: NewSession(SessionConfig{
			ClientID: config.ClientID,
			Action:   action,
			State:    state,
			Clock:    config.Clock,
			Logger:   config.Logger,
		}),
	}, nil
}

// Session returns the peer's session.
func (p *Peer) Session() *Session { return p.session }

// Store returns the session's reconciliation store.
func (p *Peer) Store() *reconcile.Store[pointer.State] { return p.session.Store() }

// Ready is closed once both data channels are open, the relay's first
// sync has arrived, and the open action has been sent. See
// [Session.Ready].
func (p *Peer) Ready() <-chan struct{} { return p.session.Ready() }

// Dispatch sends a local action. See [Session.Dispatch].
func (p *Peer) Dispatch(actionType string, body any) (pointer.State, error) {
	return p.session.Dispatch(actionType, body)
}

// Run negotiates and keeps the connection up until ctx is cancelled
// (returning nil), the session ends (returning an error wrapping
// ErrSessionClosed), or signaling fails. Everything is torn down
// before Run returns.
func (p *Peer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- p.engine.Run(ctx)
	}()

	var err error
	select {
	case <-ctx.Done():
		<-engineDone
	case <-p.session.Done():
		cancel()
		<-engineDone
		err = p.session.Err()
	case engineErr := <-engineDone:
		if engineErr != nil {
			err = fmt.Errorf("negotiation ended: %w", engineErr)
		}
	}

	p.session.Close()
	if closeErr := p.connection.Close(); closeErr != nil {
		p.logger.Debug("closing peer connection", "error", closeErr)
	}
	p.signaling.Close()
	p.logger.Info("peer stopped", "error", err)
	return err
}
