// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/lib/event"
)

// PeerEventKind identifies a peer connection notification.
type PeerEventKind int

const (
	PeerNegotiationNeeded PeerEventKind = iota + 1
	PeerICECandidate
	PeerICEConnectionState
	PeerConnectionState
	PeerDataChannel
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerNegotiationNeeded:
		return "negotiation-needed"
	case PeerICECandidate:
		return "ice-candidate"
	case PeerICEConnectionState:
		return "ice-connection-state"
	case PeerConnectionState:
		return "connection-state"
	case PeerDataChannel:
		return "data-channel"
	default:
		return "unknown"
	}
}

// PeerEvent is one notification from a [PeerConnection].
type PeerEvent struct {
	Kind PeerEventKind

	// Candidate is set for PeerICECandidate. Nil means local
	// gathering is complete.
	Candidate *webrtc.ICECandidateInit

	// ICEState is set for PeerICEConnectionState.
	ICEState webrtc.ICEConnectionState

	// ConnectionState is set for PeerConnectionState.
	ConnectionState webrtc.PeerConnectionState

	// DataChannel is set for PeerDataChannel: a channel opened by the
	// remote side.
	DataChannel *DataChannel
}

// PeerConnection is the negotiation surface of a WebRTC peer
// connection.
type PeerConnection interface {
	// CreateOffer creates an offer. After RestartICE the next offer
	// carries new ICE credentials.
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(description webrtc.SessionDescription) error
	SetRemoteDescription(description webrtc.SessionDescription) error

	// Rollback discards a pending local offer, returning signaling
	// to stable.
	Rollback() error

	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// RestartICE arranges for the next offer to restart ICE and
	// raises negotiation-needed.
	RestartICE()

	RemoteDescription() *webrtc.SessionDescription
	SignalingState() webrtc.SignalingState
	ConnectionState() webrtc.PeerConnectionState
	ICEConnectionState() webrtc.ICEConnectionState

	// Subscribe registers a handler for peer events. Handlers run on
	// the connection's internal goroutines.
	Subscribe(handler func(PeerEvent)) *event.Subscription

	Close() error
}

// PionPeer implements [PeerConnection] over a pion PeerConnection.
type PionPeer struct {
	connection *webrtc.PeerConnection
	logger     *slog.Logger
	feed       event.Feed[PeerEvent]

	mu         sync.Mutex
	iceRestart bool
}

// Compile-time interface check.
var _ PeerConnection = (*PionPeer)(nil)

// NewPionPeer creates a pion PeerConnection configured from config and
// wires its callbacks to the peer's event feed.
func NewPionPeer(config ICEConfig, logger *slog.Logger) (*PionPeer, error) {
	// Loopback candidates are needed when both ends share a host with
	// no other interface, as in tests and local development.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(config.IncludeLoopback)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	connection, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.Servers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	peer := &PionPeer{
		connection: connection,
		logger:     logger,
	}

	connection.OnNegotiationNeeded(func() {
		peer.feed.Publish(PeerEvent{Kind: PeerNegotiationNeeded})
	})
	connection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		ev := PeerEvent{Kind: PeerICECandidate}
		if candidate != nil {
			init := candidate.ToJSON()
			ev.Candidate = &init
		}
		peer.feed.Publish(ev)
	})
	connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		peer.feed.Publish(PeerEvent{Kind: PeerICEConnectionState, ICEState: state})
	})
	connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		peer.feed.Publish(PeerEvent{Kind: PeerConnectionState, ConnectionState: state})
	})
	connection.OnDataChannel(func(raw *webrtc.DataChannel) {
		peer.feed.Publish(PeerEvent{Kind: PeerDataChannel, DataChannel: NewDataChannel(raw)})
	})

	return peer, nil
}

// CreateDataChannel opens a data channel to the remote side. The first
// channel on a fresh connection raises negotiation-needed.
func (p *PionPeer) CreateDataChannel(label string, init *webrtc.DataChannelInit) (*DataChannel, error) {
	raw, err := p.connection.CreateDataChannel(label, init)
	if err != nil {
		return nil, fmt.Errorf("creating data channel %s: %w", label, err)
	}
	return NewDataChannel(raw), nil
}

func (p *PionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	restart := p.iceRestart
	p.iceRestart = false
	p.mu.Unlock()

	var options *webrtc.OfferOptions
	if restart {
		options = &webrtc.OfferOptions{ICERestart: true}
	}
	return p.connection.CreateOffer(options)
}

func (p *PionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.connection.CreateAnswer(nil)
}

func (p *PionPeer) SetLocalDescription(description webrtc.SessionDescription) error {
	return p.connection.SetLocalDescription(description)
}

func (p *PionPeer) SetRemoteDescription(description webrtc.SessionDescription) error {
	return p.connection.SetRemoteDescription(description)
}

// Rollback applies a rollback local description. pion rejects a
// rollback with an empty SDP, so the pending offer's SDP is echoed.
func (p *PionPeer) Rollback() error {
	pending := p.connection.PendingLocalDescription()
	if pending == nil {
		return fmt.Errorf("rollback in signaling state %s: no pending local description",
			p.connection.SignalingState())
	}
	return p.connection.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeRollback,
		SDP:  pending.SDP,
	})
}

func (p *PionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.connection.AddICECandidate(candidate)
}

// RestartICE flags the next offer as an ICE restart and raises
// negotiation-needed. pion has no restartIce, so the event is
// synthesized here.
func (p *PionPeer) RestartICE() {
	p.mu.Lock()
	p.iceRestart = true
	p.mu.Unlock()
	p.logger.Info("ice restart requested")
	go p.feed.Publish(PeerEvent{Kind: PeerNegotiationNeeded})
}

func (p *PionPeer) RemoteDescription() *webrtc.SessionDescription {
	return p.connection.RemoteDescription()
}

func (p *PionPeer) SignalingState() webrtc.SignalingState {
	return p.connection.SignalingState()
}

func (p *PionPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.connection.ConnectionState()
}

func (p *PionPeer) ICEConnectionState() webrtc.ICEConnectionState {
	return p.connection.ICEConnectionState()
}

func (p *PionPeer) Subscribe(handler func(PeerEvent)) *event.Subscription {
	return p.feed.Subscribe(handler)
}

func (p *PionPeer) Close() error {
	return p.connection.Close()
}
