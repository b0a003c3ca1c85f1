// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/lib/event"
	"github.com/bureau-foundation/rendezvous/transport"
)

// ErrSignalingClosed is returned by Run when the signaling channel
// closes or fails. No renegotiation is possible afterwards.
var ErrSignalingClosed = errors.New("negotiation: signaling channel closed")

// eventQueueSize bounds events posted before Run consumes them. Pion
// callbacks block when the queue is full.
const eventQueueSize = 256

// Config configures an Engine.
type Config struct {
	Role Role

	// Peer is the connection being negotiated.
	Peer transport.PeerConnection

	// Signaling carries SignalMessages to and from the remote side. It
	// must be reliable and ordered. Sends made before it opens are
	// queued.
	Signaling transport.Channel

	Logger *slog.Logger
}

// Engine runs perfect negotiation for one peer connection.
type Engine struct {
	role      Role
	peer      transport.PeerConnection
	signaling transport.Channel
	outbox    *transport.Outbox
	logger    *slog.Logger

	events chan engineEvent
	scope  *event.Scope
	done   chan struct{}
	once   sync.Once

	// Owned by the Run goroutine.
	isOffering         bool
	ignoreOffer        bool
	negotiationPending bool
	earlyCandidates    []webrtc.ICECandidateInit
	ignoredOffers      int

	mu      sync.Mutex
	session PeerSession
}

// engineEvent is either a peer notification or a signaling event.
type engineEvent struct {
	peer      *transport.PeerEvent
	signaling *transport.ChannelEvent
}

// New creates an Engine and subscribes it to the peer and the
// signaling channel. Events are queued until Run starts.
func New(config Config) *Engine {
	engine := &Engine{
		role:      config.Role,
		peer:      config.Peer,
		signaling: config.Signaling,
		logger:    config.Logger.With("role", config.Role.String()),
		events:    make(chan engineEvent, eventQueueSize),
		scope:     event.NewScope(),
		done:      make(chan struct{}),
	}
	engine.session.Role = config.Role
	engine.session.SignalingState = webrtc.SignalingStateStable

	engine.outbox = transport.NewOutbox(config.Signaling, engine.logger)
	engine.scope.Add(
		config.Peer.Subscribe(func(ev transport.PeerEvent) {
			engine.post(engineEvent{peer: &ev})
		}),
		config.Signaling.Subscribe(func(ev transport.ChannelEvent) {
			engine.post(engineEvent{signaling: &ev})
		}),
	)
	return engine
}

// Session returns a snapshot of the negotiation state.
func (e *Engine) Session() PeerSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run processes events until ctx is cancelled (returning nil) or the
// signaling channel ends (returning ErrSignalingClosed). Run must be
// called at most once.
func (e *Engine) Run(ctx context.Context) error {
	defer e.once.Do(func() { close(e.done) })
	defer e.outbox.Close()
	defer e.scope.Close()

	e.logger.Debug("negotiation started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			if ev.peer != nil {
				e.handlePeerEvent(*ev.peer)
			}
			if ev.signaling != nil {
				if err := e.handleSignalingEvent(*ev.signaling); err != nil {
					return err
				}
			}
			e.refreshSession()
		}
	}
}

func (e *Engine) post(ev engineEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) handlePeerEvent(ev transport.PeerEvent) {
	switch ev.Kind {
	case transport.PeerNegotiationNeeded:
		e.negotiate()

	case transport.PeerICECandidate:
		if ev.Candidate == nil {
			e.logger.Debug("local candidate gathering complete")
			return
		}
		e.send(transport.CandidateMessage(*ev.Candidate))

	case transport.PeerICEConnectionState:
		e.logger.Debug("ice connection state changed", "state", ev.ICEState.String())
		if ev.ICEState == webrtc.ICEConnectionStateFailed {
			e.logger.Warn("ice connection failed, restarting")
			e.peer.RestartICE()
		}

	case transport.PeerConnectionState:
		e.logger.Debug("connection state changed", "state", ev.ConnectionState.String())
	}
}

// negotiate creates and sends a local offer. If an exchange is already
// in progress the offer is deferred until signaling returns to stable.
func (e *Engine) negotiate() {
	if e.peer.SignalingState() != webrtc.SignalingStateStable {
		e.negotiationPending = true
		e.logger.Debug("negotiation deferred until stable",
			"signaling_state", e.peer.SignalingState().String())
		return
	}
	e.negotiationPending = false

	e.setOffering(true)
	defer e.setOffering(false)

	offer, err := e.peer.CreateOffer()
	if err != nil {
		e.logger.Error("creating offer failed", "error", err)
		return
	}
	if err := e.peer.SetLocalDescription(offer); err != nil {
		e.logger.Error("setting local offer failed", "error", err)
		return
	}
	e.send(transport.DescriptionMessage(offer))
}

func (e *Engine) setOffering(offering bool) {
	e.isOffering = offering
	e.mu.Lock()
	e.session.IsOffering = offering
	e.mu.Unlock()
}

func (e *Engine) handleSignalingEvent(ev transport.ChannelEvent) error {
	switch ev.Kind {
	case transport.EventMessage:
		message, err := transport.DecodeSignal(ev.Data)
		if err != nil {
			e.logger.Warn("dropping malformed signal message", "error", err)
			return nil
		}
		e.handleSignal(message)
	case transport.EventClose:
		return ErrSignalingClosed
	case transport.EventError:
		return fmt.Errorf("%w: %w", ErrSignalingClosed, ev.Err)
	}
	return nil
}

func (e *Engine) handleSignal(message transport.SignalMessage) {
	switch {
	case message.Description != nil:
		e.handleDescription(*message.Description)
	case message.Candidate != nil:
		e.handleCandidate(*message.Candidate)
	default:
		e.logger.Debug("remote candidate gathering complete")
	}
}

func (e *Engine) handleDescription(description webrtc.SessionDescription) {
	signalingState := e.peer.SignalingState()
	offerCollision := description.Type == webrtc.SDPTypeOffer &&
		(e.isOffering || signalingState != webrtc.SignalingStateStable)

	e.ignoreOffer = e.role == Impolite && offerCollision
	if e.ignoreOffer {
		e.ignoredOffers++
		e.logger.Info("ignoring colliding offer",
			"signaling_state", signalingState.String(),
			"is_offering", e.isOffering,
		)
		return
	}

	if offerCollision && signalingState != webrtc.SignalingStateStable {
		if err := e.peer.Rollback(); err != nil {
			e.logger.Error("rolling back local offer failed", "error", err)
			return
		}
		e.logger.Info("rolled back local offer for remote offer")
	}

	if err := e.peer.SetRemoteDescription(description); err != nil {
		e.logger.Error("setting remote description failed",
			"type", description.Type.String(),
			"error", err,
		)
		return
	}
	e.flushEarlyCandidates()

	if description.Type == webrtc.SDPTypeOffer {
		answer, err := e.peer.CreateAnswer()
		if err != nil {
			e.logger.Error("creating answer failed", "error", err)
			return
		}
		if err := e.peer.SetLocalDescription(answer); err != nil {
			e.logger.Error("setting local answer failed", "error", err)
			return
		}
		e.send(transport.DescriptionMessage(answer))
	}

	if e.negotiationPending && e.peer.SignalingState() == webrtc.SignalingStateStable {
		e.negotiate()
	}
}

func (e *Engine) handleCandidate(candidate webrtc.ICECandidateInit) {
	if e.peer.RemoteDescription() == nil {
		e.earlyCandidates = append(e.earlyCandidates, candidate)
		return
	}
	e.addCandidate(candidate)
}

func (e *Engine) flushEarlyCandidates() {
	if len(e.earlyCandidates) == 0 {
		return
	}
	candidates := e.earlyCandidates
	e.earlyCandidates = nil
	e.logger.Debug("applying buffered candidates", "count", len(candidates))
	for _, candidate := range candidates {
		e.addCandidate(candidate)
	}
}

func (e *Engine) addCandidate(candidate webrtc.ICECandidateInit) {
	if err := e.peer.AddICECandidate(candidate); err != nil {
		// Candidates for an offer we ignored are expected to fail.
		if e.ignoreOffer {
			e.logger.Debug("candidate for ignored offer rejected", "error", err)
			return
		}
		e.logger.Warn("adding remote candidate failed", "error", err)
	}
}

func (e *Engine) send(message transport.SignalMessage) {
	data, err := message.Encode()
	if err != nil {
		e.logger.Error("encoding signal message failed", "error", err)
		return
	}
	if err := e.outbox.Send(data); err != nil {
		e.logger.Warn("sending signal message failed", "error", err)
	}
}

func (e *Engine) refreshSession() {
	signalingState := e.peer.SignalingState()
	connectionState := e.peer.ConnectionState()
	iceState := e.peer.ICEConnectionState()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.IsOffering = e.isOffering
	e.session.SignalingState = signalingState
	e.session.ConnectionState = connectionState
	e.session.ICEConnectionState = iceState
	e.session.PendingCandidates = len(e.earlyCandidates)
	e.session.IgnoredOffers = e.ignoredOffers
}
