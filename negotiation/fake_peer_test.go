// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package negotiation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/lib/event"
	"github.com/bureau-foundation/rendezvous/transport"
)

// fakePeer is a transport.PeerConnection with the JSEP signaling state
// machine and no media. Every mutating call is reported on calls so
// tests can assert exact sequences without sleeping.
type fakePeer struct {
	feed  event.Feed[transport.PeerEvent]
	calls chan string

	mu             sync.Mutex
	signalingState webrtc.SignalingState
	iceState       webrtc.ICEConnectionState
	remote         *webrtc.SessionDescription
	offers         int
	answers        int
	restarts       int
	restartPending bool
	candidates     []string
}

var _ transport.PeerConnection = (*fakePeer)(nil)

func newFakePeer() *fakePeer {
	return &fakePeer{
		calls:          make(chan string, 256),
		signalingState: webrtc.SignalingStateStable,
		iceState:       webrtc.ICEConnectionStateNew,
	}
}

func (p *fakePeer) record(call string) {
	p.calls <- call
}

func (p *fakePeer) emit(ev transport.PeerEvent) {
	p.feed.Publish(ev)
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	p.offers++
	sdp := fmt.Sprintf("offer-%d", p.offers)
	if p.restartPending {
		sdp += "-restart"
		p.restartPending = false
	}
	p.mu.Unlock()
	p.record("CreateOffer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signalingState != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, errors.New("CreateAnswer without remote offer")
	}
	p.answers++
	p.record("CreateAnswer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", p.answers)}, nil
}

func (p *fakePeer) SetLocalDescription(description webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case description.Type == webrtc.SDPTypeOffer && p.signalingState == webrtc.SignalingStateStable:
		p.signalingState = webrtc.SignalingStateHaveLocalOffer
	case description.Type == webrtc.SDPTypeAnswer && p.signalingState == webrtc.SignalingStateHaveRemoteOffer:
		p.signalingState = webrtc.SignalingStateStable
	default:
		return fmt.Errorf("SetLocalDescription(%s) in %s", description.Type, p.signalingState)
	}
	p.record("SetLocalDescription:" + description.Type.String())
	return nil
}

func (p *fakePeer) SetRemoteDescription(description webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case description.Type == webrtc.SDPTypeOffer && p.signalingState == webrtc.SignalingStateStable:
		p.signalingState = webrtc.SignalingStateHaveRemoteOffer
	case description.Type == webrtc.SDPTypeAnswer && p.signalingState == webrtc.SignalingStateHaveLocalOffer:
		p.signalingState = webrtc.SignalingStateStable
	default:
		p.record("SetRemoteDescription:rejected")
		return fmt.Errorf("SetRemoteDescription(%s) in %s", description.Type, p.signalingState)
	}
	p.remote = &description
	p.record("SetRemoteDescription:" + description.Type.String())
	return nil
}

func (p *fakePeer) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signalingState != webrtc.SignalingStateHaveLocalOffer {
		return fmt.Errorf("Rollback in %s", p.signalingState)
	}
	p.signalingState = webrtc.SignalingStateStable
	p.record("Rollback")
	return nil
}

func (p *fakePeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		p.record("AddICECandidate:rejected")
		return errors.New("AddICECandidate without remote description")
	}
	if candidate.Candidate == "bad" {
		p.record("AddICECandidate:rejected")
		return errors.New("malformed candidate")
	}
	p.candidates = append(p.candidates, candidate.Candidate)
	p.record("AddICECandidate:" + candidate.Candidate)
	return nil
}

func (p *fakePeer) RestartICE() {
	p.mu.Lock()
	p.restarts++
	p.restartPending = true
	p.mu.Unlock()
	p.record("RestartICE")
	p.emit(transport.PeerEvent{Kind: transport.PeerNegotiationNeeded})
}

func (p *fakePeer) RemoteDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *fakePeer) SignalingState() webrtc.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signalingState
}

func (p *fakePeer) ConnectionState() webrtc.PeerConnectionState {
	return webrtc.PeerConnectionStateNew
}

func (p *fakePeer) ICEConnectionState() webrtc.ICEConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iceState
}

func (p *fakePeer) Subscribe(handler func(transport.PeerEvent)) *event.Subscription {
	return p.feed.Subscribe(handler)
}

func (p *fakePeer) Close() error { return nil }
