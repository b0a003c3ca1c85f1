// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package negotiation

import "github.com/pion/webrtc/v4"

// Role decides which side yields when offers collide. It is fixed for
// the lifetime of a session.
type Role int

const (
	// Impolite peers ignore a colliding offer and keep their own.
	Impolite Role = iota

	// Polite peers roll back their own offer and answer the remote one.
	Polite
)

func (r Role) String() string {
	switch r {
	case Impolite:
		return "impolite"
	case Polite:
		return "polite"
	default:
		return "unknown"
	}
}

// PeerSession is a snapshot of one negotiating peer connection.
type PeerSession struct {
	Role Role

	// IsOffering is true while a local offer is being created and
	// applied.
	IsOffering bool

	SignalingState     webrtc.SignalingState
	ConnectionState    webrtc.PeerConnectionState
	ICEConnectionState webrtc.ICEConnectionState

	// PendingCandidates counts remote candidates buffered until a
	// remote description is set.
	PendingCandidates int

	// IgnoredOffers counts colliding offers discarded by an impolite
	// session.
	IgnoredOffers int
}

// Stable reports whether no offer/answer exchange is in progress.
func (s PeerSession) Stable() bool {
	return !s.IsOffering && s.SignalingState == webrtc.SignalingStateStable
}
