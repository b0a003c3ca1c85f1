// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// SignalMessage is one signaling frame. Exactly one of Candidate and
// Description is set, except for the end-of-candidates marker
// {"candidate": null}, which has neither.
type SignalMessage struct {
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Description *webrtc.SessionDescription `json:"description,omitempty"`
}

// CandidateMessage wraps a local candidate for transmission.
func CandidateMessage(candidate webrtc.ICECandidateInit) SignalMessage {
	return SignalMessage{Candidate: &candidate}
}

// DescriptionMessage wraps a local offer or answer for transmission.
func DescriptionMessage(description webrtc.SessionDescription) SignalMessage {
	return SignalMessage{Description: &webrtc.SessionDescription{
		Type: description.Type,
		SDP:  description.SDP,
	}}
}

// EndOfCandidates reports whether the message is {"candidate": null}.
func (m SignalMessage) EndOfCandidates() bool {
	return m.Candidate == nil && m.Description == nil
}

// Encode marshals the message to its wire JSON.
func (m SignalMessage) Encode() ([]byte, error) {
	if m.Candidate != nil && m.Description != nil {
		return nil, errors.New("signal message has both candidate and description")
	}
	if m.EndOfCandidates() {
		return []byte(`{"candidate":null}`), nil
	}
	return json.Marshal(m)
}

// DecodeSignal parses a signaling frame. Description types other than
// offer and answer are rejected.
func DecodeSignal(data []byte) (SignalMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return SignalMessage{}, fmt.Errorf("decoding signal message: %w", err)
	}

	rawCandidate, hasCandidate := fields["candidate"]
	rawDescription, hasDescription := fields["description"]

	switch {
	case hasCandidate && hasDescription:
		return SignalMessage{}, errors.New("signal message has both candidate and description")
	case hasCandidate:
		if isNull(rawCandidate) {
			return SignalMessage{}, nil
		}
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(rawCandidate, &candidate); err != nil {
			return SignalMessage{}, fmt.Errorf("decoding candidate: %w", err)
		}
		return SignalMessage{Candidate: &candidate}, nil
	case hasDescription:
		var description webrtc.SessionDescription
		if err := json.Unmarshal(rawDescription, &description); err != nil {
			return SignalMessage{}, fmt.Errorf("decoding description: %w", err)
		}
		if description.Type != webrtc.SDPTypeOffer && description.Type != webrtc.SDPTypeAnswer {
			return SignalMessage{}, fmt.Errorf("unsupported description type %q", description.Type)
		}
		return SignalMessage{Description: &description}, nil
	default:
		return SignalMessage{}, errors.New("signal message has neither candidate nor description")
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
