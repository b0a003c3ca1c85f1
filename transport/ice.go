// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/rendezvous/lib/config"
)

// ICEConfig holds ICE server configuration for pion PeerConnections.
type ICEConfig struct {
	// Servers is the list of ICE servers (STUN + TURN) to use during
	// candidate gathering. Order matters: pion tries them in sequence.
	Servers []webrtc.ICEServer

	// IncludeLoopback adds loopback host candidates.
	IncludeLoopback bool
}

// ICEConfigFromSettings converts the ice section of the configuration
// file into pion ICE server entries. An empty server list leaves only
// host candidates, which is sufficient on one machine or one LAN.
func ICEConfigFromSettings(settings config.ICEConfig) ICEConfig {
	result := ICEConfig{IncludeLoopback: settings.IncludeLoopback}
	for _, server := range settings.Servers {
		if len(server.URLs) == 0 {
			continue
		}
		entry := webrtc.ICEServer{
			URLs:     append([]string(nil), server.URLs...),
			Username: server.Username,
		}
		if server.Credential != "" {
			entry.Credential = server.Credential
		}
		result.Servers = append(result.Servers, entry)
	}
	return result
}
