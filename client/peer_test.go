// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/logging"
	"github.com/bureau-foundation/rendezvous/lib/testutil"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/relay"
	"github.com/bureau-foundation/rendezvous/transport"
)

const connectTimeout = 30 * time.Second

// startRelay serves a relay on a loopback httptest server and returns
// its /signal URL.
func startRelay(t *testing.T) (*relay.Hub, string) {
	t.Helper()
	hub, err := relay.NewHub(relay.HubConfig{
		Clock:     clock.Real(),
		Logger:    logging.Discard(),
		RateLimit: config.RateConfig{},
	})
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	server := relay.NewServer(relay.ServerConfig{
		Hub:        hub,
		Rendezvous: relay.NewRendezvous(16, logging.Discard()),
		ICE:        transport.ICEConfig{IncludeLoopback: true},
		Logger:     logging.Discard(),
	})
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		server.Close()
		httpServer.Close()
		hub.Close()
	})
	return hub, "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/signal"
}

// runningPeer is a Peer whose Run is executing on its own goroutine.
type runningPeer struct {
	*Peer
	stopped chan struct{}
	err     error
}

func startPeer(t *testing.T, signalURL, clientID string) *runningPeer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	peer, err := New(ctx, Config{
		ClientID:  clientID,
		SignalURL: signalURL,
		ICE:       transport.ICEConfig{IncludeLoopback: true},
		Clock:     clock.Real(),
		Logger:    logging.Discard(),
	})
	if err != nil {
		cancel()
		t.Fatalf("New(%s): %v", clientID, err)
	}
	running := &runningPeer{Peer: peer, stopped: make(chan struct{})}
	go func() {
		defer close(running.stopped)
		running.err = peer.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, running.stopped, connectTimeout, "%s stopping", clientID)
	})
	testutil.RequireClosed(t, peer.Ready(), connectTimeout, "%s data channels open", clientID)
	return running
}

func TestPeersSynchronizeOverWebRTC(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates real pion connections")
	}
	hub, signalURL := startRelay(t)

	a := startPeer(t, signalURL, testutil.UniqueID("a"))
	b := startPeer(t, signalURL, testutil.UniqueID("b"))
	aID := a.Session().ClientID()
	bID := b.Session().ClientID()

	if _, err := a.Dispatch(pointer.TypePointerStart, pointer.Pointer{PointerID: "1", PointerType: "mouse", IsDown: true, X: 40, Y: 2}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	waitForState(t, b.Store(), "b sees a's pointer", func(state pointer.State) bool {
		got, ok := state.Pointer(aID, "1")
		return ok && got.X == 40
	})
	waitForState(t, a.Store(), "a's pointerstart confirmed", func(pointer.State) bool {
		_, ok := a.Store().Settled().Pointer(aID, "1")
		return ok && len(a.Store().Pending()) == 0
	})

	state, _ := hub.Snapshot()
	for _, clientID := range []string{aID, bID} {
		if _, ok := state.Client(clientID); !ok {
			t.Errorf("hub state missing %s", clientID)
		}
	}
}

func TestPeerRunEndsWhenRelayCloses(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates real pion connections")
	}
	hub, signalURL := startRelay(t)
	peer := startPeer(t, signalURL, testutil.UniqueID("a"))

	hub.Close()

	testutil.RequireClosed(t, peer.stopped, connectTimeout, "peer stopping after relay closed its channels")
	if !errors.Is(peer.err, ErrSessionClosed) {
		t.Errorf("Run = %v, want ErrSessionClosed", peer.err)
	}
	if _, err := peer.Dispatch(pointer.TypePointerMove, nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Dispatch after end = %v, want ErrSessionClosed", err)
	}
}
