// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/netutil"
	"github.com/bureau-foundation/rendezvous/lib/testutil"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/transport"
)

func newTestServer(t *testing.T) (*Server, *Hub, *httptest.Server) {
	t.Helper()
	hub := newTestHub(t, config.RateConfig{})
	server := NewServer(ServerConfig{
		Hub:        hub,
		Rendezvous: NewRendezvous(16, discardLogger()),
		ICE:        transport.ICEConfig{IncludeLoopback: true},
		Logger:     discardLogger(),
	})
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		server.Close()
		httpServer.Close()
	})
	return server, hub, httpServer
}

func websocketURL(httpServer *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(httpServer.URL, "http") + path
}

func TestServerHealth(t *testing.T) {
	_, _, httpServer := newTestServer(t)

	response, err := http.Get(httpServer.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	if response.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("/healthz = %d %q", response.StatusCode, body)
	}
}

func TestServerState(t *testing.T) {
	_, hub, httpServer := newTestServer(t)
	a := connect(t, hub, "a1")
	a.send(t, pointer.TypeOpen, nil)
	requireAction(t, a.states)

	response, err := http.Get(httpServer.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer response.Body.Close()

	var got StateResponse
	if err := netutil.DecodeResponse(response.Body, &got); err != nil {
		t.Fatalf("decoding /state: %v", err)
	}
	if got.ServerActionID != 1 {
		t.Errorf("serverActionId = %d, want 1", got.ServerActionID)
	}
	if _, ok := got.State.Client("a1"); !ok {
		t.Errorf("state = %+v, want a1", got.State)
	}

	state, _ := hub.Snapshot()
	want, err := pointer.Fingerprint(state)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if got.Fingerprint != want {
		t.Errorf("fingerprint = %s, want %s", got.Fingerprint, want)
	}
}

func TestServerPairsWebSockets(t *testing.T) {
	server, _, httpServer := newTestServer(t)
	key := testutil.UniqueID("pair")
	url := websocketURL(httpServer, "/pair/"+key)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing first endpoint: %v", err)
	}
	defer first.Close()
	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"description":{"type":"offer","sdp":"v=0"}}`)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing second endpoint: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(testTimeout))
	_, data, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !strings.Contains(string(data), `"offer"`) {
		t.Errorf("second received %s, want the queued offer", data)
	}

	if err := second.WriteMessage(websocket.TextMessage, []byte("answer")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	first.SetReadDeadline(time.Now().Add(testTimeout))
	if _, data, err := first.ReadMessage(); err != nil || string(data) != "answer" {
		t.Errorf("first read = %q, %v; want answer", data, err)
	}

	if !server.rendezvous.Full(key) {
		t.Fatal("key not full after both endpoints exchanged messages")
	}
	response, err := http.Get(httpServer.URL + "/pair/" + key)
	if err != nil {
		t.Fatalf("third GET: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusConflict {
		t.Errorf("third endpoint status = %d, want 409", response.StatusCode)
	}

	// Closing one side ends the other.
	first.Close()
	second.SetReadDeadline(time.Now().Add(testTimeout))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Error("second endpoint still readable after partner closed")
	}
}

func TestServerRejectsNonWebSocketSignal(t *testing.T) {
	_, _, httpServer := newTestServer(t)
	response, err := http.Get(httpServer.URL + "/signal")
	if err != nil {
		t.Fatalf("GET /signal: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("plain GET /signal = %d, want 400", response.StatusCode)
	}
}
