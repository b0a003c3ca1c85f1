// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/rendezvous/negotiation"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/transport"
)

// shutdownTimeout bounds how long Serve waits for in-flight HTTP
// requests after its context is cancelled.
const shutdownTimeout = 5 * time.Second

// StateResponse is the body of GET /state.
type StateResponse struct {
	State          pointer.State `json:"state"`
	Fingerprint    string        `json:"fingerprint"`
	ServerActionID uint64        `json:"serverActionId"`
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Hub        *Hub
	Rendezvous *Rendezvous

	// ICE configures the relay's own peer connections on /signal.
	ICE transport.ICEConfig

	Logger *slog.Logger
}

// Server serves the relay's HTTP surface.
type Server struct {
	hub        *Hub
	rendezvous *Rendezvous
	ice        transport.ICEConfig
	logger     *slog.Logger

	upgrader websocket.Upgrader
	router   *mux.Router

	// ctx bounds every /signal session. Close cancels it.
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

// NewServer creates a Server and registers its routes.
func NewServer(config ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		hub:        config.Hub,
		rendezvous: config.Rendezvous,
		ice:        config.ICE,
		logger:     config.Logger,
		upgrader: websocket.Upgrader{
			// Browser peers connect from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}

	router := mux.NewRouter()
	router.HandleFunc("/signal", server.handleSignal).Methods(http.MethodGet)
	router.HandleFunc("/pair/{key}", server.handlePair).Methods(http.MethodGet)
	router.HandleFunc("/state", server.handleState).Methods(http.MethodGet)
	router.HandleFunc("/healthz", server.handleHealth).Methods(http.MethodGet)
	router.Use(server.logRequests)
	server.router = router

	return server
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts HTTP connections on listener until ctx is cancelled,
// then shuts down and ends every /signal session.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownContext); err != nil {
			s.logger.Warn("http shutdown incomplete", "error", err)
		}
	}()

	s.logger.Info("relay listening", "address", listener.Addr().String())
	err := httpServer.Serve(listener)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close ends every /signal session and waits for them. Websockets are
// hijacked, so http.Server.Shutdown does not reach them.
func (s *Server) Close() {
	s.cancel()
	s.rendezvous.Close()
	s.sessions.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.logger.Debug("http request", "method", request.Method, "path", request.URL.Path, "remote", request.RemoteAddr)
		next.ServeHTTP(writer, request)
	})
}

// handleSignal runs one polite negotiation session per websocket. Data
// channels the client opens are attached to the hub; the session ends
// when the websocket closes or the server shuts down.
func (s *Server) handleSignal(writer http.ResponseWriter, request *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(writer, "relay shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Warn("signal upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	logger := s.logger.With("session", sessionID)
	signaling := transport.NewWebSocketChannel(conn, "signal:"+sessionID, logger)

	peer, err := transport.NewPionPeer(s.ice, logger)
	if err != nil {
		logger.Error("creating relay peer failed", "error", err)
		signaling.Close()
		return
	}

	attach := peer.Subscribe(func(ev transport.PeerEvent) {
		if ev.Kind != transport.PeerDataChannel {
			return
		}
		if err := s.hub.Attach(ev.DataChannel); err != nil {
			logger.Warn("rejecting data channel", "label", ev.DataChannel.Label(), "error", err)
			ev.DataChannel.Close()
		}
	})
	engine := negotiation.New(negotiation.Config{
		Role:      negotiation.Polite,
		Peer:      peer,
		Signaling: signaling,
		Logger:    logger,
	})
	signaling.Start()
	logger.Info("signal session started", "remote", request.RemoteAddr)

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		err := engine.Run(s.ctx)
		attach.Close()
		if closeErr := peer.Close(); closeErr != nil {
			logger.Debug("closing relay peer", "error", closeErr)
		}
		signaling.Close()
		if err != nil && !errors.Is(err, negotiation.ErrSignalingClosed) {
			logger.Warn("signal session ended", "error", err)
			return
		}
		logger.Info("signal session ended")
	}()
}

// handlePair joins the websocket to the rendezvous under the path key.
func (s *Server) handlePair(writer http.ResponseWriter, request *http.Request) {
	key := mux.Vars(request)["key"]
	if s.rendezvous.Full(key) {
		http.Error(writer, ErrPairFull.Error(), http.StatusConflict)
		return
	}
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Warn("pair upgrade failed", "key", key, "error", err)
		return
	}

	endpoint := transport.NewWebSocketChannel(conn, "pair:"+key, s.logger)
	if err := s.rendezvous.Join(key, endpoint); err != nil {
		// Lost a race with another joiner after the Full check.
		s.logger.Info("pair rejected", "key", key, "error", err)
		endpoint.CloseWith(websocket.ClosePolicyViolation, "pair full")
		return
	}
	endpoint.Start()
}

func (s *Server) handleState(writer http.ResponseWriter, request *http.Request) {
	state, serverActionID := s.hub.Snapshot()
	fingerprint, err := pointer.Fingerprint(state)
	if err != nil {
		http.Error(writer, fmt.Sprintf("fingerprinting state: %v", err), http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(StateResponse{
		State:          state,
		Fingerprint:    fingerprint,
		ServerActionID: serverActionID,
	}); err != nil {
		s.logger.Debug("writing state response", "error", err)
	}
}

func (s *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(writer, "ok")
}
