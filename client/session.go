// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/event"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/reconcile"
	"github.com/bureau-foundation/rendezvous/transport"
)

// ErrSessionClosed is returned once a session's channels have ended.
var ErrSessionClosed = errors.New("client: session closed")

// SyncRequestInterval is the minimum time between sync requests.
const SyncRequestInterval = 2 * time.Second

// syncRequest is sent on the state channel to ask for a snapshot. The
// relay answers any state-channel message with a sync.
var syncRequest = []byte(`{"type":"sync"}`)

// SessionConfig configures a Session.
type SessionConfig struct {
	ClientID string

	// Action and State are the client's two channels, typically
	// labelled action:<ClientID> and state:<ClientID>.
	Action transport.Channel
	State  transport.Channel

	Clock  clock.Clock
	Logger *slog.Logger
}

// Session synchronizes one client's pointer state with the relay.
type Session struct {
	clientID string
	action   transport.Channel
	state    transport.Channel
	clock    clock.Clock
	logger   *slog.Logger

	issuer *reconcile.Issuer
	store  *reconcile.Store[pointer.State]
	scope  *event.Scope

	ready     chan struct{}
	readyOnce sync.Once

	// synced is set by the first sync. The relay sends it once the
	// state channel is attached, so announcing waits for it.
	synced atomic.Bool

	// receiveMu serializes inbound server actions from the two
	// channels so gap detection sees a consistent last id.
	receiveMu       sync.Mutex
	lastSyncRequest time.Time

	mu    sync.Mutex
	ended bool
	cause error
}

// NewSession subscribes to both channels. Channels that are already
// open count toward readiness immediately.
func NewSession(config SessionConfig) *Session {
	session := &Session{
		clientID: config.ClientID,
		action:   config.Action,
		state:    config.State,
		clock:    config.Clock,
		logger:   config.Logger.With("client", config.ClientID),
		issuer:   reconcile.NewIssuer(config.ClientID, config.Clock),
		store: reconcile.NewStore(reconcile.StoreConfig[pointer.State]{
			Initial:        pointer.NewState(),
			Reduce:         pointer.Reduce,
			DecodeSnapshot: pointer.DecodeSnapshot,
			Logger:         config.Logger,
		}),
		scope: event.NewScope(),
		ready: make(chan struct{}),
	}

	for _, channel := range []transport.Channel{config.Action, config.State} {
		session.scope.Add(channel.Subscribe(func(ev transport.ChannelEvent) {
			session.handle(channel, ev)
		}))
	}
	session.checkReady()
	return session
}

// ClientID returns the session's client id.
func (s *Session) ClientID() string { return s.clientID }

// Store returns the session's reconciliation store.
func (s *Session) Store() *reconcile.Store[pointer.State] { return s.store }

// Ready is closed once both channels are open, the first sync has
// arrived, and the open action has been sent.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.scope.Done() }

// Err returns nil while the session runs and an error wrapping
// ErrSessionClosed after it ends.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		return nil
	}
	if s.cause != nil {
		return fmt.Errorf("%w: %w", ErrSessionClosed, s.cause)
	}
	return ErrSessionClosed
}

// Dispatch issues a local action, applies it optimistically, and sends
// it to the relay. It returns the published state. Before Ready it
// fails with transport.ErrNotOpen.
func (s *Session) Dispatch(actionType string, body any) (pointer.State, error) {
	if err := s.Err(); err != nil {
		return pointer.State{}, err
	}
	select {
	case <-s.ready:
	default:
		return pointer.State{}, fmt.Errorf("dispatching %s: %w", actionType, transport.ErrNotOpen)
	}
	return s.dispatch(actionType, body)
}

func (s *Session) dispatch(actionType string, body any) (pointer.State, error) {
	action, err := s.issuer.Issue(actionType, body)
	if err != nil {
		return pointer.State{}, err
	}
	data, err := json.Marshal(action)
	if err != nil {
		return pointer.State{}, fmt.Errorf("encoding %s action: %w", actionType, err)
	}
	published, err := s.store.Dispatch(action)
	if err != nil {
		return pointer.State{}, fmt.Errorf("applying %s action: %w", actionType, err)
	}
	if err := s.action.Send(data); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return published, fmt.Errorf("sending %s action: %w", actionType, ErrSessionClosed)
		}
		return published, fmt.Errorf("sending %s action: %w", actionType, err)
	}
	return published, nil
}

// Close closes both channels and ends the session.
func (s *Session) Close() {
	s.end(nil)
}

func (s *Session) handle(channel transport.Channel, ev transport.ChannelEvent) {
	switch ev.Kind {
	case transport.EventOpen:
		s.logger.Debug("channel open", "label", channel.Label())
		s.checkReady()
	case transport.EventMessage:
		s.receive(channel, ev.Data)
	case transport.EventClose:
		s.logger.Info("channel closed", "label", channel.Label())
		s.end(nil)
	case transport.EventError:
		s.logger.Warn("channel failed", "label", channel.Label(), "error", ev.Err)
		s.end(ev.Err)
	}
}

func (s *Session) checkReady() {
	if !s.synced.Load() || !s.action.IsOpen() || !s.state.IsOpen() {
		return
	}
	s.readyOnce.Do(func() {
		if _, err := s.dispatch(pointer.TypeOpen, nil); err != nil {
			s.logger.Warn("announcing session failed", "error", err)
			return
		}
		s.logger.Info("session ready")
		close(s.ready)
	})
}

func (s *Session) receive(channel transport.Channel, data []byte) {
	action, err := reconcile.ParseAction(data)
	if err != nil {
		s.logger.Warn("dropping malformed action", "label", channel.Label(), "error", err)
		return
	}
	if action.Source != reconcile.Server {
		s.logger.Warn("dropping non-server action", "label", channel.Label(), "type", action.Type)
		return
	}

	if s.apply(channel, action) {
		s.checkReady()
	}
}

// apply dispatches a server action and reports whether it was the
// first sync.
func (s *Session) apply(channel transport.Channel, action reconcile.Action) bool {
	s.receiveMu.Lock()
	defer s.receiveMu.Unlock()

	last := s.store.LastServerActionID()
	published, err := s.store.Dispatch(action)
	if err != nil {
		s.logger.Warn("applying server action failed",
			"label", channel.Label(),
			"type", action.Type,
			"server_action_id", action.Meta.ServerActionID,
			"error", err,
		)
		return false
	}

	if action.IsSync() {
		if fingerprint, err := pointer.Fingerprint(published); err != nil {
			s.logger.Warn("fingerprinting synced state failed", "error", err)
		} else {
			s.logger.Info("state synced",
				"server_action_id", action.Meta.ServerActionID,
				"fingerprint", fingerprint,
				"clients", len(published.Clients),
			)
		}
		return !s.synced.Swap(true)
	}

	// Every server action reaches every client on one of its two
	// channels, so a skipped id means a lost action.
	if s.synced.Load() && action.Meta.ServerActionID > last+1 {
		s.requestSync(last, action.Meta.ServerActionID)
	}
	return false
}

func (s *Session) requestSync(last, received uint64) {
	now := s.clock.Now()
	if !s.lastSyncRequest.IsZero() && now.Sub(s.lastSyncRequest) < SyncRequestInterval {
		return
	}
	if err := s.state.Send(syncRequest); err != nil {
		s.logger.Warn("requesting sync failed", "error", err)
		return
	}
	s.lastSyncRequest = now
	s.logger.Debug("server action gap, sync requested", "last", last, "received", received)
}

// end records the cause, detaches from both channels, and closes them.
func (s *Session) end(cause error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.cause = cause
	s.mu.Unlock()

	s.scope.Close()
	s.action.Close()
	s.state.Close()
}
