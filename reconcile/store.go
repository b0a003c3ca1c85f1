// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/rendezvous/lib/event"
)

// Reducer applies one action to a state and returns the new state. It
// must be pure: the input state is never modified, and unknown action
// types return the state unchanged.
type Reducer[S any] func(state S, action Action) S

// SnapshotDecoder turns a sync body into a state.
type SnapshotDecoder[S any] func(body json.RawMessage) (S, error)

// DefaultHistoryLimit bounds History when StoreConfig.HistoryLimit is 0.
const DefaultHistoryLimit = 1024

// StoreConfig configures a Store.
type StoreConfig[S any] struct {
	// Initial is the settled state before any server action.
	Initial S

	Reduce         Reducer[S]
	DecodeSnapshot SnapshotDecoder[S]

	// HistoryLimit bounds the number of server actions kept for
	// History. Negative disables history.
	HistoryLimit int

	Logger *slog.Logger
}

// Store is a reconciliation store. It is safe for concurrent use:
// dispatches are serialized and subscribers are notified in dispatch
// order. Subscribers must not call Dispatch.
type Store[S any] struct {
	reduce       Reducer[S]
	decode       SnapshotDecoder[S]
	historyLimit int
	logger       *slog.Logger

	// dispatchMu serializes Dispatch including subscriber
	// notification. mu guards the fields below and is never held while
	// subscribers run.
	dispatchMu sync.Mutex

	mu                 sync.Mutex
	settled            S
	pending            []Action
	watermark          uint64
	lastServerActionID uint64
	history            []Action

	feed event.Feed[S]
}

// NewStore creates a Store.
func NewStore[S any](config StoreConfig[S]) *Store[S] {
	limit := config.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store[S]{
		reduce:       config.Reduce,
		decode:       config.DecodeSnapshot,
		historyLimit: limit,
		logger:       logger,
		settled:      config.Initial,
	}
}

// Fold applies pending, in order, on top of settled.
func Fold[S any](reduce Reducer[S], settled S, pending []Action) S {
	state := settled
	for _, action := range pending {
		state = reduce(state, action)
	}
	return state
}

// Dispatch applies an action and returns the published state.
//
// Client actions are appended to pending. Server actions advance
// settled (a sync replaces it) and remove the first pending entry with
// the same Key. A sync whose body cannot be decoded is rejected
// without changing the store.
func (s *Store[S]) Dispatch(action Action) (S, error) {
	if err := action.Validate(); err != nil {
		var zero S
		return zero, err
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	var err error
	switch action.Source {
	case Client:
		s.pending = append(s.pending, action)
	case Server:
		err = s.applyServerLocked(action)
	}
	published := Fold(s.reduce, s.settled, s.pending)
	s.mu.Unlock()

	if err != nil {
		var zero S
		return zero, err
	}
	s.feed.Publish(published)
	return published, nil
}

func (s *Store[S]) applyServerLocked(action Action) error {
	id := action.Meta.ServerActionID

	if action.Type == TypeSync {
		snapshot, err := s.decode(action.Body)
		if err != nil {
			return fmt.Errorf("decoding sync snapshot %d: %w", id, err)
		}
		s.settled = snapshot
		s.watermark = id
		s.logger.Debug("settled state replaced by sync", "server_action_id", id)
	} else if id == 0 || id > s.watermark {
		s.settled = s.reduce(s.settled, action)
	}

	if action.Meta.ClientID != "" {
		key := action.Key()
		for i, pending := range s.pending {
			if pending.Key() == key {
				s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
				break
			}
		}
	}

	if id > s.lastServerActionID {
		s.lastServerActionID = id
	}
	if s.historyLimit > 0 {
		s.history = append(s.history, action)
		if overflow := len(s.history) - s.historyLimit; overflow > 0 {
			s.history = append([]Action(nil), s.history[overflow:]...)
		}
	}
	return nil
}

// State returns fold(settled, pending), recomputed on every call.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Fold(s.reduce, s.settled, s.pending)
}

// Settled returns the state derived from server actions alone.
func (s *Store[S]) Settled() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// Pending returns a copy of the unconfirmed client actions in
// submission order.
func (s *Store[S]) Pending() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.pending...)
}

// History returns a copy of the most recent server actions, oldest
// first.
func (s *Store[S]) History() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.history...)
}

// LastServerActionID returns the highest serverActionId seen.
func (s *Store[S]) LastServerActionID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServerActionID
}

// Watermark returns the serverActionId of the last applied sync.
func (s *Store[S]) Watermark() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Subscribe registers handler for the published state after every
// successful dispatch.
func (s *Store[S]) Subscribe(handler func(S)) *event.Subscription {
	return s.feed.Subscribe(handler)
}
