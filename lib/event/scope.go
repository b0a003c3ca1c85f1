// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "sync"

// Scope owns the subscriptions of one session.
type Scope struct {
	mu            sync.Mutex
	subscriptions []*Subscription
	closed        bool
	done          chan struct{}
}

// NewScope returns an open scope.
func NewScope() *Scope {
	return &Scope{done: make(chan struct{})}
}

// Add attaches subscriptions to the scope. Subscriptions added after
// Close are closed immediately.
func (s *Scope) Add(subscriptions ...*Subscription) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, subscription := range subscriptions {
			subscription.Close()
		}
		return
	}
	s.subscriptions = append(s.subscriptions, subscriptions...)
	s.mu.Unlock()
}

// Close releases every subscription and closes Done. Safe to call
// more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subscriptions := s.subscriptions
	s.subscriptions = nil
	close(s.done)
	s.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Close()
	}
}

// Done is closed when the scope is closed.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}
