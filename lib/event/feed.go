// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "sync"

// Feed fans a stream of values out to subscribed handlers. The zero
// value is ready to use. Feed is safe for concurrent use.
type Feed[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []feedHandler[T]
}

type feedHandler[T any] struct {
	id      uint64
	handler func(T)
}

// Subscribe registers handler and returns its subscription handle.
func (f *Feed[T]) Subscribe(handler func(T)) *Subscription {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, feedHandler[T]{id: id, handler: handler})
	f.mu.Unlock()

	return newSubscription(func() { f.remove(id) })
}

func (f *Feed[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, entry := range f.handlers {
		if entry.id == id {
			f.handlers = append(f.handlers[:i:i], f.handlers[i+1:]...)
			return
		}
	}
}

// Publish calls every current handler with value. Handlers run outside
// the feed's lock, so they may subscribe or unsubscribe; a handler
// removed during a Publish may still receive that one value.
func (f *Feed[T]) Publish(value T) {
	f.mu.Lock()
	handlers := f.handlers
	f.mu.Unlock()

	for _, entry := range handlers {
		entry.handler(value)
	}
}

// Len returns the number of subscribed handlers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// Subscription is the handle for one registered handler.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Close detaches the handler. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
