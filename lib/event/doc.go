// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides typed notification feeds with explicit
// subscription handles.
//
// A [Feed] delivers each published value to its handlers
// synchronously, in subscription order, on the publisher's goroutine.
// Subscribe returns a [Subscription]; closing it detaches the handler.
// A [Scope] groups the subscriptions belonging to one session so that
// teardown releases every one of them in a single Close, and exposes
// Done for goroutines that must stop with the session.
//
//	scope := event.NewScope()
//	defer scope.Close()
//	scope.Add(channel.Subscribe(func(e transport.ChannelEvent) { ... }))
package event
