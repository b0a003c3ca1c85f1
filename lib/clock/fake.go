// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time moves only when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time

	// interval is non-zero for tickers, which are rescheduled after
	// each fire instead of being removed.
	interval time.Duration
	stopped  bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a one-shot waiter that fires once the clock has been
// advanced by at least d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.changed.Broadcast()
	return channel
}

// NewTicker registers a periodic waiter.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.waiters = append(c.waiters, waiter)
	c.changed.Broadcast()

	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls within the new time, in deadline order. A ticker
// whose interval fits several times into d fires once per interval,
// subject to the capacity-1 drop rule.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		waiter, fireAt := c.nextExpired(target)
		if waiter == nil {
			break
		}
		select {
		case waiter.channel <- fireAt:
		default:
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextExpired pops the earliest waiter due at or before target,
// rescheduling it if it is a ticker.
func (c *FakeClock) nextExpired(target time.Time) (*fakeWaiter, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	for i, waiter := range c.waiters {
		if waiter.stopped || waiter.deadline.After(target) {
			continue
		}
		if index < 0 || waiter.deadline.Before(c.waiters[index].deadline) {
			index = i
		}
	}
	if index < 0 {
		return nil, time.Time{}
	}

	waiter := c.waiters[index]
	fireAt := waiter.deadline
	c.current = fireAt
	if waiter.interval > 0 {
		waiter.deadline = waiter.deadline.Add(waiter.interval)
	} else {
		c.waiters = append(c.waiters[:index], c.waiters[index+1:]...)
	}
	return waiter, fireAt
}

// WaitForTimers blocks until at least n active waiters are registered.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of active waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped {
			count++
		}
	}
	return count
}
