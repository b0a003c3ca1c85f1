// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the parts of the time package that rendezvous
// components depend on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. C has capacity 1; ticks are
// dropped when the reader falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// UnixMilli returns the clock's current time in milliseconds since the
// Unix epoch, the unit carried by clientNow and serverNow on the wire.
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}
