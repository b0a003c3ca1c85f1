// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for action
// timestamps (clientNow, serverNow), sync-request pacing, and the demo
// pointer ticker.
//
// Components hold a [Clock] field. Binaries pass [Real]; tests pass a
// [FakeClock] from [Fake] so that timestamps in issued actions are
// exact and tickers fire only when the test calls Advance.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	issuer := reconcile.NewIssuer("a1", c)
//	c.Advance(250 * time.Millisecond)
//
// Use [FakeClock.WaitForTimers] before Advance when another goroutine
// registers the ticker, so the test does not race the registration.
package clock
