// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler shared by the
// rendezvous binaries. Startup failures can happen before the
// structured logger exists, so they go to stderr directly.
package process
