// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured loggers used by the rendezvous
// binaries.
//
// [New] picks a log/slog handler for stderr: text on a terminal, JSON
// otherwise. [ParseLevel] maps the --log-level flag and config value to
// a slog level. Tests use [Discard].
package logging
