// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the rendezvous relay and peer
// binaries.
//
// Configuration comes from a single file named by the
// RENDEZVOUS_CONFIG environment variable ([Load]) or a --config flag
// ([LoadFile]). There is no discovery and no fallback search path.
// Files ending in .json or .jsonc are accepted as well as YAML:
// comments and trailing commas are stripped with tidwall/jsonc and the
// result, being valid YAML, goes through the same decoder.
//
// A file may carry development and production sections that override
// base values when [Config].Environment matches. Production without an
// explicit section disables loopback ICE candidates and forces JSON
// logs.
//
// ${VAR} and ${VAR:-default} patterns are expanded in the listen
// address, the signal URL, and ICE credentials after loading.
package config
