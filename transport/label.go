// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"strings"
)

// LabelKind classifies a data channel label.
type LabelKind string

const (
	// ActionLabel channels carry optimistic client actions: unordered,
	// no retransmits.
	ActionLabel LabelKind = "action"

	// StateLabel channels carry confirmations and sync snapshots:
	// ordered and reliable.
	StateLabel LabelKind = "state"
)

// Label formats a channel label for clientID.
func Label(kind LabelKind, clientID string) string {
	return string(kind) + ":" + clientID
}

// ParseLabel splits a label into its kind and client id.
func ParseLabel(label string) (LabelKind, string, error) {
	prefix, clientID, found := strings.Cut(label, ":")
	if !found || clientID == "" {
		return "", "", fmt.Errorf("channel label %q is not <kind>:<clientId>", label)
	}
	switch kind := LabelKind(prefix); kind {
	case ActionLabel, StateLabel:
		return kind, clientID, nil
	default:
		return "", "", fmt.Errorf("channel label %q has unknown kind %q", label, prefix)
	}
}
