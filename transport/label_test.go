// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "testing"

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label    string
		kind     LabelKind
		clientID string
		wantErr  bool
	}{
		{label: "action:a1", kind: ActionLabel, clientID: "a1"},
		{label: "state:b2", kind: StateLabel, clientID: "b2"},
		{label: "state:with:colon", kind: StateLabel, clientID: "with:colon"},
		{label: "action:", wantErr: true},
		{label: "signal", wantErr: true},
		{label: "cursor:a1", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.label, func(t *testing.T) {
			kind, clientID, err := ParseLabel(test.label)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseLabel(%q) succeeded", test.label)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLabel(%q): %v", test.label, err)
			}
			if kind != test.kind || clientID != test.clientID {
				t.Errorf("ParseLabel(%q) = %s, %s", test.label, kind, clientID)
			}
			if Label(kind, clientID) != test.label {
				t.Errorf("Label round trip = %q", Label(kind, clientID))
			}
		})
	}
}

func TestChannelInit(t *testing.T) {
	action := ActionChannelInit()
	if action.Ordered == nil || *action.Ordered {
		t.Error("action channels must be unordered")
	}
	if action.MaxRetransmits == nil || *action.MaxRetransmits != 0 {
		t.Error("action channels must not retransmit")
	}
	state := StateChannelInit()
	if state.Ordered == nil || !*state.Ordered || state.MaxRetransmits != nil {
		t.Error("state channels must be ordered and reliable")
	}
}
