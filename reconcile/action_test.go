// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestActionMarshalClient(t *testing.T) {
	action := Action{
		Source: Client,
		Type:   "pointermove",
		Meta:   Meta{ClientID: "a1", ClientNow: 1700, ClientActionID: 3},
		Body:   json.RawMessage(`{"pointerId":"p1","x":10}`),
	}
	data, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"source":"client","type":"pointermove","payload":{"clientActionId":3,"clientId":"a1","clientNow":1700,"pointerId":"p1","x":10}}`
	if string(data) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", data, want)
	}
}

func TestActionMarshalServer(t *testing.T) {
	action := Confirm(Action{
		Source: Client,
		Type:   "open",
		Meta:   Meta{ClientID: "a1", ClientNow: 5, ClientActionID: 1},
	}, 42, 9000)

	data, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"source":"server","type":"open","payload":{"clientActionId":1,"clientId":"a1","clientNow":5,"serverActionId":42,"serverNow":9000}}`
	if string(data) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", data, want)
	}
}

func TestActionMarshalSync(t *testing.T) {
	sync, err := NewSync(map[string]any{"clients": map[string]any{}}, 7, 100)
	if err != nil {
		t.Fatalf("NewSync: %v", err)
	}
	data, err := json.Marshal(sync)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"source":"server","type":"sync","payload":{"clients":{},"serverActionId":7,"serverNow":100}}`
	if string(data) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", data, want)
	}
	if !sync.IsSync() {
		t.Error("IsSync() = false")
	}
}

func TestActionMetaOverridesBody(t *testing.T) {
	action := Action{
		Source: Client,
		Type:   "open",
		Meta:   Meta{ClientID: "real", ClientActionID: 1},
		Body:   json.RawMessage(`{"clientId":"spoofed","serverActionId":99}`),
	}
	data, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	parsed, err := ParseAction(data)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if parsed.Meta.ClientID != "real" || parsed.Meta.ServerActionID != 0 {
		t.Errorf("meta = %+v", parsed.Meta)
	}
}

func TestActionMarshalRejectsNonObjectBody(t *testing.T) {
	action := Action{Source: Client, Type: "open", Body: json.RawMessage(`[1]`)}
	if _, err := json.Marshal(action); err == nil {
		t.Fatal("expected error for array body")
	}
}

func TestParseAction(t *testing.T) {
	data := []byte(`{"source":"server","type":"pointerstart","payload":{"pointerId":1,"x":10.5,"clientId":"a1","clientNow":3,"clientActionId":2,"serverNow":4,"serverActionId":5}}`)
	action, err := ParseAction(data)
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	want := Meta{ClientID: "a1", ClientNow: 3, ClientActionID: 2, ServerNow: 4, ServerActionID: 5}
	if action.Meta != want {
		t.Errorf("meta = %+v, want %+v", action.Meta, want)
	}
	if action.Key() != (Key{ClientID: "a1", ClientActionID: 2, Type: "pointerstart"}) {
		t.Errorf("key = %+v", action.Key())
	}

	var body struct {
		PointerID int     `json:"pointerId"`
		X         float64 `json:"x"`
		ClientID  string  `json:"clientId"`
	}
	if err := action.Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.PointerID != 1 || body.X != 10.5 {
		t.Errorf("body = %+v", body)
	}
	if body.ClientID != "" {
		t.Errorf("meta key leaked into body: %q", body.ClientID)
	}
}

func TestParseActionErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		sentinel error
	}{
		{name: "unknown source", data: `{"source":"peer","type":"open","payload":{}}`, sentinel: ErrUnknownSource},
		{name: "missing source", data: `{"type":"open","payload":{}}`, sentinel: ErrUnknownSource},
		{name: "empty type", data: `{"source":"client","type":"","payload":{}}`},
		{name: "bad meta", data: `{"source":"client","type":"open","payload":{"clientActionId":"one"}}`},
		{name: "malformed", data: `{"source":`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseAction([]byte(test.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if test.sentinel != nil && !errors.Is(err, test.sentinel) {
				t.Errorf("error = %v, want %v", err, test.sentinel)
			}
		})
	}
}

func TestActionDecodeEmptyBody(t *testing.T) {
	var body struct {
		X int `json:"x"`
	}
	if err := (Action{Source: Client, Type: "open"}).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}
