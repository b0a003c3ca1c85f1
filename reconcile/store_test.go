// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

// journal is a toy domain: every applied action appends "type#clientActionId".
type journal []string

func reduceJournal(state journal, action Action) journal {
	if action.Type == "noop" {
		return state
	}
	entry := fmt.Sprintf("%s#%d", action.Type, action.Meta.ClientActionID)
	// Full slice expression forces a copy, keeping the reducer pure.
	return append(state[:len(state):len(state)], entry)
}

func decodeJournal(body json.RawMessage) (journal, error) {
	var snapshot struct {
		Entries journal `json:"entries"`
	}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, err
	}
	return snapshot.Entries, nil
}

func newJournalStore(historyLimit int) *Store[journal] {
	return NewStore(StoreConfig[journal]{
		Reduce:         reduceJournal,
		DecodeSnapshot: decodeJournal,
		HistoryLimit:   historyLimit,
	})
}

func clientAction(clientID string, id uint64, actionType string) Action {
	return Action{Source: Client, Type: actionType, Meta: Meta{ClientID: clientID, ClientActionID: id}}
}

func dispatch(t *testing.T, store *Store[journal], action Action) journal {
	t.Helper()
	state, err := store.Dispatch(action)
	if err != nil {
		t.Fatalf("Dispatch(%s #%d): %v", action.Type, action.Meta.ClientActionID, err)
	}
	return state
}

func TestClientActionIsOptimistic(t *testing.T) {
	store := newJournalStore(0)

	published := dispatch(t, store, clientAction("a1", 1, "open"))

	if !slices.Equal(published, journal{"open#1"}) {
		t.Errorf("published = %v", published)
	}
	if len(store.Settled()) != 0 {
		t.Errorf("settled = %v, must not reflect unconfirmed actions", store.Settled())
	}
	if len(store.Pending()) != 1 {
		t.Errorf("pending = %d, want 1", len(store.Pending()))
	}
}

func TestConfirmationRemovesExactlyOne(t *testing.T) {
	store := newJournalStore(0)
	dispatch(t, store, clientAction("a1", 1, "pointerstart"))
	dispatch(t, store, clientAction("a1", 2, "pointermove"))
	dispatch(t, store, clientAction("a1", 3, "pointermove"))

	published := dispatch(t, store, Confirm(clientAction("a1", 2, "pointermove"), 1, 0))

	pending := store.Pending()
	if len(pending) != 2 || pending[0].Meta.ClientActionID != 1 || pending[1].Meta.ClientActionID != 3 {
		t.Fatalf("pending = %+v, want ids 1 and 3", pending)
	}
	if !slices.Equal(store.Settled(), journal{"pointermove#2"}) {
		t.Errorf("settled = %v", store.Settled())
	}
	// Settled first, then remaining pending in submission order.
	if !slices.Equal(published, journal{"pointermove#2", "pointerstart#1", "pointermove#3"}) {
		t.Errorf("published = %v", published)
	}
}

func TestUnmatchedServerActionsRemoveNothing(t *testing.T) {
	tests := []struct {
		name   string
		server Action
	}{
		{name: "different type", server: Confirm(clientAction("a1", 1, "pointermove"), 1, 0)},
		{name: "different counter", server: Confirm(clientAction("a1", 9, "pointerstart"), 1, 0)},
		{name: "same counter other client", server: Confirm(clientAction("b2", 1, "pointerstart"), 1, 0)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newJournalStore(0)
			dispatch(t, store, clientAction("a1", 1, "pointerstart"))
			dispatch(t, store, test.server)
			if len(store.Pending()) != 1 {
				t.Errorf("pending = %d, want 1", len(store.Pending()))
			}
		})
	}
}

func TestPublishedIsFreshFold(t *testing.T) {
	store := newJournalStore(0)
	sequence := []Action{
		clientAction("a1", 1, "open"),
		clientAction("a1", 2, "pointerstart"),
		Confirm(clientAction("b2", 1, "open"), 1, 0),
		Confirm(clientAction("a1", 1, "open"), 2, 0),
		clientAction("a1", 3, "pointermove"),
		Confirm(clientAction("a1", 3, "pointermove"), 3, 0),
		clientAction("a1", 4, "noop"),
		Confirm(clientAction("a1", 2, "pointerstart"), 4, 0),
	}
	for i, action := range sequence {
		published := dispatch(t, store, action)
		want := Fold(reduceJournal, store.Settled(), store.Pending())
		if !slices.Equal(published, want) {
			t.Fatalf("step %d: published %v != fold %v", i, published, want)
		}
		if !slices.Equal(store.State(), want) {
			t.Fatalf("step %d: State() %v != fold %v", i, store.State(), want)
		}
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	store := newJournalStore(0)
	dispatch(t, store, Confirm(clientAction("b2", 1, "open"), 1, 0))
	dispatch(t, store, clientAction("a1", 1, "open"))
	dispatch(t, store, clientAction("a1", 2, "pointerstart"))

	settled := store.Settled()
	pending := store.Pending()
	first := Fold(reduceJournal, settled, pending)
	second := Fold(reduceJournal, settled, pending)
	if !slices.Equal(first, second) {
		t.Fatalf("replay diverged: %v vs %v", first, second)
	}
	if !slices.Equal(store.Settled(), journal{"open#1"}) {
		t.Errorf("fold mutated settled: %v", store.Settled())
	}
}

func TestSyncReplacesSettled(t *testing.T) {
	store := newJournalStore(0)
	dispatch(t, store, Confirm(clientAction("a1", 1, "open"), 1, 0))
	dispatch(t, store, clientAction("a1", 2, "pointerstart"))

	sync, err := NewSync(map[string]journal{"entries": {"open#1", "open#7"}}, 5, 0)
	if err != nil {
		t.Fatalf("NewSync: %v", err)
	}
	published := dispatch(t, store, sync)

	if !slices.Equal(store.Settled(), journal{"open#1", "open#7"}) {
		t.Errorf("settled = %v, want snapshot", store.Settled())
	}
	if !slices.Equal(published, journal{"open#1", "open#7", "pointerstart#2"}) {
		t.Errorf("published = %v", published)
	}
	if store.Watermark() != 5 || store.LastServerActionID() != 5 {
		t.Errorf("watermark = %d, last = %d", store.Watermark(), store.LastServerActionID())
	}
}

func TestActionsAtOrBelowWatermarkNotReapplied(t *testing.T) {
	store := newJournalStore(0)
	dispatch(t, store, clientAction("a1", 2, "pointerstart"))

	sync, _ := NewSync(map[string]journal{"entries": {"pointerstart#2"}}, 5, 0)
	dispatch(t, store, sync)

	// The confirmation for an action already in the snapshot arrives late.
	dispatch(t, store, Confirm(clientAction("a1", 2, "pointerstart"), 4, 0))
	if !slices.Equal(store.Settled(), journal{"pointerstart#2"}) {
		t.Errorf("settled = %v, action below watermark was applied twice", store.Settled())
	}
	if len(store.Pending()) != 0 {
		t.Errorf("pending = %d, late confirmation should still match", len(store.Pending()))
	}

	dispatch(t, store, Confirm(clientAction("b2", 1, "open"), 6, 0))
	if !slices.Equal(store.Settled(), journal{"pointerstart#2", "open#1"}) {
		t.Errorf("settled = %v, action above watermark must apply", store.Settled())
	}
	if store.LastServerActionID() != 6 {
		t.Errorf("LastServerActionID() = %d, want 6", store.LastServerActionID())
	}
}

func TestMalformedSyncRejected(t *testing.T) {
	store := newJournalStore(0)
	dispatch(t, store, Confirm(clientAction("a1", 1, "open"), 1, 0))

	_, err := store.Dispatch(Action{Source: Server, Type: TypeSync, Meta: Meta{ServerActionID: 2}, Body: json.RawMessage(`{"entries":"nope"}`)})
	if err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
	if !slices.Equal(store.Settled(), journal{"open#1"}) || store.Watermark() != 0 {
		t.Errorf("store changed on rejected sync: settled=%v watermark=%d", store.Settled(), store.Watermark())
	}
}

func TestDispatchUnknownSource(t *testing.T) {
	store := newJournalStore(0)
	_, err := store.Dispatch(Action{Source: "relay", Type: "open"})
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("Dispatch() = %v, want ErrUnknownSource", err)
	}
}

func TestHistoryBounded(t *testing.T) {
	store := newJournalStore(3)
	dispatch(t, store, clientAction("a1", 1, "open"))
	for id := uint64(1); id <= 5; id++ {
		dispatch(t, store, Confirm(clientAction("b2", id, "pointermove"), id, 0))
	}

	history := store.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, action := range history {
		if want := uint64(i + 3); action.Meta.ServerActionID != want {
			t.Errorf("history[%d] = %d, want %d", i, action.Meta.ServerActionID, want)
		}
	}

	disabled := newJournalStore(-1)
	dispatch(t, disabled, Confirm(clientAction("b2", 1, "open"), 1, 0))
	if len(disabled.History()) != 0 {
		t.Errorf("history kept with limit -1")
	}
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	store := newJournalStore(0)

	var (
		mu       sync.Mutex
		received []int
	)
	subscription := store.Subscribe(func(state journal) {
		mu.Lock()
		received = append(received, len(state))
		mu.Unlock()
	})

	dispatch(t, store, clientAction("a1", 1, "open"))
	dispatch(t, store, clientAction("a1", 2, "pointerstart"))
	subscription.Close()
	dispatch(t, store, clientAction("a1", 3, "pointermove"))

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(received, []int{1, 2}) {
		t.Errorf("received = %v, want [1 2]", received)
	}
}

func TestConcurrentDispatch(t *testing.T) {
	store := newJournalStore(0)

	var wg sync.WaitGroup
	for worker := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clientID := fmt.Sprintf("c%d", worker)
			for id := uint64(1); id <= 25; id++ {
				if _, err := store.Dispatch(clientAction(clientID, id, "pointermove")); err != nil {
					t.Errorf("Dispatch: %v", err)
				}
				if _, err := store.Dispatch(Confirm(clientAction(clientID, id, "pointermove"), 0, 0)); err != nil {
					t.Errorf("Dispatch confirm: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if len(store.Pending()) != 0 {
		t.Errorf("pending = %d, want 0", len(store.Pending()))
	}
	if len(store.Settled()) != 100 {
		t.Errorf("settled entries = %d, want 100", len(store.Settled()))
	}
}
