// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/event"
	"github.com/bureau-foundation/rendezvous/pointer"
	"github.com/bureau-foundation/rendezvous/reconcile"
	"github.com/bureau-foundation/rendezvous/transport"
)

// HubConfig configures a Hub.
type HubConfig struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// HistoryLimit bounds the authoritative store's history.
	HistoryLimit int

	// RateLimit throttles inbound actions per client. PerSecond 0
	// disables it. Actions over the limit are held, in order, until the
	// client's bucket refills.
	RateLimit config.RateConfig

	// DeferLimit caps the actions held for one client. A client that
	// exceeds it is disconnected with an error departure. Zero means
	// DefaultDeferLimit.
	DeferLimit int
}

// DefaultDeferLimit is the per-client cap on rate-limited actions
// awaiting a token.
const DefaultDeferLimit = 256

// ErrRateLimited is the departure cause for a client whose held
// actions exceed the defer limit.
var ErrRateLimited = errors.New("action rate limit exceeded")

// Hub relays actions between attached clients.
type Hub struct {
	clock   clock.Clock
	logger  *slog.Logger
	store   *reconcile.Store[pointer.State]
	limiter *limiter.TokenBucket

	// retryInterval is one token's refill time. The limiter refills on
	// wall time, so deferred retries use wall-time timers.
	retryInterval time.Duration
	deferLimit    int

	mu             sync.Mutex
	channels       map[string]*attachment
	deferred       map[string]*deferredActions
	serverActionID uint64
	closed         bool
}

// deferredActions holds one client's rate-limited actions in arrival
// order.
type deferredActions struct {
	actions []reconcile.Action
	timer   *time.Timer
}

type attachment struct {
	channel      transport.Channel
	kind         transport.LabelKind
	clientID     string
	subscription *event.Subscription
}

// NewHub creates a hub with an empty authoritative state.
func NewHub(config HubConfig) (*Hub, error) {
	hub := &Hub{
		clock:    config.Clock,
		logger:   config.Logger,
		channels: make(map[string]*attachment),
		deferred: make(map[string]*deferredActions),
		store: reconcile.NewStore(reconcile.StoreConfig[pointer.State]{
			Initial:        pointer.NewState(),
			Reduce:         pointer.Reduce,
			DecodeSnapshot: pointer.DecodeSnapshot,
			HistoryLimit:   config.HistoryLimit,
			Logger:         config.Logger,
		}),
	}

	if config.RateLimit.PerSecond > 0 {
		bucket, err := limiter.NewTokenBucket(
			limiter.Config{
				Rate:     int64(config.RateLimit.PerSecond),
				Duration: time.Second,
				Burst:    int64(config.RateLimit.Burst),
			},
			store.NewMemoryStore(time.Minute),
		)
		if err != nil {
			return nil, fmt.Errorf("creating action rate limiter: %w", err)
		}
		hub.limiter = bucket
		hub.retryInterval = time.Second / time.Duration(config.RateLimit.PerSecond)
		hub.deferLimit = config.DeferLimit
		if hub.deferLimit <= 0 {
			hub.deferLimit = DefaultDeferLimit
		}
	}
	return hub, nil
}

// Attach registers a channel labelled action:<id> or state:<id>. A
// state channel that is already open receives a sync immediately.
func (h *Hub) Attach(channel transport.Channel) error {
	label := channel.Label()
	kind, clientID, err := transport.ParseLabel(label)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return transport.ErrClosed
	}
	if _, exists := h.channels[label]; exists {
		return fmt.Errorf("channel %s is already attached", label)
	}

	entry := &attachment{channel: channel, kind: kind, clientID: clientID}
	h.channels[label] = entry
	entry.subscription = channel.Subscribe(func(ev transport.ChannelEvent) {
		h.handle(entry, ev)
	})
	h.logger.Info("channel attached", "label", label, "client", clientID)

	if kind == transport.StateLabel && channel.IsOpen() {
		h.sendSyncLocked(entry)
	}
	return nil
}

func (h *Hub) handle(entry *attachment, ev transport.ChannelEvent) {
	switch ev.Kind {
	case transport.EventOpen:
		if entry.kind == transport.StateLabel {
			h.syncIfAttached(entry)
		}
	case transport.EventMessage:
		switch entry.kind {
		case transport.ActionLabel:
			h.receiveAction(entry, ev.Data)
		case transport.StateLabel:
			h.syncIfAttached(entry)
		}
	case transport.EventClose:
		h.depart(entry.clientID, nil)
	case transport.EventError:
		h.depart(entry.clientID, ev.Err)
	}
}

func (h *Hub) receiveAction(entry *attachment, data []byte) {
	action, err := reconcile.ParseAction(data)
	if err != nil {
		h.logger.Warn("dropping malformed action", "label", entry.channel.Label(), "error", err)
		return
	}
	if action.Source != reconcile.Client || action.Meta.ClientID != entry.clientID {
		h.logger.Warn("dropping action with foreign origin",
			"label", entry.channel.Label(),
			"source", action.Source,
			"client", action.Meta.ClientID,
		)
		return
	}
	if action.Type == reconcile.TypeSync {
		h.logger.Warn("dropping client sync action", "client", entry.clientID)
		return
	}

	h.mu.Lock()
	if !h.attachedLocked(entry) {
		h.mu.Unlock()
		return
	}
	if h.limiter == nil {
		h.issueLocked(action, entry.clientID)
		h.mu.Unlock()
		return
	}

	// Once a client has held actions, later ones queue behind them so
	// confirmations stay in dispatch order.
	backlog := h.deferred[entry.clientID]
	if backlog == nil && h.limiter.Allow(entry.clientID) {
		h.issueLocked(action, entry.clientID)
		h.mu.Unlock()
		return
	}
	if backlog == nil {
		backlog = &deferredActions{}
		h.deferred[entry.clientID] = backlog
		h.scheduleRetryLocked(entry.clientID, backlog)
	}
	if len(backlog.actions) >= h.deferLimit {
		h.mu.Unlock()
		h.logger.Warn("client exceeded action rate limit", "client", entry.clientID, "held", h.deferLimit)
		h.depart(entry.clientID, ErrRateLimited)
		return
	}
	backlog.actions = append(backlog.actions, action)
	h.logger.Debug("action deferred by rate limit",
		"client", entry.clientID,
		"type", action.Type,
		"held", len(backlog.actions),
	)
	h.mu.Unlock()
}

func (h *Hub) scheduleRetryLocked(clientID string, backlog *deferredActions) {
	backlog.timer = time.AfterFunc(h.retryInterval, func() {
		h.releaseDeferred(clientID, backlog)
	})
}

// releaseDeferred issues as many of the client's held actions as the
// bucket allows and reschedules itself for the rest.
func (h *Hub) releaseDeferred(clientID string, backlog *deferredActions) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.deferred[clientID] != backlog {
		return
	}
	for len(backlog.actions) > 0 && h.limiter.Allow(clientID) {
		action := backlog.actions[0]
		backlog.actions = backlog.actions[1:]
		h.issueLocked(action, clientID)
	}
	if len(backlog.actions) == 0 {
		delete(h.deferred, clientID)
		return
	}
	h.scheduleRetryLocked(clientID, backlog)
}

// attachedLocked reports whether entry is still registered. Events can
// trail a departure by one delivery.
func (h *Hub) attachedLocked(entry *attachment) bool {
	return h.channels[entry.channel.Label()] == entry
}

// issueLocked stamps action with the next serverActionId, applies it,
// and fans it out. origin receives it on its state channel; every other
// client on its action channel.
func (h *Hub) issueLocked(action reconcile.Action, origin string) {
	h.serverActionID++
	server := reconcile.Confirm(action, h.serverActionID, clock.UnixMilli(h.clock))

	if _, err := h.store.Dispatch(server); err != nil {
		h.logger.Error("applying server action failed",
			"server_action_id", server.Meta.ServerActionID,
			"error", err,
		)
		return
	}
	data, err := json.Marshal(server)
	if err != nil {
		h.logger.Error("encoding server action failed", "error", err)
		return
	}

	for label, entry := range h.channels {
		fromOrigin := entry.clientID == origin
		if (entry.kind == transport.ActionLabel && !fromOrigin) ||
			(entry.kind == transport.StateLabel && fromOrigin) {
			if err := entry.channel.Send(data); err != nil && !errors.Is(err, transport.ErrNotOpen) {
				h.logger.Debug("fan-out send failed", "label", label, "error", err)
			}
		}
	}
}

func (h *Hub) syncIfAttached(entry *attachment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attachedLocked(entry) {
		h.sendSyncLocked(entry)
	}
}

func (h *Hub) sendSyncLocked(entry *attachment) {
	sync, err := reconcile.NewSync(h.store.State(), h.serverActionID, clock.UnixMilli(h.clock))
	if err != nil {
		h.logger.Error("building sync failed", "error", err)
		return
	}
	data, err := json.Marshal(sync)
	if err != nil {
		h.logger.Error("encoding sync failed", "error", err)
		return
	}
	if err := entry.channel.Send(data); err != nil {
		h.logger.Warn("sending sync failed", "label", entry.channel.Label(), "error", err)
		return
	}
	h.logger.Debug("sync sent", "label", entry.channel.Label(), "server_action_id", h.serverActionID)
}

// depart removes every channel of clientID, announces a close (or an
// error when cause is set) to the remaining clients, and closes the
// client's surviving channels.
func (h *Hub) depart(clientID string, cause error) {
	h.mu.Lock()
	var survivors []transport.Channel
	for label, entry := range h.channels {
		if entry.clientID != clientID {
			continue
		}
		entry.subscription.Close()
		delete(h.channels, label)
		survivors = append(survivors, entry.channel)
	}
	h.dropDeferredLocked(clientID)
	if len(survivors) == 0 || h.closed {
		h.mu.Unlock()
		return
	}

	actionType := pointer.TypeClose
	if cause != nil {
		actionType = pointer.TypeError
	}
	h.logger.Info("client departed", "client", clientID, "type", actionType, "error", cause)
	h.issueLocked(reconcile.Action{
		Source: reconcile.Client,
		Type:   actionType,
		Meta:   reconcile.Meta{ClientID: clientID},
	}, clientID)
	h.mu.Unlock()

	for _, channel := range survivors {
		channel.Close()
	}
}

func (h *Hub) dropDeferredLocked(clientID string) {
	backlog, ok := h.deferred[clientID]
	if !ok {
		return
	}
	if backlog.timer != nil {
		backlog.timer.Stop()
	}
	delete(h.deferred, clientID)
}

// Snapshot returns the authoritative state and the last issued
// serverActionId.
func (h *Hub) Snapshot() (pointer.State, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.State(), h.serverActionID
}

// History returns the most recent server actions.
func (h *Hub) History() []reconcile.Action {
	return h.store.History()
}

// Labels returns the attached channel labels, sorted.
func (h *Hub) Labels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	labels := make([]string, 0, len(h.channels))
	for label := range h.channels {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Close detaches and closes every channel. Later attaches fail.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	channels := make([]transport.Channel, 0, len(h.channels))
	for label, entry := range h.channels {
		entry.subscription.Close()
		delete(h.channels, label)
		channels = append(channels, entry.channel)
	}
	for clientID := range h.deferred {
		h.dropDeferredLocked(clientID)
	}
	h.mu.Unlock()

	for _, channel := range channels {
		channel.Close()
	}
}
