package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"brewduel/core"
)

// Hub fans domain events out to live consumers (WebSocket connections, demo
// dashboards). A subscription can narrow the stream to specific event types,
// or to a single drinker's account so a client only sees its own level-ups
// and unlocks.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch      chan core.Event
	types   map[core.EventType]struct{} // nil means all types
	account core.AccountID              // "" means all accounts
}

func (s subscriber) wants(ev core.Event) bool {
	if s.account != "" && ev.Account != s.account {
		return false
	}
	if s.types == nil {
		return true
	}
	_, ok := s.types[ev.Type]
	return ok
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe opens a stream. With no types it receives every event; otherwise
// only the listed types are delivered.
func (h *Hub) Subscribe(buffer int, types ...core.EventType) (int, <-chan core.Event) {
	return h.subscribe(buffer, "", types)
}

// SubscribeAccount opens a stream limited to events carrying the given
// account. Item-only events such as tier assignments carry no account and are
// not delivered on account-scoped streams.
func (h *Hub) SubscribeAccount(buffer int, account core.AccountID, types ...core.EventType) (int, <-chan core.Event) {
	return h.subscribe(buffer, account, types)
}

func (h *Hub) subscribe(buffer int, account core.AccountID, types []core.EventType) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	sub := subscriber{ch: make(chan core.Event, buffer), account: account}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]chan core.Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.wants(ev) {
			receivers = append(receivers, sub.ch)
		}
	}
	h.mu.RUnlock()
	for _, ch := range receivers {
		select {
		case ch <- ev:
		default: /* drop if full */
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
