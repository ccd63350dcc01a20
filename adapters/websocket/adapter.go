package websocket

import (
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"brewduel/core"
	"brewduel/realtime"
)

// Handler returns an http.Handler that upgrades to WebSocket and streams
// events from the hub. Clients narrow the stream with query parameters:
// `?types=duel_resolved,level_up` limits event types, `?account=alice`
// limits to one drinker's events.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := parseTypes(r.URL.Query().Get("types"))
		var account core.AccountID
		if raw := r.URL.Query().Get("account"); raw != "" {
			norm, err := core.NormalizeAccountID(core.AccountID(raw))
			if err != nil {
				http.Error(w, "invalid account", http.StatusBadRequest)
				return
			}
			account = norm
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var (
			id int
			ch <-chan core.Event
		)
		if account != "" {
			id, ch = hub.SubscribeAccount(256, account, types...)
		} else {
			id, ch = hub.Subscribe(256, types...)
		}
		defer hub.Unsubscribe(id)

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		for ev := range ch {
			if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
				return
			}
		}
	})
}

func parseTypes(raw string) []core.EventType {
	if raw == "" {
		return nil
	}
	var out []core.EventType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, core.EventType(part))
		}
	}
	return out
}
