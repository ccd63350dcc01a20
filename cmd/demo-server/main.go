package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	mem "brewduel/adapters/memory"
	ws "brewduel/adapters/websocket"
	"brewduel/brew"
	"brewduel/core"
	"brewduel/engine"
	"brewduel/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := brew.New(
		brew.WithStorage(mem.New()),
		brew.WithRealtime(hub),
		brew.WithDispatchMode(engine.DispatchAsync),
	)

	http.Handle("/ws", ws.Handler(hub))

	// routes: POST /items/{id}?name=&style=&abv=&country=, GET /items/{id}
	http.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		parts := split(r.URL.Path, '/')
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		id := core.ItemID(parts[1])
		switch r.Method {
		case http.MethodPost:
			q := r.URL.Query()
			abv, _ := strconv.ParseFloat(q.Get("abv"), 64)
			item, err := svc.CreateItem(ctx, id, core.ItemAttributes{
				Name:    q.Get("name"),
				Style:   q.Get("style"),
				ABV:     abv,
				Country: q.Get("country"),
			})
			writeJSON(w, map[string]any{"item": item, "err": errString(err)})
		case http.MethodGet:
			item, err := svc.GetItem(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), 404)
				return
			}
			writeJSON(w, item)
		default:
			http.NotFound(w, r)
		}
	})

	// POST /tastings?account={id}&item={id}&photo=1
	http.HandleFunc("/tastings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		res, err := svc.RecordTasting(ctx, core.AccountID(q.Get("account")), core.ItemID(q.Get("item")), engine.TastingOpts{
			Photo: q.Get("photo") != "",
		})
		writeJSON(w, map[string]any{"result": res, "err": errString(err)})
	})

	// POST /duels?a={id}&b={id}&winner={id}&account={id}
	http.HandleFunc("/duels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		out, err := svc.ResolveDuel(ctx, core.AccountID(q.Get("account")),
			core.ItemID(q.Get("a")), core.ItemID(q.Get("b")), core.ItemID(q.Get("winner")))
		writeJSON(w, map[string]any{"outcome": out, "err": errString(err)})
	})

	// GET /accounts/{id}
	http.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		parts := split(r.URL.Path, '/')
		if r.Method != http.MethodGet || len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		profile, err := svc.GetProfile(ctx, core.AccountID(parts[1]))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, profile)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
