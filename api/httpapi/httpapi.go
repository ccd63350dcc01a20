package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	wsadapter "brewduel/adapters/websocket"
	"brewduel/core"
	"brewduel/engine"
	"brewduel/leaderboard"
	"brewduel/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Leaderboard, if set, serves the ranking endpoint.
	Leaderboard leaderboard.Board
}

// NewMux builds an http.Handler exposing the ranking REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/items
//   - GET  {prefix}/items?q=name
//   - GET  {prefix}/items/{id}
//   - POST {prefix}/items/{id}/tier?tier=epic
//   - POST {prefix}/items/{id}/reclassify
//   - POST {prefix}/rebalance
//   - POST {prefix}/tastings
//   - POST {prefix}/duels
//   - GET  {prefix}/duels?limit=20
//   - GET  {prefix}/accounts/{id}
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/items"), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			createItem(w, r, svc)
		case http.MethodGet:
			listItems(w, r, svc)
		default:
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/items/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		parts := split(path, '/')
		if len(parts) < 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		id := core.ItemID(parts[1])
		switch {
		case r.Method == http.MethodGet && len(parts) == 2:
			item, err := svc.GetItem(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, item)
		case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "tier":
			tier, err := core.ParseTier(r.URL.Query().Get("tier"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_tier", err.Error(), nil)
				return
			}
			if err := svc.OverrideTier(r.Context(), id, tier); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, map[string]any{"item": id, "tier": tier})
		case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "reclassify":
			tier, err := svc.ReclassifyItem(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, map[string]any{"item": id, "tier": tier})
		default:
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/rebalance"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		sum, err := svc.RebalanceAll(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, sum)
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/tastings"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		var req struct {
			Account  core.AccountID `json:"account"`
			Item     core.ItemID    `json:"item"`
			Photo    bool           `json:"photo"`
			Location bool           `json:"location"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
			return
		}
		res, err := svc.RecordTasting(r.Context(), req.Account, req.Item, engine.TastingOpts{
			Photo:    req.Photo,
			Location: req.Location,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, res)
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/duels"), func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Account core.AccountID `json:"account,omitempty"`
				ItemA   core.ItemID    `json:"item_a"`
				ItemB   core.ItemID    `json:"item_b"`
				Winner  core.ItemID    `json:"winner"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
				return
			}
			out, err := svc.ResolveDuel(r.Context(), req.Account, req.ItemA, req.ItemB, req.Winner)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, out)
		case http.MethodGet:
			limit := 20
			if s := r.URL.Query().Get("limit"); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", nil)
					return
				}
				limit = n
			}
			duels, err := svc.RecentDuels(r.Context(), limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, duels)
		default:
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		}
	})

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/accounts/"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		parts := split(path, '/')
		if len(parts) != 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		profile, err := svc.GetProfile(r.Context(), core.AccountID(parts[1]))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, profile)
	})

	if opts.Leaderboard != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
				return
			}
			n := 10
			if s := r.URL.Query().Get("n"); s != "" {
				v, err := strconv.Atoi(s)
				if err != nil || v <= 0 {
					writeError(w, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
					return
				}
				n = v
			}
			writeJSON(w, opts.Leaderboard.TopN(n))
		})
	}

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

func createItem(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	var req struct {
		ID         core.ItemID         `json:"id"`
		Attributes core.ItemAttributes `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body", nil)
		return
	}
	item, err := svc.CreateItem(r.Context(), req.ID, req.Attributes)
	if err != nil {
		if errors.Is(err, engine.ErrItemExists) {
			writeError(w, http.StatusConflict, "item_exists", err.Error(), nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, item)
}

func listItems(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	items, err := svc.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		names := make([]string, len(items))
		for i, item := range items {
			names[i] = item.Attributes.Name
		}
		matches := fuzzy.Find(q, names)
		ranked := make([]core.RatedItem, 0, len(matches))
		for _, m := range matches {
			ranked = append(ranked, items[m.Index])
		}
		items = ranked
	}
	writeJSON(w, items)
}

// Helpers

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	ctx := r.Context()

	// A lightweight storage probe that touches no real data.
	_, err := svc.GetProfile(ctx, "healthcheck_probe")

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, status)
}

// writeServiceError maps engine errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var nf *engine.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrSelfDuel),
		errors.Is(err, engine.ErrUnknownWinner),
		errors.Is(err, engine.ErrLocationRequiresPhoto):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case strings.Contains(err.Error(), "invalid") || strings.Contains(err.Error(), "empty"):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	// trim leading '/'
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
