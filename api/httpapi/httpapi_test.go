package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mem "brewduel/adapters/memory"
	"brewduel/engine"
	"brewduel/leaderboard"
)

func newTestService() (*engine.Service, leaderboard.Board) {
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	board := leaderboard.NewSkipList()
	return engine.NewService(storage, bus, engine.WithLeaderboard(board)), board
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createTestItem(t *testing.T, handler http.Handler, id, name, style string) {
	t.Helper()
	body := `{"id":"` + id + `","attributes":{"name":"` + name + `","brewery":"Abbaye","style":"` + style + `","abv":8.5,"country":"Belgium"}}`
	rec := postJSON(handler, "/api/items", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item %s: expected 201, got %d: %s", id, rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetItem(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "westmalle", "Westmalle Tripel", "tripel")

	req := httptest.NewRequest(http.MethodGet, "/api/items/westmalle", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var item map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &item)
	if item["rating"] != float64(1500) {
		t.Fatalf("expected rating 1500, got %v", item["rating"])
	}

	// duplicate creation conflicts
	rec2 := postJSON(handler, "/api/items", `{"id":"westmalle","attributes":{"name":"Westmalle Tripel"}}`)
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec2.Code)
	}
}

func TestGetItemNotFound(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/items/ghost", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestItemSearch(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "westmalle", "Westmalle Tripel", "tripel")
	createTestItem(t, handler, "chimay-blue", "Chimay Blue", "dubbel")

	req := httptest.NewRequest(http.MethodGet, "/api/items?q=chimay", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0]["id"] != "chimay-blue" {
		t.Fatalf("expected only chimay-blue, got %v", items)
	}
}

func TestRecordTasting(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "westmalle", "Westmalle Tripel", "tripel")

	rec := postJSON(handler, "/api/tastings", `{"account":"alice","item":"westmalle","photo":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res["first"] != true {
		t.Fatalf("expected first tasting, got %v", res)
	}
	if res["xp"] == float64(0) {
		t.Fatalf("expected a grant, got %v", res["xp"])
	}

	// location without photo is rejected
	rec2 := postJSON(handler, "/api/tastings", `{"account":"alice","item":"westmalle","location":true}`)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec2.Code)
	}
}

func TestResolveDuelAndLeaderboard(t *testing.T) {
	svc, board := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api", Leaderboard: board})

	createTestItem(t, handler, "a", "Beer A", "tripel")
	createTestItem(t, handler, "b", "Beer B", "tripel")

	rec := postJSON(handler, "/api/duels", `{"account":"alice","item_a":"a","item_b":"b","winner":"a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["delta_a"] != float64(16) {
		t.Fatalf("expected delta_a 16, got %v", out["delta_a"])
	}

	// winner leads the board
	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?n=2", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	var entries []map[string]any
	_ = json.Unmarshal(rec2.Body.Bytes(), &entries)
	if len(entries) != 2 || entries[0]["item"] != "a" {
		t.Fatalf("expected a on top, got %v", entries)
	}

	// recent duels
	req3 := httptest.NewRequest(http.MethodGet, "/api/duels?limit=5", nil)
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req3)
	var duels []map[string]any
	_ = json.Unmarshal(rec3.Body.Bytes(), &duels)
	if len(duels) != 1 {
		t.Fatalf("expected one duel, got %d", len(duels))
	}
}

func TestDuelValidation(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "a", "Beer A", "tripel")

	rec := postJSON(handler, "/api/duels", `{"item_a":"a","item_b":"a","winner":"a"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self duel: expected 400, got %d", rec.Code)
	}

	rec2 := postJSON(handler, "/api/duels", `{"item_a":"a","item_b":"ghost","winner":"a"}`)
	if rec2.Code != http.StatusNotFound {
		t.Fatalf("missing item: expected 404, got %d", rec2.Code)
	}
}

func TestProfile(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "westmalle", "Westmalle Tripel", "tripel")
	postJSON(handler, "/api/tastings", `{"account":"alice","item":"westmalle"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var profile map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &profile)
	stats := profile["stats"].(map[string]any)
	if stats["items_tasted"] != float64(1) {
		t.Fatalf("expected one item tasted, got %v", stats["items_tasted"])
	}
}

func TestTierOverrideAndRebalance(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{PathPrefix: "/api"})

	createTestItem(t, handler, "westmalle", "Westmalle Tripel", "tripel")

	rec := postJSON(handler, "/api/items/westmalle/tier?tier=legendary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec2 := postJSON(handler, "/api/items/westmalle/tier?tier=mythic", "")
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad tier, got %d", rec2.Code)
	}

	rec3 := postJSON(handler, "/api/rebalance", "")
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec3.Code)
	}
	var sum map[string]any
	_ = json.Unmarshal(rec3.Body.Bytes(), &sum)
	if sum["skipped"] != float64(1) {
		t.Fatalf("expected the locked item skipped, got %v", sum)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/accounts/alice", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	svc, _ := newTestService()
	handler := NewMux(svc, nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/accounts/alice", nil)
	req1.Header.Set("X-API-Key", "k")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/accounts/alice", nil)
	req2.Header.Set("X-API-Key", "k")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec2.Code)
	}
}
