package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"brewduel/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the ranking HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CreateItem registers a new item in the catalog at the provisional rating.
func (c *Client) CreateItem(ctx context.Context, id string, attrs ItemAttributes) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return Item{}, ErrEmptyID
	}
	body := struct {
		ID         string         `json:"id"`
		Attributes ItemAttributes `json:"attributes"`
	}{ID: id, Attributes: attrs}

	var item Item
	if err := c.post(ctx, "/items", body, &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// GetItem fetches one item by id.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return Item{}, ErrEmptyID
	}
	var item Item
	if err := c.get(ctx, "/items/"+url.PathEscape(id), &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// SearchItems lists the catalog, optionally fuzzy-filtered by name.
func (c *Client) SearchItems(ctx context.Context, query string) ([]Item, error) {
	path := "/items"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var items []Item
	if err := c.get(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// OverrideTier pins an item to the given tier, excluding it from rebalances.
func (c *Client) OverrideTier(ctx context.Context, id, tier string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	path := fmt.Sprintf("/items/%s/tier?tier=%s", url.PathEscape(id), url.QueryEscape(tier))
	return c.post(ctx, path, nil, nil)
}

// Reclassify re-derives one item's tier from its attributes.
func (c *Client) Reclassify(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrEmptyID
	}
	var body struct {
		Tier string `json:"tier"`
	}
	path := fmt.Sprintf("/items/%s/reclassify", url.PathEscape(id))
	if err := c.post(ctx, path, nil, &body); err != nil {
		return "", err
	}
	return body.Tier, nil
}

// Rebalance re-derives tiers across the whole catalog.
func (c *Client) Rebalance(ctx context.Context) (RebalanceSummary, error) {
	var sum RebalanceSummary
	if err := c.post(ctx, "/rebalance", nil, &sum); err != nil {
		return RebalanceSummary{}, err
	}
	return sum, nil
}

// RecordTasting submits a tasting and returns the XP outcome.
func (c *Client) RecordTasting(ctx context.Context, req TastingRequest) (TastingResult, error) {
	if strings.TrimSpace(req.Account) == "" || strings.TrimSpace(req.Item) == "" {
		return TastingResult{}, ErrEmptyID
	}
	var res TastingResult
	if err := c.post(ctx, "/tastings", req, &res); err != nil {
		return TastingResult{}, err
	}
	return res, nil
}

// ResolveDuel submits a duel and returns the rating outcome.
func (c *Client) ResolveDuel(ctx context.Context, req DuelRequest) (DuelOutcome, error) {
	if strings.TrimSpace(req.ItemA) == "" || strings.TrimSpace(req.ItemB) == "" {
		return DuelOutcome{}, ErrEmptyID
	}
	var out DuelOutcome
	if err := c.post(ctx, "/duels", req, &out); err != nil {
		return DuelOutcome{}, err
	}
	return out, nil
}

// RecentDuels returns the latest duels, newest first. limit 0 uses the
// server default.
func (c *Client) RecentDuels(ctx context.Context, limit int) ([]DuelEvent, error) {
	path := "/duels"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var duels []DuelEvent
	if err := c.get(ctx, path, &duels); err != nil {
		return nil, err
	}
	return duels, nil
}

// GetProfile fetches the current progression state for an account.
func (c *Client) GetProfile(ctx context.Context, account string) (Profile, error) {
	if strings.TrimSpace(account) == "" {
		return Profile{}, ErrEmptyID
	}
	var profile Profile
	if err := c.get(ctx, "/accounts/"+url.PathEscape(account), &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Leaderboard returns the top n items by rating.
func (c *Client) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	path := "/leaderboard"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var entries []LeaderboardEntry
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	if err := c.get(ctx, "/healthz", &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) post(ctx context.Context, path string, body, target any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
