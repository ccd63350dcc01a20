package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"brewduel/core"
)

// Sink posts domain events to configured HTTP endpoints.
// It is synchronous for determinism; keep handlers fast or wrap with buffering if needed.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]struct{} // nil means all types
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEventTypes limits delivery to the listed event types.
func WithEventTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		s.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// delivery is the wire shape posted to endpoints. Raw events are reshaped
// into named sections so receivers do not have to know which of the shared
// Event fields a given type populates.
type delivery struct {
	Event    string         `json:"event"`
	At       time.Time      `json:"at"`
	Account  core.AccountID `json:"account,omitempty"`
	Duel     *duelBody      `json:"duel,omitempty"`
	Tasting  *tastingBody   `json:"tasting,omitempty"`
	Progress *progressBody  `json:"progress,omitempty"`
	Tier     *tierBody      `json:"tier,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type duelBody struct {
	Winner      core.ItemID `json:"winner"`
	Loser       core.ItemID `json:"loser"`
	RatingSwing int         `json:"rating_swing"`
}

type tastingBody struct {
	Beer   core.ItemID `json:"beer"`
	Repeat int         `json:"repeat"`
}

type progressBody struct {
	XP          int64  `json:"xp,omitempty"`
	TotalXP     int64  `json:"total_xp,omitempty"`
	Level       int    `json:"level,omitempty"`
	Achievement string `json:"achievement,omitempty"`
}

type tierBody struct {
	Beer core.ItemID `json:"beer"`
	Tier core.Tier   `json:"tier"`
}

func shape(e core.Event) delivery {
	d := delivery{Event: string(e.Type), At: e.Time, Account: e.Account, Metadata: e.Metadata}
	switch e.Type {
	case core.EventDuelResolved:
		d.Duel = &duelBody{Winner: e.Item, Loser: e.Opponent, RatingSwing: e.Delta}
	case core.EventTastingRecorded:
		d.Tasting = &tastingBody{Beer: e.Item, Repeat: e.Delta}
	case core.EventXPGranted:
		d.Progress = &progressBody{XP: e.XP, TotalXP: e.TotalXP}
	case core.EventLevelUp:
		d.Progress = &progressBody{Level: e.Level}
	case core.EventAchievementUnlocked:
		d.Progress = &progressBody{Achievement: e.Achievement, XP: e.XP}
	case core.EventTierAssigned:
		d.Tier = &tierBody{Beer: e.Item, Tier: e.Tier}
	}
	return d
}

// OnEvent posts the shaped event to all endpoints; errors are ignored for now (MVP).
func (s *Sink) OnEvent(e core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.types != nil {
		if _, ok := s.types[e.Type]; !ok {
			return
		}
	}
	body, err := json.Marshal(shape(e))
	if err != nil {
		return
	}
	for _, ep := range s.endpoints {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Brewduel-Event", string(e.Type))
		_, _ = s.client.Do(req)
	}
}
