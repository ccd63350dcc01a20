package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ItemAttributes mirrors the public JSON surface of core.ItemAttributes.
type ItemAttributes struct {
	Name     string  `json:"name"`
	Brewery  string  `json:"brewery,omitempty"`
	Style    string  `json:"style,omitempty"`
	ABV      float64 `json:"abv,omitempty"`
	Country  string  `json:"country,omitempty"`
	Region   string  `json:"region,omitempty"`
	HasImage bool    `json:"has_image,omitempty"`
}

// Item mirrors the public JSON surface of core.RatedItem.
type Item struct {
	ID         string         `json:"id"`
	Attributes ItemAttributes `json:"attributes"`
	Rating     int            `json:"rating"`
	DuelCount  int64          `json:"duel_count"`
	Tier       string         `json:"tier,omitempty"`
	TierLocked bool           `json:"tier_locked,omitempty"`
	Updated    time.Time      `json:"updated"`
}

// TastingRequest describes one tasting submission.
type TastingRequest struct {
	Account  string `json:"account"`
	Item     string `json:"item"`
	Photo    bool   `json:"photo,omitempty"`
	Location bool   `json:"location,omitempty"`
}

// Level mirrors one row of the progression level table.
type Level struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	MinXP int64  `json:"min_xp"`
}

// TastingResult mirrors engine.TastingResult.
type TastingResult struct {
	First     bool     `json:"first"`
	Repeats   int      `json:"repeats"`
	Tier      string   `json:"tier"`
	XP        int64    `json:"xp"`
	BonusXP   int64    `json:"bonus_xp"`
	TotalXP   int64    `json:"total_xp"`
	Level     Level    `json:"level"`
	Progress  float64  `json:"progress"`
	LeveledUp bool     `json:"leveled_up"`
	Unlocks   []Unlock `json:"unlocks,omitempty"`
}

// AchievementDefinition mirrors achievement.Definition.
type AchievementDefinition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Stat     string `json:"stat"`
	Target   int64  `json:"target"`
	RewardXP int64  `json:"reward_xp"`
}

// Unlock mirrors achievement.Unlock.
type Unlock struct {
	Definition AchievementDefinition `json:"definition"`
	At         time.Time             `json:"at"`
}

// DuelRequest describes one duel submission.
type DuelRequest struct {
	Account string `json:"account,omitempty"`
	ItemA   string `json:"item_a"`
	ItemB   string `json:"item_b"`
	Winner  string `json:"winner"`
}

// DuelEvent mirrors core.DuelEvent.
type DuelEvent struct {
	ID            string    `json:"id"`
	ItemA         string    `json:"item_a"`
	ItemB         string    `json:"item_b"`
	Winner        string    `json:"winner"`
	RatingABefore int       `json:"rating_a_before"`
	RatingAAfter  int       `json:"rating_a_after"`
	RatingBBefore int       `json:"rating_b_before"`
	RatingBAfter  int       `json:"rating_b_after"`
	At            time.Time `json:"at"`
}

// DuelOutcome mirrors engine.DuelOutcome.
type DuelOutcome struct {
	Event   DuelEvent `json:"event"`
	DeltaA  int       `json:"delta_a"`
	DeltaB  int       `json:"delta_b"`
	XP      int64     `json:"xp"`
	Unlocks []Unlock  `json:"unlocks,omitempty"`
}

// RebalanceSummary mirrors engine.RebalanceSummary.
type RebalanceSummary struct {
	Total   int `json:"total"`
	Changed int `json:"changed"`
	Skipped int `json:"skipped"`
}

// AccountStats mirrors the public JSON surface of core.AccountStats.
type AccountStats struct {
	AccountID   string              `json:"account_id"`
	XP          int64               `json:"xp"`
	ItemsTasted int64               `json:"items_tasted"`
	Duels       int64               `json:"duels"`
	Photos      int64               `json:"photos"`
	Retastes    int64               `json:"retastes"`
	Styles      map[string]struct{} `json:"styles,omitempty"`
	Origins     map[string]struct{} `json:"origins,omitempty"`
	ByTier      map[string]int64    `json:"by_tier,omitempty"`
	Updated     time.Time           `json:"updated"`
}

// Profile mirrors engine.Profile.
type Profile struct {
	Stats        AccountStats          `json:"stats"`
	Level        Level                 `json:"level"`
	Progress     float64               `json:"progress"`
	Achievements []AchievementProgress `json:"achievements,omitempty"`
}

// AchievementProgress mirrors achievement.Progress.
type AchievementProgress struct {
	AccountID     string    `json:"account_id"`
	AchievementID string    `json:"achievement_id"`
	Progress      int64     `json:"progress"`
	Completed     bool      `json:"completed"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
}

// LeaderboardEntry mirrors leaderboard.Entry.
type LeaderboardEntry struct {
	Item   string `json:"item"`
	Rating int    `json:"rating"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is the structured error body returned by the server.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr APIError
		body, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyID is returned when a required identifier is empty.
var ErrEmptyID = errors.New("identifier is required")
