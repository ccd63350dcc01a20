package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// AccountID uniquely identifies a user account in the ranking domain.
type AccountID string

// ItemID uniquely identifies a rated item (a beer) in the catalog.
type ItemID string

// DefaultRating is the Elo rating assigned to every item on creation.
const DefaultRating = 1500

// Tier is one of four ordered rarity levels assigned to an item.
type Tier string

const (
	TierUnset     Tier = ""
	TierCommon    Tier = "common"
	TierRare      Tier = "rare"
	TierEpic      Tier = "epic"
	TierLegendary Tier = "legendary"
)

// Tiers returns all assignable tiers in order from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierCommon, TierRare, TierEpic, TierLegendary}
}

// Order returns the tier's position in the common..legendary ordering,
// or -1 for an unset or unknown tier.
func (t Tier) Order() int {
	switch t {
	case TierCommon:
		return 0
	case TierRare:
		return 1
	case TierEpic:
		return 2
	case TierLegendary:
		return 3
	default:
		return -1
	}
}

// DisplayName returns a human-readable label for the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierCommon:
		return "Common"
	case TierRare:
		return "Rare"
	case TierEpic:
		return "Epic"
	case TierLegendary:
		return "Legendary"
	default:
		return string(t)
	}
}

// ParseTier validates a tier string from external input.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Order() < 0 {
		return TierUnset, errors.New("unknown tier: " + s)
	}
	return t, nil
}

// ItemAttributes are the catalog-supplied signals the rarity classifier
// consumes. The import collaborator delivers them already cleaned; no text
// normalization happens here.
type ItemAttributes struct {
	Name     string  `json:"name"`
	Brewery  string  `json:"brewery,omitempty"`
	Style    string  `json:"style,omitempty"`
	ABV      float64 `json:"abv,omitempty"`
	Country  string  `json:"country,omitempty"`
	Region   string  `json:"region,omitempty"`
	HasImage bool    `json:"has_image,omitempty"`
}

// Cold reports whether the item carries no usable classification signal.
func (a ItemAttributes) Cold() bool {
	return a.Brewery == "" && a.Style == "" && a.ABV == 0 && a.Country == ""
}

// RatedItem is an item participating in ranking. Rating and DuelCount are
// mutated only through duel resolution; Tier only through classification or
// an explicit admin override (which sets TierLocked).
type RatedItem struct {
	ID         ItemID         `json:"id"`
	Attributes ItemAttributes `json:"attributes"`
	Rating     int            `json:"rating"`
	DuelCount  int64          `json:"duel_count"`
	Tier       Tier           `json:"tier,omitempty"`
	TierLocked bool           `json:"tier_locked,omitempty"`
	Updated    time.Time      `json:"updated"`
}

// AccountStats is an immutable snapshot of an account's cumulative state.
// Implementations should return deep copies to maintain immutability
// guarantees.
type AccountStats struct {
	AccountID   AccountID           `json:"account_id"`
	XP          int64               `json:"xp"`
	ItemsTasted int64               `json:"items_tasted"`
	Duels       int64               `json:"duels"`
	Photos      int64               `json:"photos"`
	Retastes    int64               `json:"retastes"`
	Styles      map[string]struct{} `json:"styles,omitempty"`
	Origins     map[string]struct{} `json:"origins,omitempty"`
	ByTier      map[Tier]int64      `json:"by_tier,omitempty"`
	Updated     time.Time           `json:"updated"`
}

// Clone returns a deep copy of the stats to uphold immutability.
func (s AccountStats) Clone() AccountStats {
	cp := s
	cp.Styles = make(map[string]struct{}, len(s.Styles))
	cp.Origins = make(map[string]struct{}, len(s.Origins))
	cp.ByTier = make(map[Tier]int64, len(s.ByTier))
	for k := range s.Styles {
		cp.Styles[k] = struct{}{}
	}
	for k := range s.Origins {
		cp.Origins[k] = struct{}{}
	}
	for k, v := range s.ByTier {
		cp.ByTier[k] = v
	}
	return cp
}

// Named statistics achievement conditions may target.
const (
	StatItemsTasted     = "items_tasted"
	StatDuels           = "duels"
	StatPhotos          = "photos"
	StatRetastes        = "retastes"
	StatDistinctStyles  = "distinct_styles"
	StatDistinctOrigins = "distinct_origins"
	StatLegendaryTasted = "legendary_tasted"
	StatEpicTasted      = "epic_tasted"
)

// Stat reads a named statistic off the snapshot. Achievement conditions are
// always evaluated against these derived values, never against per-event
// increments.
func (s AccountStats) Stat(name string) int64 {
	switch name {
	case StatItemsTasted:
		return s.ItemsTasted
	case StatDuels:
		return s.Duels
	case StatPhotos:
		return s.Photos
	case StatRetastes:
		return s.Retastes
	case StatDistinctStyles:
		return int64(len(s.Styles))
	case StatDistinctOrigins:
		return int64(len(s.Origins))
	case StatLegendaryTasted:
		return s.ByTier[TierLegendary]
	case StatEpicTasted:
		return s.ByTier[TierEpic]
	default:
		return 0
	}
}

// TastingRecord links an account to an item it has tasted. Repeats counts
// re-tastes after the first; it never resets.
type TastingRecord struct {
	AccountID   AccountID `json:"account_id"`
	ItemID      ItemID    `json:"item_id"`
	FirstTasted time.Time `json:"first_tasted"`
	Repeats     int       `json:"repeats"`
	HasPhoto    bool      `json:"has_photo,omitempty"`
	HasLocation bool      `json:"has_location,omitempty"`
}

// DuelEvent is the immutable record of one pairwise comparison, capturing
// both ratings immediately before and after. Written exactly once.
type DuelEvent struct {
	ID            string    `json:"id"`
	ItemA         ItemID    `json:"item_a"`
	ItemB         ItemID    `json:"item_b"`
	Winner        ItemID    `json:"winner"`
	RatingABefore int       `json:"rating_a_before"`
	RatingAAfter  int       `json:"rating_a_after"`
	RatingBBefore int       `json:"rating_b_before"`
	RatingBAfter  int       `json:"rating_b_after"`
	At            time.Time `json:"at"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeAccountID trims and lowercases account identifiers.
func NormalizeAccountID(id AccountID) (AccountID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty account id")
	}
	return AccountID(strings.ToLower(s)), nil
}

// ValidateItemID ensures a non-empty item id with simple charset check.
func ValidateItemID(id ItemID) error {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return errors.New("empty item id")
	}
	// simple check: alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid item id")
	}
	return nil
}
