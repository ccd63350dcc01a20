// Package rarity assigns each catalog item one of four ordered tiers from
// its attributes. The additive scoring with fixed breakpoints is tuned so
// that a population with roughly normal signal distributions lands near the
// 35/40/20/5 common/rare/epic/legendary target.
package rarity

import (
	"math/rand/v2"
	"strings"

	"brewduel/core"
)

// Score breakpoints. Fixed; the target distribution is realized through
// them, not re-derived per run.
const (
	baseline           = 50.0
	legendaryThreshold = 80.0
	epicThreshold      = 60.0
	rareThreshold      = 40.0
)

// Signal adjustments, each independent and additive.
const (
	industrialPenalty   = -30.0
	premiumStyleBonus   = 20.0
	craftStyleBonus     = 8.0
	genericStylePenalty = -10.0
	strongABVBonus      = 25.0 // >= 12%
	highABVBonus        = 15.0 // >= 9%
	solidABVBonus       = 8.0  // >= 7%
	lightABVPenalty     = -5.0 // < 3.5%
	uncommonOriginBonus = 10.0
	noImageBonus        = 5.0
	longNameBonus       = 5.0
	regionBonus         = 5.0
	longNameThreshold   = 20
)

// Cold-start tier weights (percent). Items with no signal at all get a
// weighted draw instead of collapsing onto a single tier.
var coldStartWeights = []struct {
	tier   core.Tier
	weight int
}{
	{core.TierCommon, 30},
	{core.TierRare, 40},
	{core.TierEpic, 25},
	{core.TierLegendary, 5},
}

// Classifier scores item attributes into a tier. The zero value is not
// usable; construct with New.
type Classifier struct {
	industrial map[string]struct{}
	premium    []string
	craft      []string
	generic    []string
	common     map[string]struct{}
	randFloat  func() float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRand overrides the randomness source used only by the cold-start
// fallback, so tests can make the draw deterministic.
func WithRand(f func() float64) Option {
	return func(c *Classifier) {
		if f != nil {
			c.randFloat = f
		}
	}
}

// WithIndustrialBreweries replaces the mass-market brewery set.
func WithIndustrialBreweries(names ...string) Option {
	return func(c *Classifier) {
		c.industrial = lowerSet(names)
	}
}

// WithCommonOrigins replaces the frequent-origin country set.
func WithCommonOrigins(countries ...string) Option {
	return func(c *Classifier) {
		c.common = lowerSet(countries)
	}
}

// New builds a classifier with the default signal sets.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		industrial: lowerSet([]string{
			"heineken", "carlsberg", "ab inbev", "anheuser-busch", "budweiser",
			"kronenbourg", "molson coors", "sabmiller", "asahi", "corona",
		}),
		premium: []string{
			"lambic", "gueuze", "trappist", "quadrupel", "barleywine",
			"imperial stout", "barrel aged", "wild ale", "grand cru",
		},
		craft: []string{
			"ipa", "stout", "porter", "saison", "pale ale", "sour", "tripel", "dubbel",
		},
		generic: []string{
			"lager", "pilsner", "pils", "light", "radler",
		},
		common: lowerSet([]string{
			"belgium", "germany", "france", "netherlands", "united kingdom",
			"usa", "united states", "czech republic", "ireland", "spain", "italy",
		}),
		randFloat: rand.Float64,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Score computes the deterministic 0-100 rarity score for the attributes.
func (c *Classifier) Score(a core.ItemAttributes) float64 {
	score := baseline

	if _, ok := c.industrial[strings.ToLower(a.Brewery)]; ok {
		score += industrialPenalty
	}

	style := strings.ToLower(a.Style)
	switch {
	case containsAny(style, c.premium):
		score += premiumStyleBonus
	case containsAny(style, c.craft):
		score += craftStyleBonus
	case containsAny(style, c.generic):
		score += genericStylePenalty
	}

	switch {
	case a.ABV >= 12:
		score += strongABVBonus
	case a.ABV >= 9:
		score += highABVBonus
	case a.ABV >= 7:
		score += solidABVBonus
	case a.ABV > 0 && a.ABV < 3.5:
		score += lightABVPenalty
	}

	if a.Country != "" {
		if _, ok := c.common[strings.ToLower(a.Country)]; !ok {
			score += uncommonOriginBonus
		}
	}
	if !a.HasImage {
		score += noImageBonus
	}
	if len(a.Name) > longNameThreshold {
		score += longNameBonus
	}
	if a.Region != "" {
		score += regionBonus
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// TierFor maps a 0-100 score to its tier via the fixed breakpoints.
func TierFor(score float64) core.Tier {
	switch {
	case score >= legendaryThreshold:
		return core.TierLegendary
	case score >= epicThreshold:
		return core.TierEpic
	case score >= rareThreshold:
		return core.TierRare
	default:
		return core.TierCommon
	}
}

// Classify assigns a tier. Deterministic for identical attributes, except
// for cold items (no signal at all) which get the weighted fallback draw.
func (c *Classifier) Classify(a core.ItemAttributes) core.Tier {
	if a.Cold() {
		return c.coldDraw()
	}
	return TierFor(c.Score(a))
}

func (c *Classifier) coldDraw() core.Tier {
	roll := c.randFloat() * 100
	acc := 0.0
	for _, w := range coldStartWeights {
		acc += float64(w.weight)
		if roll < acc {
			return w.tier
		}
	}
	return core.TierLegendary
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = struct{}{}
	}
	return m
}
