// Package progression computes experience grants for discrete events and
// maps cumulative experience to levels. All rules live in ordered
// configuration tables so they stay auditable as data.
package progression

import (
	"errors"
	"fmt"

	"brewduel/core"
)

// EventKind identifies an XP-bearing event.
type EventKind string

const (
	KindFirstTasting              EventKind = "first_tasting"
	KindFirstTastingPhoto         EventKind = "first_tasting_photo"
	KindFirstTastingPhotoLocation EventKind = "first_tasting_photo_location"
	KindDuelParticipation         EventKind = "duel_participation"
	KindRetasting                 EventKind = "retasting"
	KindAchievementUnlock         EventKind = "achievement_unlock"
)

// Context carries the event-specific inputs a grant may depend on.
type Context struct {
	// Tier of the tasted item, for the rarity bonus lookup. TierUnset
	// means no bonus.
	Tier core.Tier
	// RepeatCount is the account's repeat count for the item BEFORE this
	// event increments it. Only meaningful for retasting.
	RepeatCount int
	// Reward is the achievement's configured XP, for achievement_unlock.
	Reward int64
}

// RetasteBand is one step of the diminishing re-taste schedule. UpTo is the
// highest repeat number (1-based) the band covers.
type RetasteBand struct {
	UpTo int
	XP   int64
}

// Config holds every grant table. Immutable after construction.
type Config struct {
	// BaseGrants are fixed per kind. The photo and photo+location grants
	// replace (not add to) the plain first-tasting grant.
	BaseGrants map[EventKind]int64
	// TierBonus is added on top of first-tasting grants only.
	TierBonus map[core.Tier]int64
	// RetasteSchedule is scanned in order; repeat numbers beyond the last
	// band grant zero.
	RetasteSchedule []RetasteBand
}

// DefaultConfig returns the production grant tables.
func DefaultConfig() *Config {
	return &Config{
		BaseGrants: map[EventKind]int64{
			KindFirstTasting:              10,
			KindFirstTastingPhoto:         20,
			KindFirstTastingPhotoLocation: 30,
			KindDuelParticipation:         5,
		},
		TierBonus: map[core.Tier]int64{
			core.TierCommon:    0,
			core.TierRare:      5,
			core.TierEpic:      10,
			core.TierLegendary: 25,
		},
		RetasteSchedule: []RetasteBand{
			{UpTo: 1, XP: 5},
			{UpTo: 3, XP: 3},
			{UpTo: 10, XP: 1},
		},
	}
}

// Ledger computes grants from a Config.
type Ledger struct {
	cfg *Config
}

// NewLedger builds a ledger; a nil config selects the defaults.
func NewLedger(cfg *Config) *Ledger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ledger{cfg: cfg}
}

var errNegativeRepeat = errors.New("repeat count cannot be negative")

// GrantForEvent returns the XP amount for one event. The amount is always
// >= 0; applying it to the account (atomic increment) and bumping the
// relevant counters is the caller's side-effect contract, not an in-process
// effect here.
func (l *Ledger) GrantForEvent(kind EventKind, ctx Context) (int64, error) {
	switch kind {
	case KindFirstTasting, KindFirstTastingPhoto, KindFirstTastingPhotoLocation:
		return l.cfg.BaseGrants[kind] + l.cfg.TierBonus[ctx.Tier], nil
	case KindDuelParticipation:
		return l.cfg.BaseGrants[kind], nil
	case KindRetasting:
		if ctx.RepeatCount < 0 {
			return 0, errNegativeRepeat
		}
		return l.retasteGrant(ctx.RepeatCount + 1), nil
	case KindAchievementUnlock:
		if ctx.Reward < 0 {
			return 0, errors.New("achievement reward cannot be negative")
		}
		return ctx.Reward, nil
	default:
		return 0, fmt.Errorf("unknown event kind: %s", kind)
	}
}

func (l *Ledger) retasteGrant(repeatNumber int) int64 {
	for _, band := range l.cfg.RetasteSchedule {
		if repeatNumber <= band.UpTo {
			return band.XP
		}
	}
	return 0
}
