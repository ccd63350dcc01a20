package engine

import (
	"context"

	"brewduel/achievement"
	"brewduel/core"
)

// StatsDelta is one event's worth of account mutations, applied atomically.
type StatsDelta struct {
	XP          int64
	ItemsTasted int64
	Duels       int64
	Photos      int64
	Retastes    int64
	// Style and Origin are added to the account's distinct sets when
	// non-empty.
	Style  string
	Origin string
	// Tier increments the per-tier tasted counter when set.
	Tier core.Tier
}

// Storage abstracts persistence for ranking and progression state. The
// engine itself is pure; every atomicity contract lives here:
//
//   - ApplyDuel writes both ratings, both duel counters, and the DuelEvent
//     as one unit. A reader must never observe half a duel.
//   - ApplyStats is an atomic read-modify-write per account; concurrent
//     events must not lose increments.
//   - PutProgress must reject any write that would unset a completed flag.
type Storage interface {
	GetItem(ctx context.Context, id core.ItemID) (core.RatedItem, error)
	PutItem(ctx context.Context, item core.RatedItem) error
	ListItems(ctx context.Context) ([]core.RatedItem, error)
	SetTier(ctx context.Context, id core.ItemID, tier core.Tier, locked bool) error
	ApplyDuel(ctx context.Context, ev core.DuelEvent) error
	ListDuels(ctx context.Context, limit int) ([]core.DuelEvent, error)

	GetStats(ctx context.Context, account core.AccountID) (core.AccountStats, error)
	ApplyStats(ctx context.Context, account core.AccountID, delta StatsDelta) (core.AccountStats, error)

	GetTasting(ctx context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error)
	PutTasting(ctx context.Context, rec core.TastingRecord) error

	GetProgress(ctx context.Context, account core.AccountID) (map[string]achievement.Progress, error)
	PutProgress(ctx context.Context, p achievement.Progress) error
}

// NotFoundError is returned by Storage implementations for missing
// references (unknown item, account with no state yet has zero stats and is
// not an error).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return e.Kind + " not found: " + e.ID }
