// Package achievement detects when a named, quantified condition over an
// account's cumulative statistics has been met, and flags completion
// exactly once.
package achievement

import (
	"errors"
	"fmt"
	"time"

	"brewduel/core"
)

// ConditionKind selects how a definition's statistic aggregates.
type ConditionKind string

const (
	// ConditionCount reads a plain cumulative counter.
	ConditionCount ConditionKind = "count"
	// ConditionDistinct reads a set-cardinality statistic (e.g. distinct
	// styles tasted).
	ConditionDistinct ConditionKind = "distinct"
)

// Definition is a named condition. Static configuration; the engine never
// mutates it.
type Definition struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Kind     ConditionKind `json:"kind"`
	Stat     string        `json:"stat"`
	Target   int64         `json:"target"`
	RewardXP int64         `json:"reward_xp"`
}

// Progress is the per-(account, definition) state. Completed transitions
// false->true exactly once and is never unset.
type Progress struct {
	AccountID     core.AccountID `json:"account_id"`
	AchievementID string         `json:"achievement_id"`
	Progress      int64          `json:"progress"`
	Completed     bool           `json:"completed"`
	CompletedAt   time.Time      `json:"completed_at,omitempty"`
}

// Unlock reports a completion that happened during an Evaluate call. The
// caller turns it into an achievement_unlock ledger event; re-evaluating a
// completed achievement never produces another one.
type Unlock struct {
	Definition Definition `json:"definition"`
	At         time.Time  `json:"at"`
}

var errBadTarget = errors.New("achievement target must be positive")

func (d Definition) validate() error {
	if d.ID == "" {
		return errors.New("achievement id is empty")
	}
	if d.Kind != ConditionCount && d.Kind != ConditionDistinct {
		return fmt.Errorf("unknown condition kind: %s", d.Kind)
	}
	if d.Target <= 0 {
		return errBadTarget
	}
	return nil
}

// Evaluate recomputes progress from the stats snapshot. Progress is always
// derived from cumulative state, never incremented per event, so events
// that map to the same statistic cannot double-count. Progress is monotonic:
// a snapshot reading below the recorded value (which a stale read could
// produce) never lowers it.
func Evaluate(def Definition, prior Progress, stats core.AccountStats, now time.Time) (Progress, *Unlock, error) {
	if err := def.validate(); err != nil {
		return prior, nil, err
	}
	if prior.Completed {
		return prior, nil, nil
	}

	next := prior
	next.AccountID = stats.AccountID
	next.AchievementID = def.ID
	if v := stats.Stat(def.Stat); v > next.Progress {
		next.Progress = v
	}
	if next.Progress >= def.Target {
		next.Completed = true
		next.CompletedAt = now.UTC()
		return next, &Unlock{Definition: def, At: next.CompletedAt}, nil
	}
	return next, nil, nil
}

// EvaluateAll runs Evaluate for every definition, returning updated progress
// records (only those that changed) and any unlocks, in definition order.
func EvaluateAll(defs []Definition, prior map[string]Progress, stats core.AccountStats, now time.Time) ([]Progress, []Unlock, error) {
	var changed []Progress
	var unlocks []Unlock
	for _, def := range defs {
		p, unlock, err := Evaluate(def, prior[def.ID], stats, now)
		if err != nil {
			return nil, nil, err
		}
		if p != prior[def.ID] {
			changed = append(changed, p)
		}
		if unlock != nil {
			unlocks = append(unlocks, *unlock)
		}
	}
	return changed, unlocks, nil
}

// DefaultDefinitions is the stock trophy catalog.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "first_sip", Name: "First Sip", Category: "tasting", Kind: ConditionCount, Stat: core.StatItemsTasted, Target: 1, RewardXP: 10},
		{ID: "ten_bottles", Name: "Ten Bottles on the Wall", Category: "tasting", Kind: ConditionCount, Stat: core.StatItemsTasted, Target: 10, RewardXP: 50},
		{ID: "half_century", Name: "Half Century", Category: "tasting", Kind: ConditionCount, Stat: core.StatItemsTasted, Target: 50, RewardXP: 200},
		{ID: "duelist", Name: "Duelist", Category: "dueling", Kind: ConditionCount, Stat: core.StatDuels, Target: 10, RewardXP: 40},
		{ID: "arbiter", Name: "Arbiter of Taste", Category: "dueling", Kind: ConditionCount, Stat: core.StatDuels, Target: 100, RewardXP: 250},
		{ID: "shutterbug", Name: "Shutterbug", Category: "enrichment", Kind: ConditionCount, Stat: core.StatPhotos, Target: 5, RewardXP: 30},
		{ID: "creature_of_habit", Name: "Creature of Habit", Category: "tasting", Kind: ConditionCount, Stat: core.StatRetastes, Target: 25, RewardXP: 60},
		{ID: "style_explorer", Name: "Style Explorer", Category: "discovery", Kind: ConditionDistinct, Stat: core.StatDistinctStyles, Target: 8, RewardXP: 80},
		{ID: "globe_trotter", Name: "Globe Trotter", Category: "discovery", Kind: ConditionDistinct, Stat: core.StatDistinctOrigins, Target: 10, RewardXP: 100},
		{ID: "unicorn_hunter", Name: "Unicorn Hunter", Category: "discovery", Kind: ConditionCount, Stat: core.StatLegendaryTasted, Target: 3, RewardXP: 150},
	}
}
