package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brewduel/core"
)

var countDef = Definition{
	ID: "ten_items", Name: "Ten Items", Category: "tasting",
	Kind: ConditionCount, Stat: core.StatItemsTasted, Target: 10, RewardXP: 50,
}

func TestEvaluateCrossesTargetOnce(t *testing.T) {
	now := time.Now()
	stats := core.AccountStats{AccountID: "alice", ItemsTasted: 9}

	p, unlock, err := Evaluate(countDef, Progress{}, stats, now)
	require.NoError(t, err)
	require.Nil(t, unlock)
	require.Equal(t, int64(9), p.Progress)
	require.False(t, p.Completed)

	// 9 -> 10 in one event: completes and fires exactly once
	stats.ItemsTasted = 10
	p, unlock, err = Evaluate(countDef, p, stats, now)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	require.True(t, p.Completed)
	require.Equal(t, int64(50), unlock.Definition.RewardXP)

	// later re-evaluation at 15 must not re-fire
	stats.ItemsTasted = 15
	p2, unlock, err := Evaluate(countDef, p, stats, now.Add(time.Hour))
	require.NoError(t, err)
	require.Nil(t, unlock)
	require.Equal(t, p, p2, "completed progress is terminal")
}

func TestCompletedNeverUnset(t *testing.T) {
	now := time.Now()
	completed := Progress{AccountID: "alice", AchievementID: countDef.ID, Progress: 12, Completed: true, CompletedAt: now}
	// even a snapshot reading below target leaves it completed
	p, unlock, err := Evaluate(countDef, completed, core.AccountStats{AccountID: "alice", ItemsTasted: 2}, now)
	require.NoError(t, err)
	require.Nil(t, unlock)
	require.True(t, p.Completed)
}

func TestProgressMonotonic(t *testing.T) {
	now := time.Now()
	p, _, err := Evaluate(countDef, Progress{Progress: 7}, core.AccountStats{AccountID: "alice", ItemsTasted: 4}, now)
	require.NoError(t, err)
	require.Equal(t, int64(7), p.Progress, "stale lower read must not lower progress")
}

func TestDistinctCondition(t *testing.T) {
	def := Definition{ID: "styles", Name: "Styles", Category: "discovery", Kind: ConditionDistinct, Stat: core.StatDistinctStyles, Target: 3, RewardXP: 20}
	stats := core.AccountStats{AccountID: "bob", Styles: map[string]struct{}{"ipa": {}, "stout": {}}}
	p, unlock, err := Evaluate(def, Progress{}, stats, time.Now())
	require.NoError(t, err)
	require.Nil(t, unlock)
	require.Equal(t, int64(2), p.Progress)

	stats.Styles["gueuze"] = struct{}{}
	_, unlock, err = Evaluate(def, p, stats, time.Now())
	require.NoError(t, err)
	require.NotNil(t, unlock)
}

func TestEvaluateRejectsBadDefinitions(t *testing.T) {
	now := time.Now()
	stats := core.AccountStats{AccountID: "a"}
	_, _, err := Evaluate(Definition{ID: "x", Kind: "weird", Stat: core.StatDuels, Target: 1}, Progress{}, stats, now)
	require.Error(t, err)
	_, _, err = Evaluate(Definition{ID: "x", Kind: ConditionCount, Stat: core.StatDuels, Target: 0}, Progress{}, stats, now)
	require.Error(t, err)
	_, _, err = Evaluate(Definition{Kind: ConditionCount, Stat: core.StatDuels, Target: 1}, Progress{}, stats, now)
	require.Error(t, err)
}

func TestEvaluateAll(t *testing.T) {
	defs := DefaultDefinitions()
	stats := core.AccountStats{AccountID: "carol", ItemsTasted: 1}
	changed, unlocks, err := EvaluateAll(defs, map[string]Progress{}, stats, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, changed)
	require.Len(t, unlocks, 1)
	require.Equal(t, "first_sip", unlocks[0].Definition.ID)

	// feed the updated records back in: no new unlocks, no changes
	prior := map[string]Progress{}
	for _, p := range changed {
		prior[p.AchievementID] = p
	}
	changed, unlocks, err = EvaluateAll(defs, prior, stats, time.Now())
	require.NoError(t, err)
	require.Empty(t, changed)
	require.Empty(t, unlocks)
}

func TestDefaultDefinitionsValid(t *testing.T) {
	seen := map[string]struct{}{}
	for _, def := range DefaultDefinitions() {
		require.NoError(t, def.validate(), def.ID)
		require.Positive(t, def.RewardXP, def.ID)
		_, dup := seen[def.ID]
		require.False(t, dup, "duplicate id %s", def.ID)
		seen[def.ID] = struct{}{}
	}
}
