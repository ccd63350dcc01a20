package progression

import (
	"testing"

	"github.com/stretchr/testify/require"

	"brewduel/core"
)

func TestFirstTastingGrants(t *testing.T) {
	l := NewLedger(nil)

	plain, err := l.GrantForEvent(KindFirstTasting, Context{})
	require.NoError(t, err)
	withPhoto, err := l.GrantForEvent(KindFirstTastingPhoto, Context{})
	require.NoError(t, err)
	withBoth, err := l.GrantForEvent(KindFirstTastingPhotoLocation, Context{})
	require.NoError(t, err)

	// enrichment replaces the base grant with a strictly larger one
	require.Greater(t, withPhoto, plain)
	require.Greater(t, withBoth, withPhoto)
}

func TestTierBonus(t *testing.T) {
	l := NewLedger(nil)
	var prev int64 = -1
	for _, tier := range core.Tiers() {
		xp, err := l.GrantForEvent(KindFirstTasting, Context{Tier: tier})
		require.NoError(t, err)
		require.GreaterOrEqual(t, xp, prev)
		prev = xp
	}
	common, _ := l.GrantForEvent(KindFirstTasting, Context{Tier: core.TierCommon})
	unset, _ := l.GrantForEvent(KindFirstTasting, Context{})
	require.Equal(t, unset, common, "common tier carries no bonus")
	legendary, _ := l.GrantForEvent(KindFirstTasting, Context{Tier: core.TierLegendary})
	require.Greater(t, legendary, common)
}

func TestRetasteSchedule(t *testing.T) {
	l := NewLedger(nil)

	grant := func(prior int) int64 {
		xp, err := l.GrantForEvent(KindRetasting, Context{RepeatCount: prior})
		require.NoError(t, err)
		return xp
	}

	// 2nd tasting overall = 1st repeat (prior count 0)
	first := grant(0)
	// 4th tasting overall = 3rd repeat (prior count 2)
	third := grant(2)
	// 12th tasting overall = 11th repeat (prior count 10)
	eleventh := grant(10)

	require.Greater(t, first, third)
	require.Greater(t, third, int64(0))
	require.Zero(t, eleventh)

	// every repeat from the 11th on grants zero
	for prior := 10; prior < 40; prior++ {
		require.Zero(t, grant(prior))
	}
	// schedule is non-increasing
	prev := grant(0)
	for prior := 1; prior < 15; prior++ {
		cur := grant(prior)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestRetasteNegativeRepeat(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.GrantForEvent(KindRetasting, Context{RepeatCount: -1})
	require.Error(t, err)
}

func TestUnknownKind(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.GrantForEvent(EventKind("mystery"), Context{})
	require.Error(t, err)
}

func TestGrantsNeverNegative(t *testing.T) {
	l := NewLedger(nil)
	kinds := []EventKind{
		KindFirstTasting, KindFirstTastingPhoto, KindFirstTastingPhotoLocation,
		KindDuelParticipation, KindRetasting, KindAchievementUnlock,
	}
	for _, k := range kinds {
		for _, tier := range append(core.Tiers(), core.TierUnset) {
			xp, err := l.GrantForEvent(k, Context{Tier: tier, RepeatCount: 5, Reward: 40})
			require.NoError(t, err)
			require.GreaterOrEqual(t, xp, int64(0))
		}
	}
}

func TestAchievementUnlockGrant(t *testing.T) {
	l := NewLedger(nil)
	xp, err := l.GrantForEvent(KindAchievementUnlock, Context{Reward: 75})
	require.NoError(t, err)
	require.Equal(t, int64(75), xp)
	_, err = l.GrantForEvent(KindAchievementUnlock, Context{Reward: -1})
	require.Error(t, err)
}

func TestLevelForMonotonic(t *testing.T) {
	prev := LevelFor(0).Level
	for xp := int64(0); xp <= 15000; xp += 50 {
		cur := LevelFor(xp).Level
		require.GreaterOrEqual(t, cur, prev, "xp=%d", xp)
		prev = cur
	}
}

func TestLevelBoundaries(t *testing.T) {
	table := Levels()
	for _, row := range table {
		got := LevelFor(row.MinXP)
		require.Equal(t, row.Level, got.Level, "threshold of level %d", row.Level)
		if row.MinXP > 0 {
			below := LevelFor(row.MinXP - 1)
			require.Equal(t, row.Level-1, below.Level)
		}
	}
	require.Equal(t, table[0].Level, LevelFor(-5).Level)
}

func TestProgressToNext(t *testing.T) {
	table := Levels()
	// exactly 0 at a level's own threshold
	require.Zero(t, ProgressToNext(table[2].MinXP))
	// midway between level 1 (0) and level 2 (100)
	require.InDelta(t, 50, ProgressToNext(50), 1e-9)
	// exactly 100 at and above the max threshold
	top := table[len(table)-1].MinXP
	require.Equal(t, float64(100), ProgressToNext(top))
	require.Equal(t, float64(100), ProgressToNext(top+99999))
}
