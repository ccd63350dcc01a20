package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	mem "brewduel/adapters/memory"
	"brewduel/core"
	"brewduel/engine"
	"brewduel/leaderboard"
)

// epicAttrs scores into the epic tier deterministically.
var epicAttrs = core.ItemAttributes{
	Name: "Abbey Tripel", Brewery: "Abbaye", Style: "tripel",
	ABV: 8.5, Country: "Belgium", HasImage: true,
}

func newTestService(t *testing.T, opts ...engine.ServiceOption) (*engine.Service, *mem.Store) {
	t.Helper()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	t.Cleanup(bus.Close)
	return engine.NewService(store, bus, opts...), store
}

func TestCreateItemClassifies(t *testing.T) {
	svc, _ := newTestService(t)
	item, err := svc.CreateItem(context.Background(), "tripel", epicAttrs)
	require.NoError(t, err)
	require.Equal(t, core.DefaultRating, item.Rating)
	require.Equal(t, core.TierEpic, item.Tier)

	_, err = svc.CreateItem(context.Background(), "tripel", epicAttrs)
	require.ErrorIs(t, err, engine.ErrItemExists)

	_, err = svc.CreateItem(context.Background(), "bad id", epicAttrs)
	require.Error(t, err)
}

func TestResolveDuelEqualRatings(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateItem(ctx, "a", epicAttrs)
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, "b", epicAttrs)
	require.NoError(t, err)

	out, err := svc.ResolveDuel(ctx, "", "a", "b", "a")
	require.NoError(t, err)
	require.Equal(t, 16, out.DeltaA)
	require.Equal(t, -16, out.DeltaB)

	a, _ := store.GetItem(ctx, "a")
	b, _ := store.GetItem(ctx, "b")
	require.Equal(t, 1516, a.Rating)
	require.Equal(t, 1484, b.Rating)
	require.Equal(t, int64(1), a.DuelCount)
	require.Equal(t, int64(1), b.DuelCount)

	duels, err := svc.RecentDuels(ctx, 5)
	require.NoError(t, err)
	require.Len(t, duels, 1)
	require.Equal(t, 1500, duels[0].RatingABefore)
	require.Equal(t, 1516, duels[0].RatingAAfter)
	require.NotEmpty(t, duels[0].ID)
}

func TestResolveDuelValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.ResolveDuel(ctx, "", "a", "a", "a")
	require.ErrorIs(t, err, engine.ErrSelfDuel)
	_, err = svc.ResolveDuel(ctx, "", "a", "b", "c")
	require.ErrorIs(t, err, engine.ErrUnknownWinner)
	// missing items surface before any mutation
	_, err = svc.ResolveDuel(ctx, "", "a", "b", "a")
	var nf *engine.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolveDuelBadAccountLeavesStateUntouched(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "a", epicAttrs)
	_, _ = svc.CreateItem(ctx, "b", epicAttrs)

	// a whitespace-only account id is rejected before any persistence
	_, err := svc.ResolveDuel(ctx, "   ", "a", "b", "a")
	require.Error(t, err)

	a, _ := store.GetItem(ctx, "a")
	b, _ := store.GetItem(ctx, "b")
	require.Equal(t, 1500, a.Rating)
	require.Equal(t, 1500, b.Rating)
	require.Equal(t, int64(0), a.DuelCount)

	duels, err := svc.RecentDuels(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, duels)
}

func TestResolveDuelGrantsParticipationXP(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "a", epicAttrs)
	_, _ = svc.CreateItem(ctx, "b", epicAttrs)

	out, err := svc.ResolveDuel(ctx, "Alice", "a", "b", "b")
	require.NoError(t, err)
	require.Equal(t, int64(5), out.XP)

	stats, err := store.GetStats(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(5), stats.XP)
	require.Equal(t, int64(1), stats.Duels)
}

func TestResolveDuelUpdatesLeaderboard(t *testing.T) {
	board := leaderboard.NewSkipList()
	svc, _ := newTestService(t, engine.WithLeaderboard(board))
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "a", epicAttrs)
	_, _ = svc.CreateItem(ctx, "b", epicAttrs)

	_, err := svc.ResolveDuel(ctx, "", "a", "b", "a")
	require.NoError(t, err)
	top := board.TopN(2)
	require.Len(t, top, 2)
	require.Equal(t, core.ItemID("a"), top[0].Item)
	require.Equal(t, int64(1516), top[0].Rating)
}

func TestRecordTastingFirstTime(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateItem(ctx, "tripel", epicAttrs)
	require.NoError(t, err)

	res, err := svc.RecordTasting(ctx, "alice", "tripel", engine.TastingOpts{})
	require.NoError(t, err)
	require.True(t, res.First)
	require.Equal(t, core.TierEpic, res.Tier)
	// base 10 + epic bonus 10
	require.Equal(t, int64(20), res.XP)
	// first_sip unlock (reward 10) fires on the first tasting
	require.Len(t, res.Unlocks, 1)
	require.Equal(t, "first_sip", res.Unlocks[0].Definition.ID)
	require.Equal(t, int64(10), res.BonusXP)
	require.Equal(t, int64(30), res.TotalXP)

	stats, _ := store.GetStats(ctx, "alice")
	require.Equal(t, int64(1), stats.ItemsTasted)
	require.Contains(t, stats.Styles, "tripel")
	require.Contains(t, stats.Origins, "Belgium")
	require.Equal(t, int64(1), stats.ByTier[core.TierEpic])
}

func TestRecordTastingEnrichment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "tripel", epicAttrs)

	res, err := svc.RecordTasting(ctx, "alice", "tripel", engine.TastingOpts{Photo: true, Location: true})
	require.NoError(t, err)
	// enriched grant 30 replaces the base, epic bonus still applies
	require.Equal(t, int64(40), res.XP)
	stats, _ := store.GetStats(ctx, "alice")
	require.Equal(t, int64(1), stats.Photos)

	_, err = svc.RecordTasting(ctx, "bob", "tripel", engine.TastingOpts{Location: true})
	require.ErrorIs(t, err, engine.ErrLocationRequiresPhoto)
}

func TestRecordTastingRepeatSchedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "tripel", epicAttrs)

	grants := []int64{}
	for i := 0; i < 12; i++ {
		res, err := svc.RecordTasting(ctx, "alice", "tripel", engine.TastingOpts{})
		require.NoError(t, err)
		grants = append(grants, res.XP)
		if i > 0 {
			require.False(t, res.First)
			require.Equal(t, i, res.Repeats)
		}
	}
	// 2nd tasting = 1st repeat, 4th = 3rd repeat, 12th = 11th repeat
	require.Equal(t, int64(5), grants[1])
	require.Equal(t, int64(3), grants[3])
	require.Zero(t, grants[11])
}

func TestAchievementFiresExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, id := range []core.ItemID{"i1", "i2", "i3", "i4", "i5", "i6", "i7", "i8", "i9", "i10", "i11"} {
		_, err := svc.CreateItem(ctx, id, epicAttrs)
		require.NoError(t, err)
	}

	unlocked := map[string]int{}
	var mu sync.Mutex
	svc.Subscribe(core.EventAchievementUnlocked, func(_ context.Context, e core.Event) {
		mu.Lock()
		unlocked[e.Achievement]++
		mu.Unlock()
	})

	for _, id := range []core.ItemID{"i1", "i2", "i3", "i4", "i5", "i6", "i7", "i8", "i9", "i10", "i11"} {
		_, err := svc.RecordTasting(ctx, "alice", id, engine.TastingOpts{})
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, unlocked["first_sip"])
	require.Equal(t, 1, unlocked["ten_bottles"])
}

func TestLevelUpEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	legendary := core.ItemAttributes{
		Name: "Cellar Grand Cru", Brewery: "Abbaye", Style: "barrel aged quadrupel",
		ABV: 11, Country: "Belgium", HasImage: true,
	}
	for _, id := range []core.ItemID{"q1", "q2", "q3"} {
		_, err := svc.CreateItem(ctx, id, legendary)
		require.NoError(t, err)
	}

	levels := []int{}
	svc.Subscribe(core.EventLevelUp, func(_ context.Context, e core.Event) { levels = append(levels, e.Level) })

	// three legendary first tastings: 35 each, plus first_sip (10) and
	// unicorn_hunter (150) rewards. XP walks 45 -> 80 -> 115 -> 265,
	// crossing the level-2 threshold (100) and then level 3 (250).
	for _, id := range []core.ItemID{"q1", "q2", "q3"} {
		_, err := svc.RecordTasting(ctx, "alice", id, engine.TastingOpts{})
		require.NoError(t, err)
	}
	require.Equal(t, []int{2, 3}, levels)

	profile, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(265), profile.Stats.XP)
	require.Equal(t, 3, profile.Level.Level)
}

func TestOverrideAndRebalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "macro", core.ItemAttributes{
		Name: "Macro", Brewery: "Heineken", Style: "lager", ABV: 5, Country: "Netherlands", HasImage: true,
	})
	_, _ = svc.CreateItem(ctx, "tripel", epicAttrs)

	require.NoError(t, svc.OverrideTier(ctx, "macro", core.TierLegendary))
	item, _ := store.GetItem(ctx, "macro")
	require.True(t, item.TierLocked)

	sum, err := svc.RebalanceAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Total)
	require.Equal(t, 1, sum.Skipped)
	require.Zero(t, sum.Changed, "rebalance with unchanged attributes must not drift")

	item, _ = store.GetItem(ctx, "macro")
	require.Equal(t, core.TierLegendary, item.Tier, "override survives rebalance")

	require.Error(t, svc.OverrideTier(ctx, "ghost", core.TierRare))
	require.Error(t, svc.OverrideTier(ctx, "macro", core.TierUnset))
}

func TestReclassifyItem(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "tripel", epicAttrs)

	// attribute update changes the signal; reclassify follows it
	item, _ := store.GetItem(ctx, "tripel")
	item.Attributes.ABV = 12.5
	item.Attributes.Style = "barrel aged quadrupel"
	require.NoError(t, store.PutItem(ctx, item))

	tier, err := svc.ReclassifyItem(ctx, "tripel")
	require.NoError(t, err)
	require.Equal(t, core.TierLegendary, tier)
}

func TestGetProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, "tripel", epicAttrs)
	_, err := svc.RecordTasting(ctx, "alice", "tripel", engine.TastingOpts{})
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, "Alice")
	require.NoError(t, err)
	require.Equal(t, int64(30), profile.Stats.XP)
	require.Equal(t, 1, profile.Level.Level)
	require.NotEmpty(t, profile.Achievements)
}
