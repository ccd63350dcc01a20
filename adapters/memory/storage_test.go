package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"
)

func TestItemLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetItem(ctx, "ghost")
	var nf *engine.NotFoundError
	require.ErrorAs(t, err, &nf)

	item := core.RatedItem{ID: "orval", Rating: core.DefaultRating, Tier: core.TierEpic}
	require.NoError(t, s.PutItem(ctx, item))

	got, err := s.GetItem(ctx, "orval")
	require.NoError(t, err)
	require.Equal(t, core.TierEpic, got.Tier)

	require.NoError(t, s.SetTier(ctx, "orval", core.TierLegendary, true))
	got, _ = s.GetItem(ctx, "orval")
	require.Equal(t, core.TierLegendary, got.Tier)
	require.True(t, got.TierLocked)

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestApplyDuelUpdatesBothSides(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.PutItem(ctx, core.RatedItem{ID: "a", Rating: 1500}))
	require.NoError(t, s.PutItem(ctx, core.RatedItem{ID: "b", Rating: 1500}))

	ev := core.DuelEvent{
		ID: "d1", ItemA: "a", ItemB: "b", Winner: "a",
		RatingABefore: 1500, RatingAAfter: 1516,
		RatingBBefore: 1500, RatingBAfter: 1484,
		At: time.Now(),
	}
	require.NoError(t, s.ApplyDuel(ctx, ev))

	a, _ := s.GetItem(ctx, "a")
	b, _ := s.GetItem(ctx, "b")
	require.Equal(t, 1516, a.Rating)
	require.Equal(t, 1484, b.Rating)
	require.Equal(t, int64(1), a.DuelCount)
	require.Equal(t, int64(1), b.DuelCount)

	duels, err := s.ListDuels(ctx, 10)
	require.NoError(t, err)
	require.Len(t, duels, 1)
	require.Equal(t, "d1", duels[0].ID)

	require.Error(t, s.ApplyDuel(ctx, core.DuelEvent{ItemA: "a", ItemB: "ghost"}))
}

func TestApplyStatsConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyStats(ctx, "alice", engine.StatsDelta{XP: 10, ItemsTasted: 1})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	stats, err := s.GetStats(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(500), stats.XP, "no increment may be lost")
	require.Equal(t, int64(50), stats.ItemsTasted)
}

func TestApplyStatsSetsAndTiers(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.ApplyStats(ctx, "bob", engine.StatsDelta{Style: "ipa", Origin: "belgium", Tier: core.TierEpic})
	require.NoError(t, err)
	stats, _ := s.ApplyStats(ctx, "bob", engine.StatsDelta{Style: "ipa", Origin: "japan", Tier: core.TierEpic})
	require.Len(t, stats.Styles, 1)
	require.Len(t, stats.Origins, 2)
	require.Equal(t, int64(2), stats.ByTier[core.TierEpic])
}

func TestTastingRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, found, err := s.GetTasting(ctx, "alice", "orval")
	require.NoError(t, err)
	require.False(t, found)

	rec := core.TastingRecord{AccountID: "alice", ItemID: "orval", FirstTasted: time.Now(), HasPhoto: true}
	require.NoError(t, s.PutTasting(ctx, rec))
	got, found, err := s.GetTasting(ctx, "alice", "orval")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.HasPhoto)
}

func TestProgressCompletedGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	done := achievement.Progress{AccountID: "alice", AchievementID: "ten", Progress: 10, Completed: true, CompletedAt: time.Now()}
	require.NoError(t, s.PutProgress(ctx, done))

	// attempting to un-complete is a programming error and must be refused
	regress := done
	regress.Completed = false
	require.Error(t, s.PutProgress(ctx, regress))

	m, err := s.GetProgress(ctx, "alice")
	require.NoError(t, err)
	require.True(t, m["ten"].Completed)
}
