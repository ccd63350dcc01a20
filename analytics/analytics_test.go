package analytics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewduel/core"
)

func TestDAU(t *testing.T) {
	dau := NewDAU()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	dau.OnEvent(core.Event{Type: core.EventXPGranted, Account: "alice", Time: now})
	dau.OnEvent(core.Event{Type: core.EventTastingRecorded, Account: "alice", Time: now})
	dau.OnEvent(core.Event{Type: core.EventXPGranted, Account: "bob", Time: now})
	// Item-only events carry no account and must not count.
	dau.OnEvent(core.Event{Type: core.EventDuelResolved, Item: "orval", Time: now})

	assert.Equal(t, 2, dau.Count("2026-05-01"))
	assert.Equal(t, 0, dau.Count("2026-05-02"))
}

func TestXPTotals(t *testing.T) {
	xp := NewXPTotals()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	xp.OnEvent(core.Event{Type: core.EventXPGranted, Account: "alice", XP: 30, Time: now})
	xp.OnEvent(core.Event{Type: core.EventXPGranted, Account: "bob", XP: 5, Time: now})
	xp.OnEvent(core.Event{Type: core.EventXPGranted, Account: "bob", XP: 10, Time: now.Add(24 * time.Hour)})
	// Non-grant events are ignored.
	xp.OnEvent(core.Event{Type: core.EventLevelUp, Account: "bob", Level: 2, Time: now})

	assert.Equal(t, int64(35), xp.Day("2026-05-01"))
	assert.Equal(t, int64(10), xp.Day("2026-05-02"))
	assert.Equal(t, int64(45), xp.Total())
}

func TestTierDistribution(t *testing.T) {
	td := NewTierDistribution()
	now := time.Now().UTC()

	tiers := []core.Tier{
		core.TierCommon, core.TierCommon, core.TierCommon, core.TierCommon,
		core.TierRare, core.TierRare, core.TierRare, core.TierRare,
		core.TierEpic, core.TierLegendary,
	}
	for i, tier := range tiers {
		td.OnEvent(core.Event{
			Type: core.EventTierAssigned,
			Item: core.ItemID(rune('a' + i)),
			Tier: tier,
			Time: now,
		})
	}

	shares := td.Shares()
	assert.InDelta(t, 40.0, shares[core.TierCommon], 0.01)
	assert.InDelta(t, 40.0, shares[core.TierRare], 0.01)
	assert.InDelta(t, 10.0, shares[core.TierEpic], 0.01)
	assert.InDelta(t, 10.0, shares[core.TierLegendary], 0.01)

	// Worst deviation: epic at 10 vs target 20.
	assert.InDelta(t, 10.0, td.Drift(), 0.01)

	// Reassignment replaces, not accumulates.
	td.OnEvent(core.Event{Type: core.EventTierAssigned, Item: "a", Tier: core.TierEpic, Time: now})
	shares = td.Shares()
	assert.InDelta(t, 30.0, shares[core.TierCommon], 0.01)
	assert.InDelta(t, 20.0, shares[core.TierEpic], 0.01)
}

func TestUnlockCounts(t *testing.T) {
	uc := NewUnlockCounts()
	now := time.Now().UTC()

	uc.OnEvent(core.Event{Type: core.EventAchievementUnlocked, Account: "alice", Achievement: "first_sip", Time: now})
	uc.OnEvent(core.Event{Type: core.EventAchievementUnlocked, Account: "bob", Achievement: "first_sip", Time: now})
	uc.OnEvent(core.Event{Type: core.EventAchievementUnlocked, Account: "bob", Achievement: "duelist", Time: now})

	assert.Equal(t, int64(2), uc.Count("first_sip"))
	assert.Equal(t, int64(1), uc.Count("duelist"))
	assert.Equal(t, int64(0), uc.Count("unicorn_hunter"))
}

func TestBridgeFansOut(t *testing.T) {
	dau := NewDAU()
	xp := NewXPTotals()
	bridge := NewBridge(dau, xp)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	bridge.OnEvent(core.Event{Type: core.EventXPGranted, Account: "alice", XP: 30, Time: now})

	assert.Equal(t, 1, dau.Count("2026-05-01"))
	assert.Equal(t, int64(30), xp.Total())
}

func TestPromHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPromHook(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	hook.OnEvent(core.Event{Type: core.EventXPGranted, Account: "alice", XP: 30, Time: now})
	hook.OnEvent(core.Event{Type: core.EventDuelResolved, Item: "orval", Opponent: "chimay", Time: now})
	hook.OnEvent(core.Event{Type: core.EventTierAssigned, Item: "orval", Tier: core.TierRare, Time: now})
	hook.OnEvent(core.Event{Type: core.EventTierAssigned, Item: "orval", Tier: core.TierLegendary, Time: now})
	hook.OnEvent(core.Event{Type: core.EventAchievementUnlocked, Account: "alice", Achievement: "first_sip", Time: now})

	assert.Equal(t, float64(30), testutil.ToFloat64(hook.xpGrantedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.duelsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.unlocksTotal.WithLabelValues("first_sip")))
	// Reassignment moved the item between tier gauges.
	assert.Equal(t, float64(0), testutil.ToFloat64(hook.tierItems.WithLabelValues("rare")))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.tierItems.WithLabelValues("legendary")))
}
