package rarity

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"brewduel/core"
)

func TestScoreDeterministic(t *testing.T) {
	c := New()
	attrs := core.ItemAttributes{
		Name:    "Westvleteren 12",
		Brewery: "Sint-Sixtusabdij",
		Style:   "Quadrupel",
		ABV:     10.2,
		Country: "Belgium",
		Region:  "West Flanders",
	}
	first := c.Score(attrs)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, c.Score(attrs))
	}
	require.Equal(t, core.TierLegendary, c.Classify(attrs))
}

func TestScoreSignals(t *testing.T) {
	c := New()

	industrial := core.ItemAttributes{Name: "Macro Lager", Brewery: "Heineken", Style: "Lager", ABV: 5, Country: "Netherlands", HasImage: true}
	require.Equal(t, core.TierCommon, c.Classify(industrial))

	plain := core.ItemAttributes{Name: "House Ale", Brewery: "Local", Style: "amber ale", ABV: 5, Country: "Belgium", HasImage: true}
	require.Equal(t, core.TierRare, c.Classify(plain))

	craftStrong := core.ItemAttributes{Name: "Abbey Tripel", Brewery: "Local", Style: "Tripel", ABV: 8.5, Country: "Belgium", HasImage: true}
	require.Equal(t, core.TierEpic, c.Classify(craftStrong))

	premiumStrong := core.ItemAttributes{Name: "Oak Cellar Reserve", Brewery: "Local", Style: "Barrel Aged Imperial Stout", ABV: 12.5, Country: "Belgium", HasImage: true}
	require.Equal(t, core.TierLegendary, c.Classify(premiumStrong))
}

func TestScoreClamped(t *testing.T) {
	c := New()
	floor := core.ItemAttributes{Name: "Lite", Brewery: "Heineken", Style: "light pilsner", ABV: 2.5, Country: "Germany", HasImage: true}
	require.GreaterOrEqual(t, c.Score(floor), 0.0)
	ceiling := core.ItemAttributes{
		Name:    "Imperiale Grand Cru du Bois Sauvage",
		Brewery: "Abbaye",
		Style:   "barrel aged lambic grand cru",
		ABV:     13,
		Country: "Japan",
		Region:  "Hokkaido",
	}
	require.LessOrEqual(t, c.Score(ceiling), 100.0)
}

func TestColdStartDraw(t *testing.T) {
	// Injected rolls land in each weight band: 30/40/25/5.
	rolls := []float64{0.10, 0.50, 0.80, 0.97}
	want := []core.Tier{core.TierCommon, core.TierRare, core.TierEpic, core.TierLegendary}
	for i, roll := range rolls {
		r := roll
		c := New(WithRand(func() float64 { return r }))
		require.Equal(t, want[i], c.Classify(core.ItemAttributes{Name: "???"}), "roll %v", roll)
	}
}

func TestColdStartDistribution(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	c := New(WithRand(rng.Float64))
	counts := map[core.Tier]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[c.Classify(core.ItemAttributes{})]++
	}
	require.InDelta(t, 30, float64(counts[core.TierCommon])*100/n, 2)
	require.InDelta(t, 40, float64(counts[core.TierRare])*100/n, 2)
	require.InDelta(t, 25, float64(counts[core.TierEpic])*100/n, 2)
	require.InDelta(t, 5, float64(counts[core.TierLegendary])*100/n, 2)
}

// syntheticPopulation mimics a real catalog mix: a fat tail of industrial
// and generic beers, a broad middle of ordinary and craft ales, and thin
// slices of strong and cellar-reserve styles.
func syntheticPopulation(rng *rand.Rand, n int) []core.ItemAttributes {
	out := make([]core.ItemAttributes, 0, n)
	for i := 0; i < n; i++ {
		roll := rng.Float64()
		var a core.ItemAttributes
		switch {
		case roll < 0.20:
			a = core.ItemAttributes{Name: "Macro", Brewery: "Carlsberg", Style: "lager", ABV: 4.5 + rng.Float64(), Country: "Germany", HasImage: true}
		case roll < 0.35:
			a = core.ItemAttributes{Name: "Shandy", Brewery: "Brasserie", Style: "radler", ABV: 2.0 + rng.Float64(), Country: "France", HasImage: true}
		case roll < 0.60:
			a = core.ItemAttributes{Name: "House Amber", Brewery: "Brasserie", Style: "amber ale", ABV: 5 + rng.Float64(), Country: "France", HasImage: true}
		case roll < 0.75:
			a = core.ItemAttributes{Name: "Hop Harvest", Brewery: "Taproom", Style: "ipa", ABV: 5.5 + rng.Float64(), Country: "Belgium", HasImage: true}
		case roll < 0.87:
			a = core.ItemAttributes{Name: "Abbey Reserve", Brewery: "Abbaye", Style: "tripel", ABV: 8 + rng.Float64(), Country: "Belgium", HasImage: true}
		case roll < 0.95:
			a = core.ItemAttributes{Name: "Cellar Quad", Brewery: "Abbaye", Style: "quadrupel", ABV: 8 + rng.Float64()*0.8, Country: "Belgium", HasImage: true}
		default:
			a = core.ItemAttributes{Name: "Cellar Grand Cru", Brewery: "Abbaye", Style: "barrel aged quadrupel", ABV: 10.5 + rng.Float64(), Country: "Belgium", HasImage: true}
		}
		a.Name = fmt.Sprintf("%s %d", a.Name, i)
		out = append(out, a)
	}
	return out
}

func TestPopulationDistributionNearTarget(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	c := New()
	pop := syntheticPopulation(rng, 10000)
	tiers := make([]core.Tier, len(pop))
	for i, a := range pop {
		tiers[i] = c.Classify(a)
	}
	dist := Distribution(tiers)
	require.InDelta(t, 35, dist[core.TierCommon], 5)
	require.InDelta(t, 40, dist[core.TierRare], 5)
	require.InDelta(t, 20, dist[core.TierEpic], 5)
	require.InDelta(t, 5, dist[core.TierLegendary], 5)
}

func TestRebalanceIdempotent(t *testing.T) {
	c := New()
	items := []core.RatedItem{
		{ID: "a", Attributes: core.ItemAttributes{Name: "Macro", Brewery: "Heineken", Style: "lager", ABV: 5, Country: "Netherlands", HasImage: true}, Tier: core.TierEpic},
		{ID: "b", Attributes: core.ItemAttributes{Name: "Quad", Brewery: "Abbaye", Style: "quadrupel", ABV: 11, Country: "Belgium", HasImage: true}, Tier: core.TierCommon},
	}
	first := c.Rebalance(items)
	// apply and run again: nothing may drift
	for i, a := range first {
		items[i].Tier = a.Tier
	}
	second := c.Rebalance(items)
	for i := range second {
		require.Equal(t, first[i].Tier, second[i].Tier)
		require.False(t, second[i].Changed)
	}
}

func TestRebalanceColdKeepsTier(t *testing.T) {
	// Every draw lands in a different band, so any re-roll would move the
	// tier. A cold item that already holds one must not be drawn again.
	rolls := []float64{0.10, 0.50, 0.80, 0.97}
	i := 0
	c := New(WithRand(func() float64 {
		r := rolls[i%len(rolls)]
		i++
		return r
	}))

	items := []core.RatedItem{
		{ID: "known-cold", Attributes: core.ItemAttributes{Name: "???"}, Tier: core.TierEpic},
		{ID: "new-cold", Attributes: core.ItemAttributes{Name: "???"}},
	}
	first := c.Rebalance(items)

	require.True(t, first[0].Skipped)
	require.Equal(t, core.TierEpic, first[0].Tier)

	// the unassigned cold item gets the first-assignment draw
	require.False(t, first[1].Skipped)
	require.True(t, first[1].Changed)
	require.Equal(t, core.TierCommon, first[1].Tier)

	// apply and re-run: the fresh assignment now sticks too
	for idx, a := range first {
		items[idx].Tier = a.Tier
	}
	second := c.Rebalance(items)
	for idx := range second {
		require.True(t, second[idx].Skipped)
		require.Equal(t, first[idx].Tier, second[idx].Tier)
	}
}

func TestRebalancePreservesOverride(t *testing.T) {
	c := New()
	items := []core.RatedItem{
		{ID: "locked", Attributes: core.ItemAttributes{Name: "Macro", Brewery: "Heineken", Style: "lager", ABV: 5, HasImage: true}, Tier: core.TierLegendary, TierLocked: true},
	}
	out := c.Rebalance(items)
	require.True(t, out[0].Skipped)
	require.Equal(t, core.TierLegendary, out[0].Tier)
}

func TestDistributionEmpty(t *testing.T) {
	require.Empty(t, Distribution(nil))
}
