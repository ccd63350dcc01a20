package rarity

import "brewduel/core"

// Assignment is one item's tier outcome from a rebalance pass.
type Assignment struct {
	ItemID  core.ItemID
	Tier    core.Tier
	Changed bool
	Skipped bool
}

// Rebalance re-derives every item's tier from its current attributes. The
// pass is idempotent: it never reads the item's previous tier into the
// score, so repeated or resumed partial runs converge to the same result
// for unchanged inputs. Items with a locked (admin-overridden) tier are
// skipped and reported as such. Cold items that already hold a tier are
// also skipped: the weighted draw is a first-assignment fallback, not a
// signal, so re-rolling it here would churn tiers between runs.
func (c *Classifier) Rebalance(items []core.RatedItem) []Assignment {
	out := make([]Assignment, 0, len(items))
	for _, it := range items {
		if it.TierLocked {
			out = append(out, Assignment{ItemID: it.ID, Tier: it.Tier, Skipped: true})
			continue
		}
		if it.Attributes.Cold() && it.Tier != core.TierUnset {
			out = append(out, Assignment{ItemID: it.ID, Tier: it.Tier, Skipped: true})
			continue
		}
		tier := c.Classify(it.Attributes)
		out = append(out, Assignment{
			ItemID:  it.ID,
			Tier:    tier,
			Changed: tier != it.Tier,
		})
	}
	return out
}

// Distribution tallies tiers across a population, as percentages summing to
// ~100. Used to monitor drift from the 35/40/20/5 target.
func Distribution(tiers []core.Tier) map[core.Tier]float64 {
	if len(tiers) == 0 {
		return map[core.Tier]float64{}
	}
	counts := map[core.Tier]int{}
	for _, t := range tiers {
		counts[t]++
	}
	out := make(map[core.Tier]float64, len(counts))
	for t, n := range counts {
		out[t] = float64(n) * 100 / float64(len(tiers))
	}
	return out
}
