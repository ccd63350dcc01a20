package analytics

import (
	"sync"
	"time"

	"brewduel/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active accounts.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.AccountID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.AccountID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	if e.Account == "" {
		return
	}
	day := e.Time.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.AccountID]struct{}{}
		d.days[day] = m
	}
	m[e.Account] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// XPTotals aggregates granted XP per day and overall.
type XPTotals struct {
	mu    sync.Mutex
	byDay map[string]int64
	total int64
}

func NewXPTotals() *XPTotals { return &XPTotals{byDay: map[string]int64{}} }

func (x *XPTotals) OnEvent(e core.Event) {
	if e.Type != core.EventXPGranted || e.XP <= 0 {
		return
	}
	day := e.Time.UTC().Format("2006-01-02")
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byDay[day] += e.XP
	x.total += e.XP
}

func (x *XPTotals) Day(day string) int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.byDay[day]
}

func (x *XPTotals) Total() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.total
}

// TargetShares is the tier mix the classifier aims the catalog at, as
// percentages.
var TargetShares = map[core.Tier]float64{
	core.TierCommon:    35,
	core.TierRare:      40,
	core.TierEpic:      20,
	core.TierLegendary: 5,
}

// TierDistribution watches tier assignments and reports how far the observed
// catalog mix drifts from the target shares.
type TierDistribution struct {
	mu      sync.Mutex
	current map[core.ItemID]core.Tier
}

func NewTierDistribution() *TierDistribution {
	return &TierDistribution{current: map[core.ItemID]core.Tier{}}
}

func (td *TierDistribution) OnEvent(e core.Event) {
	if e.Type != core.EventTierAssigned || e.Item == "" {
		return
	}
	td.mu.Lock()
	defer td.mu.Unlock()
	td.current[e.Item] = e.Tier
}

// Shares returns the observed tier percentages.
func (td *TierDistribution) Shares() map[core.Tier]float64 {
	td.mu.Lock()
	defer td.mu.Unlock()
	out := map[core.Tier]float64{}
	if len(td.current) == 0 {
		return out
	}
	counts := map[core.Tier]int{}
	for _, tier := range td.current {
		counts[tier]++
	}
	for tier, n := range counts {
		out[tier] = float64(n) / float64(len(td.current)) * 100
	}
	return out
}

// Drift returns the largest absolute percentage-point deviation from the
// target shares.
func (td *TierDistribution) Drift() float64 {
	shares := td.Shares()
	var worst float64
	for _, tier := range core.Tiers() {
		d := shares[tier] - TargetShares[tier]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// UnlockCounts aggregates achievement unlocks per achievement id.
type UnlockCounts struct {
	mu     sync.Mutex
	byID   map[string]int64
	byDay  map[string]int64
	firstT map[string]time.Time
}

func NewUnlockCounts() *UnlockCounts {
	return &UnlockCounts{byID: map[string]int64{}, byDay: map[string]int64{}, firstT: map[string]time.Time{}}
}

func (u *UnlockCounts) OnEvent(e core.Event) {
	if e.Type != core.EventAchievementUnlocked || e.Achievement == "" {
		return
	}
	day := e.Time.UTC().Format("2006-01-02")
	u.mu.Lock()
	defer u.mu.Unlock()
	u.byID[e.Achievement]++
	u.byDay[day]++
	if _, ok := u.firstT[e.Achievement]; !ok {
		u.firstT[e.Achievement] = e.Time
	}
}

func (u *UnlockCounts) Count(id string) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.byID[id]
}
