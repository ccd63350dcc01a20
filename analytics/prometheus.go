package analytics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"brewduel/core"
)

const metricsNamespace = "brewduel"

// PromHook exports domain events as Prometheus metrics.
type PromHook struct {
	eventsTotal    *prometheus.CounterVec
	xpGrantedTotal prometheus.Counter
	duelsTotal     prometheus.Counter
	unlocksTotal   *prometheus.CounterVec
	tierItems      *prometheus.GaugeVec

	mu    sync.Mutex
	tiers map[core.ItemID]core.Tier
}

// NewPromHook creates the hook and registers its collectors with reg.
func NewPromHook(reg prometheus.Registerer) (*PromHook, error) {
	h := &PromHook{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Total number of domain events by type",
			},
			[]string{"type"},
		),
		xpGrantedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "xp_granted_total",
				Help:      "Total XP granted across all accounts",
			},
		),
		duelsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "duels_total",
				Help:      "Total number of resolved duels",
			},
		),
		unlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "achievement_unlocks_total",
				Help:      "Total achievement unlocks by achievement id",
			},
			[]string{"achievement"},
		),
		tierItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "tier_items",
				Help:      "Current number of catalog items per tier",
			},
			[]string{"tier"},
		),
		tiers: map[core.ItemID]core.Tier{},
	}

	for _, c := range []prometheus.Collector{
		h.eventsTotal, h.xpGrantedTotal, h.duelsTotal, h.unlocksTotal, h.tierItems,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *PromHook) OnEvent(e core.Event) {
	h.eventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case core.EventXPGranted:
		if e.XP > 0 {
			h.xpGrantedTotal.Add(float64(e.XP))
		}
	case core.EventDuelResolved:
		h.duelsTotal.Inc()
	case core.EventAchievementUnlocked:
		h.unlocksTotal.WithLabelValues(e.Achievement).Inc()
	case core.EventTierAssigned:
		h.mu.Lock()
		prev, had := h.tiers[e.Item]
		h.tiers[e.Item] = e.Tier
		h.mu.Unlock()
		if had && prev != e.Tier {
			h.tierItems.WithLabelValues(string(prev)).Dec()
		}
		if !had || prev != e.Tier {
			h.tierItems.WithLabelValues(string(e.Tier)).Inc()
		}
	}
}
