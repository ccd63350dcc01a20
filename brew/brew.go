// Package brew is the batteries-included entry point for embedding the
// ranking engine in another application. It assembles an engine.Service
// with sensible defaults and optional collaborators.
package brew

import (
	"context"

	"brewduel/adapters/memory"
	"brewduel/core"
	"brewduel/engine"
	"brewduel/leaderboard"
	"brewduel/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	hub     *realtime.Hub
	board   leaderboard.Board
	k       float64
	extra   []engine.ServiceOption
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard attaches a rating leaderboard updated on every duel.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithKFactor overrides the Elo volatility constant.
func WithKFactor(k float64) Option { return func(c *config) { c.k = k } }

// WithServiceOptions forwards additional engine options to the service.
func WithServiceOptions(opts ...engine.ServiceOption) Option {
	return func(c *config) { c.extra = append(c.extra, opts...) }
}

// New builds a configured engine.Service. If not provided, defaults are used:
//   - storage: in-memory
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}

	svcOpts := cfg.extra
	if cfg.board != nil {
		svcOpts = append(svcOpts, engine.WithLeaderboard(cfg.board))
	}
	if cfg.k > 0 {
		svcOpts = append(svcOpts, engine.WithKFactor(cfg.k))
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewService(cfg.storage, bus, svcOpts...)
	if cfg.hub != nil {
		// Bridge the full event stream to realtime
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	return svc
}
