package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cachedAdapter "brewduel/adapters/cached"
	fileAdapter "brewduel/adapters/jsonfile"
	mem "brewduel/adapters/memory"
	redisAdapter "brewduel/adapters/redis"
	sqlxAdapter "brewduel/adapters/sqlx"
	"brewduel/analytics"
	"brewduel/api/httpapi"
	"brewduel/brew"
	"brewduel/config"
	"brewduel/core"
	"brewduel/engine"
	"brewduel/integrations/webhook"
	"brewduel/leaderboard"
	"brewduel/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Hub           *realtime.Hub
	Board         leaderboard.Board
	Service       *engine.Service
	Handler       http.Handler
	Server        *http.Server
	MetricsServer *MetricsServer
}

// MetricsServer is a dedicated listener for the Prometheus endpoint, kept
// separate from the API server so scrapes bypass auth and rate limits.
type MetricsServer struct {
	*http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideBoard() leaderboard.Board {
	return leaderboard.NewSkipList()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	return setupStorage(ctx, cfg)
}

func provideService(cfg *config.Config, hub *realtime.Hub, board leaderboard.Board, storage engine.Storage) (*engine.Service, error) {
	svc := brew.New(
		brew.WithRealtime(hub),
		brew.WithStorage(storage),
		brew.WithLeaderboard(board),
		brew.WithKFactor(cfg.Engine.KFactor),
		brew.WithDispatchMode(engine.DispatchAsync),
	)
	if err := setupHooks(cfg, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func provideHandler(svc *engine.Service, hub *realtime.Hub, board leaderboard.Board, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Leaderboard:      board,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func provideMetricsServer(cfg *config.Config) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	return &MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

// metricsRegistry collects engine metrics for the standalone metrics listener.
var metricsRegistry = prometheus.NewRegistry()

// setupHooks attaches analytics and webhook observers to the event stream.
func setupHooks(cfg *config.Config, svc *engine.Service) error {
	var hooks []analytics.Hook

	if cfg.Metrics.Enabled {
		prom, err := analytics.NewPromHook(metricsRegistry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		hooks = append(hooks, prom)
	}
	if len(cfg.Webhooks.Endpoints) > 0 {
		hooks = append(hooks, webhook.New(cfg.Webhooks.Endpoints))
	}
	if len(hooks) == 0 {
		return nil
	}

	bridge := analytics.NewBridge(hooks...)
	svc.SubscribeAll(func(_ context.Context, e core.Event) { bridge.OnEvent(e) })
	return nil
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, error) {
	storage, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Engine.ItemCacheSize > 0 {
		cached, err := cachedAdapter.New(storage, cfg.Engine.ItemCacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return storage, nil
}

func openStorage(cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		store, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		store, err := fileAdapter.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
