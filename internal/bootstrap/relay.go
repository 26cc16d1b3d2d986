package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/eleven-am/transcribe-relay/internal/archive"
	"github.com/eleven-am/transcribe-relay/internal/health"
	"github.com/eleven-am/transcribe-relay/internal/provider"
	"github.com/eleven-am/transcribe-relay/internal/provider/deepgram"
	"github.com/eleven-am/transcribe-relay/internal/provider/gemini"
	"github.com/eleven-am/transcribe-relay/internal/relay"
	"github.com/eleven-am/transcribe-relay/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideRegistry() *session.Registry {
	return session.NewRegistry()
}

// ProvideAdapter selects the upstream variant. A missing API key is a
// fatal startup condition, not a runtime error.
func ProvideAdapter(cfg *Config, log *slog.Logger) (provider.Adapter, error) {
	if cfg.ProviderAPIKey == "" {
		return nil, fmt.Errorf("missing provider API key (set PROVIDER_API_KEY)")
	}

	switch cfg.Provider {
	case "gemini":
		return gemini.New(log), nil
	case "deepgram":
		return deepgram.New(log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func ProvideHistoryStore(redisClient *redis.Client) *session.HistoryStore {
	return session.NewHistoryStore(redisClient)
}

func ProvideArchiveStore(db *gorm.DB) *archive.Store {
	if db == nil {
		return nil
	}
	return archive.NewStore(db)
}

func ProvideRelayConfig(cfg *Config) relay.Config {
	return relay.Config{
		Provider: provider.SessionConfig{
			APIKey:         cfg.ProviderAPIKey,
			Model:          cfg.ProviderModel,
			Language:       cfg.Language,
			SampleRate:     cfg.SampleRate,
			InterimResults: cfg.InterimResults,
		},
		Service:      cfg.Provider + "-transcription-relay",
		StartTimeout: cfg.StartTimeout,
	}
}

func ProvideRelayHandler(
	registry *session.Registry,
	adapter provider.Adapter,
	history *session.HistoryStore,
	archiveStore *archive.Store,
	relayCfg relay.Config,
	log *slog.Logger,
) *relay.Handler {
	return relay.NewHandler(registry, adapter, history, archiveStore, relayCfg, log)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, registry *session.Registry, cfg *Config) *health.Handler {
	return health.NewHandler(db, redisClient, registry, cfg.Provider+"-transcription-relay")
}

type RelayRouteParams struct {
	fx.In

	RelayHandler  *relay.Handler
	HealthHandler *health.Handler
	ArchiveStore  *archive.Store
	Logger        *slog.Logger
}

func RegisterRelayRoutes(e *echo.Echo, params RelayRouteParams) error {
	params.RelayHandler.RegisterRoutes(e)
	params.HealthHandler.RegisterRoutes(e)

	if params.ArchiveStore != nil {
		if err := params.ArchiveStore.Migrate(); err != nil {
			return fmt.Errorf("archive migrate: %w", err)
		}
		archive.NewHandler(params.ArchiveStore, params.Logger).RegisterRoutes(e.Group("/v1"))
	}
	return nil
}

var RelayModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRegistry,
		ProvideAdapter,
		ProvideHistoryStore,
		ProvideArchiveStore,
		ProvideRelayConfig,
		ProvideRelayHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRelayRoutes),
)
