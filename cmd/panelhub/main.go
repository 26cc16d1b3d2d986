// panelhub is the UI-side companion process: it holds the single upstream
// relay socket and fans transcription events out to any number of panel
// surfaces over SSE.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/eleven-am/transcribe-relay/internal/hub"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

type config struct {
	ListenAddr string
	RelayURL   string
}

func loadConfig() *config {
	return &config{
		ListenAddr: getEnv("HUB_ADDR", ":3100"),
		RelayURL:   getEnv("RELAY_URL", "ws://localhost:3000/ws"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func provideLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func provideHub(cfg *config, log *slog.Logger) *hub.Hub {
	return hub.New(hub.Config{RelayURL: cfg.RelayURL}, log)
}

func provideEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	return e
}

func start(lc fx.Lifecycle, e *echo.Echo, h *hub.Hub, cfg *config, log *slog.Logger) {
	hub.NewHandler(h, log).RegisterRoutes(e)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			h.Connect()
			go func() {
				if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = h.Close()
			return e.Shutdown(ctx)
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			loadConfig,
			provideLogger,
			provideHub,
			provideEcho,
		),
		fx.Invoke(start),
	).Run()
}
