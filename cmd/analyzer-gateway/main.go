package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/analyzer"
	"github.com/Gl0balRak/textanalyzer-gateway/api"
	"github.com/Gl0balRak/textanalyzer-gateway/api/handler"
	"github.com/Gl0balRak/textanalyzer-gateway/auth"
	"github.com/Gl0balRak/textanalyzer-gateway/cache"
	"github.com/Gl0balRak/textanalyzer-gateway/config"
	"github.com/Gl0balRak/textanalyzer-gateway/pipeline"
	"github.com/Gl0balRak/textanalyzer-gateway/progress"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("analyzer-gateway starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"backend", cfg.Backend.AnalyzerURL,
	)

	// ── 3. Initialise backend client ────────────────────────────────
	client := analyzer.NewClient(cfg.Backend.AnalyzerURL, &http.Client{
		Timeout: cfg.Backend.RequestTimeout,
	})
	backend := pipeline.NewBackend(client)

	// ── 3b. Single-page analysis cache ──────────────────────────────
	singleCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)

	// ── 4. Token verification ───────────────────────────────────────
	var authenticator auth.Authenticator
	if cfg.Auth.Enabled {
		authenticator = auth.NewHTTPAuthenticator(cfg.Auth.ServiceURL, nil, cfg.Auth.CacheTTL)
		slog.Info("token verification enabled", "auth_url", cfg.Auth.ServiceURL)
	}

	// ── 5. Session store: one coordinator per client workspace ──────
	stageCfg := pipeline.Config{
		Progress: progress.Config{
			TickInterval:     cfg.Progress.TickInterval,
			MaxIncrement:     cfg.Progress.MaxIncrement,
			Hold:             cfg.Progress.Hold,
			CompleteStep:     cfg.Progress.CompleteStep,
			CompleteInterval: cfg.Progress.CompleteInterval,
		},
		StallTimeout: cfg.Pipeline.StallTimeout,
	}
	sessions := handler.NewSessionStore(func() *pipeline.Coordinator {
		return pipeline.NewCoordinator(backend, stageCfg, singleCache)
	}, cfg.Session.IdleTTL)

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(handler.NewAPI(sessions), authenticator, cfg)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("analyzer-gateway stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
