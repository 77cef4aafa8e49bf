// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/daylog/internal/bot"
	"github.com/starford/daylog/internal/form"
	"github.com/starford/daylog/internal/i18n"
	"github.com/starford/daylog/internal/menu"
	"github.com/starford/daylog/internal/plugin"
	"github.com/starford/daylog/internal/reminder"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

// sweepInterval bounds how long an abandoned wizard session can outlive
// its TTL before removal.
const sweepInterval = time.Hour

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("locales_path", cfg.Locales.Path),
		slog.String("default_lang", cfg.Locales.Default),
		slog.String("health_address", cfg.App.Health.Address()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Persistence.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// Localization.
	bundle, err := i18n.Load(cfg.Locales.Path, cfg.Locales.Default)
	if err != nil {
		return fmt.Errorf("init locales: %w", err)
	}

	// Transport.
	tg, err := transport.NewTelegram(cfg.Telegram.Token, cfg.Telegram.PollDuration(), logger)
	if err != nil {
		return fmt.Errorf("init telegram: %w", err)
	}

	// Core components.
	registry := menu.NewRegistry(bundle, logger)
	engine := form.NewEngine(db, bundle, logger)
	cronEngine := reminder.NewCronEngine()
	sched := reminder.NewScheduler(db, cronEngine, tg, bundle, logger,
		reminder.WithDefaults(cfg.Reminder.Timezone, cfg.Locales.Default))

	plugins := plugin.New(db, bundle, logger, registry, engine, sched, plugin.Options{
		AdminIDs:    cfg.Admin.IDs,
		DefaultLang: cfg.Locales.Default,
		DefaultTZ:   cfg.Reminder.Timezone,
	})
	registry.SetResolver(plugins)

	dispatcher := bot.NewDispatcher(logger)
	plugins.Mount(dispatcher)

	// Re-register reminder jobs persisted before the last restart.
	if err := sched.Restore(); err != nil {
		logger.Warn("reminder restore failed", slog.String("error", err.Error()))
	}

	// Health endpoints.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{
		Addr:    cfg.App.Health.Address(),
		Handler: r,
	}

	logger.Info("Bot starting...")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	// Locale hot-reload; a reloaded language drops its cached menus.
	g.Go(func() error {
		return bundle.Watch(gCtx, logger, func(lang string) {
			registry.Invalidate(lang)
		})
	})

	// Telegram long polling.
	g.Go(func() error {
		return tg.Run(gCtx)
	})

	// The single event loop.
	g.Go(func() error {
		return dispatcher.Run(gCtx, tg.Events())
	})

	// Reminder cron.
	g.Go(func() error {
		return cronEngine.Run(gCtx)
	})

	// Abandoned-session sweeper.
	g.Go(func() error {
		return engine.RunSweeper(gCtx, sweepInterval)
	})

	// Health server.
	g.Go(func() error {
		logger.Info("Starting health server", slog.String("address", cfg.App.Health.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		return waitForShutdown(gCtx, quit, httpServer, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Bot stopped successfully")
	return nil
}

// waitForShutdown blocks until a signal arrives or the group context ends,
// drains the health server, then cancels the run context so the polling
// goroutines exit as well.
func waitForShutdown(ctx context.Context, quit <-chan os.Signal, srv *http.Server, stop context.CancelFunc, logger *slog.Logger) error {
	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", slog.String("error", err.Error()))
	}

	stop()
	return nil
}
