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

	"github.com/norandom/blogd/internal/api"
	"github.com/norandom/blogd/internal/ingest"
	"github.com/norandom/blogd/internal/logging"
	"github.com/norandom/blogd/internal/mcpserver"
	"github.com/norandom/blogd/internal/parser"
	"github.com/norandom/blogd/internal/postservice"
	"github.com/norandom/blogd/internal/ratelimit"
	"github.com/norandom/blogd/internal/sse"
	"github.com/norandom/blogd/internal/storage"
)

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

	// Initialize the structured logger. In MCP mode stdout carries the
	// JSON-RPC stream, so logs go to stderr instead.
	logger := app.logger
	closeLog := func() error { return nil }
	if logger == nil {
		if app.mcpMode {
			logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.App.LogLevel,
			}))
		} else {
			var err error
			logger, closeLog, err = logging.New(cfg.App.LogLevel, cfg.App.Log)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
		}
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Content.Path),
		slog.String("default_tenant", cfg.Content.DefaultTenant),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the content directory exists.
	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}

	// Initialize storage.
	provider, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Build the ingestion pipeline.
	pipeline := ingest.New(provider, ingest.Config{
		Parser: parser.Options{
			DefaultTenant: cfg.Content.DefaultTenant,
			Tenants:       cfg.Content.Tenants,
			ExcerptLength: cfg.Content.ExcerptLength,
		},
		AttachmentExts: cfg.Content.AttachmentExtensions,
		Workers:        cfg.Ingest.Workers,
		Logger:         logger.With(slog.String("component", "ingest")),
	})

	// SSE broker. The MCP surface has no event stream, so the service gets
	// a nil broker there and Publish becomes a no-op.
	var broker *sse.Broker
	if !app.mcpMode {
		broker = sse.NewBroker()
		defer broker.Close()
	}

	svc := postservice.NewService(pipeline, broker, logger.With(slog.String("component", "postservice")), postservice.Config{
		DefaultTenant:  cfg.Content.DefaultTenant,
		Tenants:        cfg.Content.Tenants,
		MinQueryLength: cfg.Search.MinQueryLength,
		MaxResults:     cfg.Search.MaxResults,
		SuggestLimit:   cfg.Search.SuggestLimit,
		CacheTTL:       cfg.Cache.TTL,
		CacheEnabled:   cfg.Cache.Enabled,
	})

	// Run the initial scan. A failure is not fatal: the server comes up
	// unready and the watcher or a refresh call can recover it later.
	if res, err := svc.Refresh(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial scan complete",
			slog.Int("posts", res.Posts),
			slog.Int("errors", res.Errors),
			slog.String("checksum", res.Checksum))
	}

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc).ServeStdio()
	}

	// Per-client rate limiter, when enabled.
	var limiter ratelimit.Limiter
	rlCfg := cfg.RateLimit.limiterConfig()
	if rlCfg.Enabled {
		mem := ratelimit.NewMemoryLimiter(rlCfg)
		defer mem.Stop()
		limiter = mem
	}

	apiRouter := api.NewRouter(svc, provider, broker, limiter, rlCfg)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"empty"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api/v1.
	r.Mount("/api/v1", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the content directory and rebuild on change bursts. A watcher
	// failure degrades to manual refreshes rather than taking the app down.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := ingest.Watch(gCtx, cfg.Content.Path, cfg.Watch.Debounce, logger, func(ctx context.Context) {
				if _, err := svc.Refresh(ctx); err != nil {
					logger.Error("watch refresh failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Periodic full rescan, as a safety net for missed filesystem events.
	if cfg.Refresh.Interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Refresh.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if _, err := svc.Refresh(gCtx); err != nil {
						logger.Error("periodic refresh failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
