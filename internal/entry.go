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

	"github.com/starford/memos/internal/api"
	"github.com/starford/memos/internal/mcpserver"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/render"
	"github.com/starford/memos/internal/metrics"
	"github.com/starford/memos/internal/sse"
	"github.com/starford/memos/internal/store"
	"github.com/starford/memos/internal/vault"
)

// core holds the components shared by the HTTP and MCP entrypoints.
type core struct {
	cfg     *Config
	logger  *slog.Logger
	db      *store.DB
	metrics *metrics.Metrics
	svc     *memoservice.Service
	mirror  *vault.Mirror
	version string
}

func setup(opts []Option) (*core, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("vault_mirror", cfg.Vault.Mirror),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	m := metrics.New()
	svc := memoservice.New(db,
		memoservice.WithConfig(cfg.Service()),
		memoservice.WithMetrics(m),
		memoservice.WithRenderer(render.New(render.WithLogger(logger))),
	)
	c := &core{cfg: cfg, logger: logger, db: db, metrics: m, svc: svc, version: app.version}

	if cfg.Vault.Mirror {
		fs, err := vault.NewFS(cfg.Vault.Path)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init vault: %w", err)
		}
		c.mirror = vault.NewMirror(fs, db, svc, logger, m)
		svc.OnChange(c.mirror.HandleEvent)
	}
	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	c, err := setup(opts)
	if err != nil {
		return err
	}
	defer c.db.Close()

	cfg, logger := c.cfg, c.logger

	// Run initial sync.
	if c.mirror != nil {
		if err := c.mirror.Sync(ctx); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	// SSE broker.
	broker := sse.New(sse.WithLinksThrottle(2*time.Second), sse.WithHeartbeat(15*time.Second))
	defer broker.Close()
	c.svc.OnChange(func(ev memoservice.Event) {
		change := sse.MemoChange{ID: ev.ID}
		if ev.Memo != nil {
			change.Checksum = ev.Memo.Checksum
		}
		broker.PublishMemo(string(ev.Kind), change)
	})
	c.metrics.RegisterGaugeFunc("memos_sse_clients", "Number of connected SSE clients", func() float64 {
		return float64(broker.ClientCount())
	})

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher.
	if c.mirror != nil {
		g.Go(func() error {
			if err := c.mirror.Watch(gCtx); err != nil {
				logger.Error("vault watcher failed", slog.String("error", err.Error()))
			}
			return nil
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Closing the broker ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

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

// RunMCP serves the MCP tools over stdio until the client disconnects.
// Memo changes made through the tools still reach the vault mirror.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := setup(append(opts, WithLogOutput(os.Stderr)))
	if err != nil {
		return err
	}
	defer c.db.Close()

	if c.mirror != nil {
		if err := c.mirror.Sync(ctx); err != nil {
			c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	c.logger.Info("MCP server starting")
	if err := mcpserver.New(c.svc, c.version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
