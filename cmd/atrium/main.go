package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atriumhq/atrium/internal/console"
	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/platform/config"
	"github.com/atriumhq/atrium/internal/platform/database"
	"github.com/atriumhq/atrium/internal/platform/server"
	"github.com/atriumhq/atrium/internal/platform/telemetry"
	"github.com/atriumhq/atrium/internal/session"
	"github.com/atriumhq/atrium/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("atrium starting", "version", "0.1.0", "port", cfg.Server.Port)

	if cfg.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signingkey is required")
	}

	ctx := context.Background()

	// Directory and session store: Postgres when configured, otherwise
	// the in-memory seed (demo mode).
	var dir directory.Directory
	var store session.Store
	var pool *database.Pool

	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		pool = p
		defer pool.Close()

		if err := database.Migrate(ctx, pool, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("migrations complete")

		dir = directory.NewStore(pool)
		store = session.NewPGStore(pool)
	} else {
		slog.Warn("no database configured, serving seed data")
		dir = directory.NewSeed()
		store = session.NewMemoryStore()
	}

	// The identity provider is mocked: it resolves any known tenant and
	// role combination to a demo identity.
	tenants, err := dir.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("loading tenant catalog: %w", err)
	}
	tenantIDs := make([]string, len(tenants))
	for i, t := range tenants {
		tenantIDs[i] = t.ID
	}
	provider := session.NewMockProvider(tenantIDs...)

	registry := console.NewRegistry(provider, dir, store)
	tokens := console.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.ExpiryHours)
	consoleHandler := console.NewHandler(registry, tokens)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		ConsoleHandler:     consoleHandler,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	if cfg.Catalog.RefreshIntervalSecs > 0 {
		interval := time.Duration(cfg.Catalog.RefreshIntervalSecs) * time.Second
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					registry.RefreshAll(ctx)
				}
			}
		})
		slog.Info("catalog refresher started", "interval", interval)
	}

	slog.Info("server ready", "addr", addr, "tenants", len(tenants))
	return g.Wait()
}
