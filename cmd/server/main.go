package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/njhostel/mysterynight/internal/config"
	"github.com/njhostel/mysterynight/internal/database"
	"github.com/njhostel/mysterynight/internal/handler/health"
	"github.com/njhostel/mysterynight/internal/identity"
	"github.com/njhostel/mysterynight/internal/metrics"
	"github.com/njhostel/mysterynight/internal/migrations"
	"github.com/njhostel/mysterynight/internal/server"
	"github.com/njhostel/mysterynight/internal/variant"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	v, err := loadVariant(cfg)
	if err != nil {
		return fmt.Errorf("loading variant: %w", err)
	}
	logger.Info("loaded variant", "name", v.Name, "users", v.MaxUserID()+1)

	// --- Database ---
	db, err := database.Connect(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.DBDriver, err)
	}
	defer db.Close()

	if err := migrations.Run(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)

	checks := map[string]health.Checker{
		cfg.DBDriver: health.DB(db),
	}
	var ids identity.Resolver = identity.NewStore(db, cfg.DBDriver, v.ClueLinks)

	// --- Redis (optional) ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		checks["redis"] = health.Redis(rdb)
		ids = identity.NewCachedStore(ids, identity.NewRedisCache(rdb, "mysterynight:"+v.Name+":"), cfg.CacheTTL, logger)
	}

	m := metrics.New(cfg.MetricsNamespace)
	broker := server.NewBroker()
	sessions := server.NewRegistry(server.RegistryConfig{
		Variant:      v,
		OverlayDelay: cfg.OverlayDelay,
		IdleTimeout:  cfg.SessionIdleTimeout,
		Logger:       logger,
		Broker:       broker,
		Metrics:      m,
	})

	admin := server.NewAdminAuth(cfg.AdminEmail, cfg.AdminPasswordHash)
	if !admin.Enabled() {
		logger.Warn("admin login disabled: ADMIN_EMAIL and ADMIN_PASSWORD_HASH not set")
	}

	// --- HTTP Server ---
	srv := server.New(server.Options{
		Addr:       cfg.HTTPAddr,
		Logger:     logger,
		Sessions:   sessions,
		Broker:     broker,
		Identities: ids,
		Admin:      admin,
		Metrics:    m,
		Health:     checks,
		SPADir:     cfg.SPADir,
		PublicURL:  cfg.PublicURL,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func loadVariant(cfg *config.Config) (*variant.Variant, error) {
	if cfg.VariantFile != "" {
		return variant.LoadFile(cfg.VariantFile)
	}
	return variant.Load(cfg.Variant)
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
