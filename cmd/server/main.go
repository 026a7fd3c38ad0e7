// Command server runs the ranking hub HTTP service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/camr-club/ranking-hub/config"
	"github.com/camr-club/ranking-hub/internal/application/command"
	"github.com/camr-club/ranking-hub/internal/application/query"
	"github.com/camr-club/ranking-hub/internal/infrastructure/cache"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/kv"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/postgres"
	httpiface "github.com/camr-club/ranking-hub/internal/interface/http"
	"github.com/camr-club/ranking-hub/pkg/logger"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Default().Fatal("failed to load configuration", logger.Err(err))
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.App.LogLevel),
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("app", cfg.App.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited with error", logger.Err(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// Durable store.
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.RunMigrations {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	// Optional external cache layer.
	kvClient, err := buildKVClient(ctx, cfg, log)
	if err != nil {
		// The KV layer is an optimization: log and continue without it.
		log.Warn("kv provider unavailable, continuing without external cache", logger.Err(err))
		kvClient = nil
	}
	defer kvClient.Close()

	// Repositories and caches.
	players := postgres.NewPlayerRepository(conn)
	configs := postgres.NewConfigRepository(conn)
	registry := postgres.NewRegistry()
	rankingCache := cache.NewRankingCache(players, configs, kvClient, log, timeutil.SystemClock{})

	if cfg.App.WarmCacheOnBoot {
		if err := rankingCache.EnsureReady(ctx); err != nil {
			log.Warn("cache warmup failed, views will build on demand", logger.Err(err))
		}
	}

	// Application services.
	gate := command.NewWriteGate(postgres.NewGate(conn, registry), registry, rankingCache, log)
	closeSeason := command.NewCloseSeasonHandler(postgres.NewSeasonRepository(conn), rankingCache, log, timeutil.SystemClock{})
	finalize := command.NewFinalizeTournamentHandler(postgres.NewTournamentRepository(conn), rankingCache, log, timeutil.SystemClock{})
	rankings := query.NewRankingService(rankingCache)

	server := httpiface.NewServer(httpiface.Config{
		Host:       cfg.HTTP.Host,
		Port:       cfg.HTTP.Port,
		AdminToken: cfg.HTTP.AdminToken,
	}, httpiface.Dependencies{
		Ranking:   rankings,
		Writes:    gate,
		Seasons:   closeSeason,
		Finalizer: finalize,
		Health:    conn,
		Logger:    log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// buildKVClient constructs the configured provider wrapped in the resilient
// client, or nil when the layer is disabled.
func buildKVClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*kv.Client, error) {
	var provider kv.Provider
	var err error

	switch cfg.KV.Provider {
	case config.KVDisabled:
		log.Info("external cache layer disabled")
		return nil, nil
	case config.KVRedis:
		provider, err = kv.NewRedisProvider(ctx, kv.RedisConfig{
			Addr:     cfg.KV.RedisAddr,
			Password: cfg.KV.RedisPassword,
			DB:       cfg.KV.RedisDB,
			Timeout:  cfg.KV.Timeout,
		})
	case config.KVRest:
		provider, err = kv.NewRESTProvider(kv.RESTConfig{
			BaseURL: cfg.KV.RestURL,
			Token:   cfg.KV.RestToken,
			Timeout: cfg.KV.Timeout,
		})
	}
	if err != nil {
		return nil, err
	}

	log.Info("external cache layer enabled", logger.Provider(provider.Name()))
	return kv.NewClient(provider, log, kv.WithCooldown(cfg.KV.Cooldown)), nil
}
