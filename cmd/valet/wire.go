// README: Builds the pricing service on the configured state, config and audit backends.
package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"valet/internal/config"
	"valet/internal/infra"
	"valet/internal/modules/pricing"
)

type backends struct {
	svc   *pricing.Service
	db    *pgxpool.Pool
	redis *redis.Client
}

func (b *backends) Close() {
	if b.db != nil {
		b.db.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}
	mem := pricing.NewMemoryStore()
	var pg *pricing.Store

	if cfg.NeedsPostgres() {
		db, err := infra.NewDB(ctx, cfg.DB.DSN, infra.DBOptions{MaxConns: cfg.DB.MaxConns, AppName: "valet"})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.db = db
		pg = pricing.NewStore(db)
	}
	if cfg.NeedsRedis() {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.redis = rdb
	}

	deps := pricing.ServiceDeps{
		Configs:            mem,
		States:             mem,
		Audit:              mem,
		Logger:             log.Named("pricing"),
		MaxConflictRetries: cfg.Pricing.MaxConflictRetries,
		RetryBackoff:       cfg.Pricing.RetryBackoff,
	}
	switch cfg.Pricing.StateBackend {
	case config.BackendRedis:
		deps.States = pricing.NewRedisStateStore(b.redis)
	case config.BackendPostgres:
		deps.States = pg
	}
	if cfg.Pricing.ConfigBackend == config.BackendPostgres {
		deps.Configs = pg
	}
	if cfg.Pricing.AuditBackend == config.BackendPostgres {
		deps.Audit = pg
	}
	b.svc = pricing.NewService(deps)

	log.Info("pricing backends ready",
		zap.String("state", cfg.Pricing.StateBackend),
		zap.String("config", cfg.Pricing.ConfigBackend),
		zap.String("audit", cfg.Pricing.AuditBackend),
	)

	if cfg.Pricing.SeedFile != "" {
		file, err := pricing.ReadConfigFile(cfg.Pricing.SeedFile)
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := file.Seed(ctx, b.svc); err != nil {
			b.Close()
			return nil, fmt.Errorf("seed %s: %w", cfg.Pricing.SeedFile, err)
		}
		log.Info("pricing configs seeded", zap.String("file", cfg.Pricing.SeedFile), zap.Int("scopes", len(file.Scopes)))
	}
	return b, nil
}
