package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/tabimport/internal/config"
	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/store"
)

// stores holds the configured template and audit backends and the
// connections behind them.
type stores struct {
	Templates core.TemplateStore
	Audit     core.AuditStore

	pool  *pgxpool.Pool
	redis *redis.Client
}

func (s *stores) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStores connects to whatever backends the configuration selects.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	if cfg.UsesPostgres() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}
	if cfg.Stores.Audit == config.StoreRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("connected to redis", "addr", opts.Addr)
	}

	switch cfg.Stores.Templates {
	case config.StorePostgres:
		s.Templates = store.NewPGTemplates(s.pool)
	case config.StoreHTTP:
		t, err := store.NewHTTPTemplates(cfg.Stores.TemplateServiceURL, &http.Client{Timeout: cfg.Submit.Timeout})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Templates = t
	default:
		s.Templates = store.NewMemoryTemplates()
	}

	switch cfg.Stores.Audit {
	case config.StorePostgres:
		s.Audit = store.NewPGAudit(s.pool, cfg.Audit.MaxEntries)
	case config.StoreRedis:
		s.Audit = store.NewRedisAudit(s.redis, cfg.Redis.AuditKey, cfg.Audit.MaxEntries)
	default:
		s.Audit = store.NewMemoryAudit(cfg.Audit.MaxEntries)
	}

	slog.Info("stores ready", "templates", cfg.Stores.Templates, "audit", cfg.Stores.Audit)
	return s, nil
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("connected to database", "name", poolConfig.ConnConfig.Database)

	if db.AutoMigrate {
		if err := store.Migrate(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pool, nil
}
