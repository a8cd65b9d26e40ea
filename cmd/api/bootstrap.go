package main

import (
	"context"
	"fmt"
	"time"

	"go-inventory-tree/internal/app"
	"go-inventory-tree/internal/config"
	"go-inventory-tree/internal/lookup"
	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/database"
	"go-inventory-tree/pkg/jwt"
	"go-inventory-tree/pkg/logger"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is everything a subcommand needs. close releases it in reverse
// order of acquisition.
type runtime struct {
	cfg       *config.Config
	db        *gorm.DB
	redis     *redis.Client
	container *app.Container
}

func bootstrap(ctx context.Context, events ws.Publisher) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	dsn := cfg.Database.ConnString()
	opts := database.Options{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogSQL:          cfg.Database.LogSQL,
	}
	// sqlite serialises writers; one connection keeps transactions from
	// failing with SQLITE_BUSY
	if database.IsSQLite(dsn) {
		opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
	}
	db, err := database.Connect(dsn, opts)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, db: db}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, model.All()...); err != nil {
			rt.close()
			return nil, err
		}
	}

	var (
		cache  lookup.Cache
		locker *redislock.Client
	)
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rt.redis = redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rt.redis.Ping(pingCtx).Err(); err != nil {
			// lookups and seeding work without redis, just uncached and unlocked
			logger.Warn("redis unreachable, continuing without it", zap.Error(err))
			rt.redis.Close()
			rt.redis = nil
		} else {
			cache = lookup.NewRedisCache(rt.redis, cfg.Redis.KeyPrefix, cfg.Lookup.CacheTTL)
			locker = redislock.New(rt.redis)
			logger.Info("redis connected")
		}
	}

	lk := cfg.Lookup
	sources := []lookup.Source{
		lookup.NewOpenFoodFacts(lk.OpenFoodFactsURL, lk.UserAgent, lk.Timeout),
		lookup.NewOpenLibrary(lk.OpenLibraryURL, lk.UserAgent, lk.Timeout),
		lookup.NewUPCItemDB(lk.UPCItemDBURL, lk.UserAgent, lk.Timeout),
	}

	rt.container = app.NewContainer(db, app.Options{
		Tokens:  jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		Events:  events,
		Lookup:  lookup.NewService(sources, cache, lk.Timeout),
		Locker:  locker,
		LockKey: cfg.Redis.KeyPrefix + "seed",
		LockTTL: cfg.Redis.LockTTL,
	})
	return rt, nil
}

func (rt *runtime) close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := rt.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}
	_ = logger.Sync()
}
