package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"hackid/internal/config"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

// New builds a redis client from configuration. Returns nil when no address
// is configured; consumers must treat the client as optional.
func New(lc fx.Lifecycle, cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		PoolTimeout: cfg.Redis.PoolTimeout,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		zap.L().Warn("[Redis] Redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	} else {
		zap.L().Info("[Redis] Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}
