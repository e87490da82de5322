// Package bootstrap wires the process-level runtime: database, Redis and the
// post read cache.
package bootstrap

import (
	"fmt"

	"socialfeed/internal/cache"
	"socialfeed/internal/config"
	"socialfeed/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the connections shared by the server and the seeder.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Cache *cache.Store
}

// InitRuntime connects to the database and Redis. An unreachable Redis is not
// fatal: the returned runtime carries a nil client and a disabled cache.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.Connect(cfg.RedisURL)

	return &Runtime{
		DB:    db,
		Redis: r,
		Cache: cache.NewStore(r, cfg.PostCacheTTL),
	}, nil
}

// Close releases the database pool and the Redis client.
func (rt *Runtime) Close() error {
	var firstErr error
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
