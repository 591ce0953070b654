// Package data provides data access layer implementations.
// It handles the Redis circuit state store, the MySQL decision log and
// audit trail, the in-process signal cache and the remote provider adapter.
package data

import (
	"Switchyard/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewCacheClient,
	NewMySQLClient,
	NewRemoteProviders,
)

// Data contains all data layer dependencies.
type Data struct {
	// redisClient backs the circuit state store; nil when Redis is not configured
	redisClient *redis.Client
	// cache is the JSON cache used by repositories
	cache CacheClient
	// db backs the decision log and audit trail
	db *gorm.DB
}

// NewData creates a new Data instance with all data layer dependencies.
// A missing Redis client does not prevent startup; circuit persistence is skipped instead.
func NewData(_ *conf.Data, logger log.Logger, rdb *redis.Client, cache CacheClient, db *gorm.DB) (*Data, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data"))

	if rdb == nil {
		helper.Warn("Redis client is nil, circuit state will not be persisted")
	}

	d := &Data{
		redisClient: rdb,
		cache:       cache,
		db:          db,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// Redis and MySQL are closed by their own cleanup functions
	}

	return d, cleanup, nil
}

// GetCache returns the cache client for repository use.
func (d *Data) GetCache() CacheClient {
	return d.cache
}

// GetRedisClient returns the Redis client for advanced operations.
func (d *Data) GetRedisClient() *redis.Client {
	return d.redisClient
}

// GetDB returns the GORM handle.
func (d *Data) GetDB() *gorm.DB {
	return d.db
}
