package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
)

// Service caches small JSON payloads, primarily market-data lookups so
// repeated symbol queries inside the TTL skip the upstream API.
type Service interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
}

// NewService builds the configured backend; a disabled cache degrades
// to a no-op so callers never branch.
func NewService(cfg *config.Config, logger *logrus.Logger) (Service, error) {
	if !cfg.Cache.Enabled {
		return &noopCache{}, nil
	}

	switch cfg.Cache.Backend {
	case "redis":
		return newRedisCache(cfg, logger)
	case "memory":
		return newMemoryCache(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

type noopCache struct{}

func (*noopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (*noopCache) Set(context.Context, string, []byte) error  { return nil }

// memoryCache wraps go-cache with the configured TTL.
type memoryCache struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

func newMemoryCache(cfg *config.Config, logger *logrus.Logger) *memoryCache {
	return &memoryCache{
		cache:  cache.New(cfg.Cache.TTL, cfg.Cache.TTL*2),
		logger: logger,
	}
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := m.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte) error {
	m.cache.SetDefault(key, value)
	return nil
}

// redisCache shares cached lookups across restarts.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func newRedisCache(cfg *config.Config, logger *logrus.Logger) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{client: client, ttl: cfg.Cache.TTL, logger: logger}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return nil, false
	}
	return data, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}
