package cache

import (
	"context"
	"fmt"
	"time"

	"StratView/pkg/config"
)

// BytesCache stores raw payloads with a TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// New selects the configured backend. It returns nil when caching is off.
func New(cfg *config.Config) (BytesCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "memory":
		return NewTTLCache(), nil
	case "redis":
		return NewRedisCache(RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
