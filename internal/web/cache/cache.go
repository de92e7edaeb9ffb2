// Package cache provides the key/value cache used for geocoding results and
// advisor chat history, backed by Redis or process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/config"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache is implemented by every backend
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Config holds options common to all backends
type Config struct {
	// DefaultTTL applies when Set is called with a zero TTL
	DefaultTTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns the standard cache options
func DefaultConfig() Config {
	return Config{DefaultTTL: 5 * time.Minute, Prefix: "recruitops:"}
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Key joins key parts with ':' after lower-casing and collapsing whitespace
func Key(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	return strings.Join(parts, ":")
}

// New connects to Redis when an address is configured and falls back to an
// in-memory cache otherwise, or when Redis cannot be reached.
func New(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) Cache {
	cc := DefaultConfig()
	if cfg.Prefix != "" {
		cc.Prefix = cfg.Prefix
	}
	if cfg.Addr == "" {
		logger.Info("redis not configured, using in-memory cache")
		return NewMemory(cc)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return NewMemory(cc)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	return NewRedis(client, cc)
}

// GetJSON loads and decodes a cached value
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode cached %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes and stores a value
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q for cache: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
