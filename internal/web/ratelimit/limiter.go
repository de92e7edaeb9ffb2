// Package ratelimit limits API requests per client over a sliding window.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siteworks/recruitops/internal/config"
)

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

// Decision is the current state of a key's window
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// RetryAfter is how long a rejected caller should wait
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Options configure a limiter
type Options struct {
	Limit  int
	Window time.Duration
	Prefix string
}

func (o Options) validate() error {
	if o.Limit <= 0 {
		return errors.New("limit must be greater than 0")
	}
	if o.Window <= 0 {
		return errors.New("window must be greater than 0")
	}
	return nil
}

// New returns a Redis limiter when client is set and an in-memory one
// otherwise. A disabled config returns nil.
func New(cfg config.RateLimitConfig, client *redis.Client, prefix string) (Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := Options{Limit: cfg.Requests, Window: cfg.Window, Prefix: prefix + "ratelimit:"}
	if client != nil {
		return NewRedis(client, opts)
	}
	return NewMemory(opts)
}
