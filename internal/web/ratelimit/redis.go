package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then records the
// request if the window still has room. Scores are unix milliseconds.
// Returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
local allowed = 0
if current < limit then
	redis.call('ZADD', key, now, member)
	current = current + 1
	allowed = 1
end
redis.call('EXPIRE', key, ttl)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = ARGV[1]
if oldest[2] then
	first = oldest[2]
end
return {allowed, current, first}
`)

// Redis is a sliding window limiter shared by every API replica
type Redis struct {
	client *redis.Client
	opts   Options
	now    func() time.Time
}

// NewRedis creates a Redis limiter
func NewRedis(client *redis.Client, opts Options) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Redis{client: client, opts: opts, now: time.Now}, nil
}

// Allow records a request for key if the window has room
func (r *Redis) Allow(ctx context.Context, key string) (*Decision, error) {
	now := r.now()
	ttl := int(r.opts.Window / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	res, err := slidingWindow.Run(ctx, r.client, []string{r.opts.Prefix + key},
		now.UnixMilli(),
		now.Add(-r.opts.Window).UnixMilli(),
		r.opts.Limit,
		ttl,
		uuid.NewString(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return nil, errors.New("unexpected rate limit script result")
	}
	allowed, ok1 := res[0].(int64)
	count, ok2 := res[1].(int64)
	oldestRaw, ok3 := res[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("unexpected rate limit script result")
	}
	oldest := now.UnixMilli()
	if f, err := strconv.ParseFloat(oldestRaw, 64); err == nil {
		oldest = int64(f)
	}

	return &Decision{
		Limit:     r.opts.Limit,
		Remaining: max(r.opts.Limit-int(count), 0),
		ResetAt:   time.UnixMilli(oldest).Add(r.opts.Window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset clears the window for key
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.opts.Prefix+key).Err()
}
