package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tacopii/tacopii/internal/core"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "tacopii:ratelimit:"

// fixedWindowScript opens, resets or increments a window in one step.
// ARGV[4] is the reset time (ms) to use when a new window opens.
// Returns {allowed, count, reset_at_ms}.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local next_reset = ARGV[4]

local state = redis.call('HMGET', key, 'count', 'reset_at')
local count = tonumber(state[1])
local reset_at = tonumber(state[2])

if count == nil or reset_at == nil or now > reset_at then
  redis.call('HSET', key, 'count', 1, 'reset_at', next_reset)
  redis.call('PEXPIRE', key, window)
  return {1, 1, tonumber(next_reset)}
end

if count >= limit then
  return {0, count, reset_at}
end

count = redis.call('HINCRBY', key, 'count', 1)
return {1, count, reset_at}
`)

// RedisStore keeps window state in Redis so that several instances share
// one budget per client.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Name identifies the backend.
func (s *RedisStore) Name() string { return "redis" }

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	return s.client.Ping(ctx).Err()
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.RateLimitEntry, bool, error) {
	if s == nil || s.client == nil {
		return core.RateLimitEntry{}, true, fmt.Errorf("redis client not configured")
	}

	res, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		limit, window.Milliseconds(), now.UnixMilli(), strconv.FormatInt(now.Add(window).UnixMilli(), 10)).Int64Slice()
	if err != nil {
		return core.RateLimitEntry{}, true, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return core.RateLimitEntry{}, true, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	entry := core.RateLimitEntry{
		Key:     key,
		Count:   int(res[1]),
		ResetAt: time.UnixMilli(res[2]).UTC(),
	}
	return entry, res[0] == 1, nil
}

// List scans for keys under prefix. Expired windows that Redis has not yet
// evicted are included as stored.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]core.RateLimitEntry, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis client not configured")
	}

	var result []core.RateLimitEntry
	iter := s.client.Scan(ctx, 0, s.prefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		values, err := s.client.HMGet(ctx, fullKey, "count", "reset_at").Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fullKey, err)
		}
		entry := core.RateLimitEntry{Key: strings.TrimPrefix(fullKey, s.prefix)}
		if len(values) == 2 {
			entry.Count = int(parseInt(values[0]))
			if ms := parseInt(values[1]); ms > 0 {
				entry.ResetAt = time.UnixMilli(ms).UTC()
			}
		}
		result = append(result, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rate limits: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Reset deletes the window for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

func parseInt(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
