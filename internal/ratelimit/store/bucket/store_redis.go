package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/ratelimit/models"
)

// slidingWindowScript purges, counts and conditionally records in one round
// trip. Redis runs scripts atomically, so concurrent callers for the same key
// cannot both take the last slot.
//
// KEYS[1] counter key
// ARGV    now_ms, window_ms, limit, member, ttl_ms
// returns {allowed, count, reset_ms}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')

if count >= limit then
  local reset = now + window
  if oldest[2] then reset = tonumber(oldest[2]) + window end
  return {0, count, reset}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, tonumber(ARGV[5]))

local reset = now + window
if oldest[2] then reset = tonumber(oldest[2]) + window end
return {1, count + 1, reset}
`)

// expiryGrace keeps idle keys a little past their window so a late reader
// still sees consistent counts.
const expiryGrace = 60 * time.Second

// RedisBucketStore implements CounterStore on Redis sorted sets, one per key,
// scored by request time in milliseconds.
type RedisBucketStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

func (s *RedisBucketStore) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.RateLimitResult, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString()
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		nowMs,
		window.Milliseconds(),
		limit,
		member,
		(window + expiryGrace).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sliding window script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("sliding window script: unexpected reply length %d", len(vals))
	}

	allowed := vals[0] == 1
	result := &models.RateLimitResult{
		Allowed: allowed,
		Limit:   limit,
		ResetAt: time.UnixMilli(vals[2]),
	}
	if allowed {
		result.Remaining = limit - int(vals[1])
	}
	return result, nil
}

func (s *RedisBucketStore) Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	minScore := "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	entries, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: minScore,
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("count window: %w", err)
	}
	if len(entries) == 0 {
		return 0, time.Time{}, nil
	}
	oldest := time.UnixMilli(int64(entries[0].Score))
	return len(entries), oldest.Add(window), nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
