package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zeenbase/zeenbase/internal/model"
)

const (
	rateLimitAPISpace = "ratelimit:apikey"
	rateLimitIPSpace  = "ratelimit:ip"
	// rateLimitAPITTL is the TTL for API rate limit keys.
	rateLimitAPITTL = 120 * time.Second
	// rateLimitIPTTL is the TTL for IP rate limit keys.
	rateLimitIPTTL = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes in one atomic step.
// Time is passed in milliseconds so sub-second refill is not lost.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per millisecond
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])       -- seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckAPIRateLimit consumes one request from an API key's bucket.
// Redis failures fail open.
func (c *Cache) CheckAPIRateLimit(ctx context.Context, keyID string, limit model.RateLimitConfig) *RateLimitResult {
	if limit.RequestsPerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Limit: 0, Remaining: int64(limit.Burst), ResetAt: time.Now().Add(time.Minute)}
	}

	perMs := float64(limit.RequestsPerMinute) / float64(time.Minute.Milliseconds())
	res := c.checkRateLimit(ctx, c.key(rateLimitAPISpace, keyID), perMs, limit.Burst, rateLimitAPITTL)
	res.Limit = limit.RequestsPerMinute
	return res
}

// CheckIPRateLimit consumes one request from an IP's bucket.
// IP is hashed to avoid storing raw IP addresses.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) *RateLimitResult {
	perMs := float64(ratePerSecond) / 1000.0
	res := c.checkRateLimit(ctx, c.key(rateLimitIPSpace, hashIP(ip)), perMs, burst, rateLimitIPTTL)
	res.Limit = ratePerSecond
	return res
}

func (c *Cache) checkRateLimit(ctx context.Context, key string, perMs float64, burst int, ttl time.Duration) *RateLimitResult {
	now := time.Now()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		perMs, burst, now.UnixMilli(), int(ttl.Seconds()),
	).Int64Slice()

	if err != nil {
		c.logger.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(burst),
			ResetAt:   now.Add(time.Minute),
		}
	}

	retryAfter := time.Duration(result[1]) * time.Millisecond
	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(time.Duration(float64(time.Millisecond) / perMs)),
		RetryAfter: retryAfter,
	}
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
