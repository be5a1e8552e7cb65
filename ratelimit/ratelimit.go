package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jackmew/ZestExchange/logging"
)

// Config configures the token bucket limiter.
type Config struct {
	MaxTokens      int
	RefillRate     int // tokens per interval
	RefillInterval time.Duration
	KeyPrefix      string
	SkipPaths      []string
}

// DefaultConfig allows bursts of 100 with a steady 10 req/s refill.
func DefaultConfig() Config {
	return Config{
		MaxTokens:      100,
		RefillRate:     10,
		RefillInterval: 1 * time.Second,
		KeyPrefix:      "ratelimit:",
	}
}

// tokenBucketScript refills and takes one token atomically. Keys:
// bucket hash. Args: max tokens, refill per second, now (unix ms).
// Returns {allowed, remaining}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local max_tokens = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1])
local last_refill = tonumber(bucket[2])

if tokens == nil then
	tokens = max_tokens
	last_refill = now
end

local elapsed = math.max(0, now - last_refill)
tokens = math.min(max_tokens, tokens + elapsed * refill_per_ms)

local allowed = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, 600000)

return {allowed, math.floor(tokens)}
`)

// TokenBucketLimiter enforces a per-client token bucket in redis so the
// limit holds across processes. When redis is unreachable it falls back
// to an in-memory bucket rather than failing requests.
type TokenBucketLimiter struct {
	redisClient *redis.Client
	config      Config

	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucketLimiter creates a limiter. A nil redis client means
// in-memory only.
func NewTokenBucketLimiter(redisClient *redis.Client, config Config) *TokenBucketLimiter {
	if config.MaxTokens == 0 {
		config.MaxTokens = 100
	}
	if config.RefillRate == 0 {
		config.RefillRate = 10
	}
	if config.RefillInterval == 0 {
		config.RefillInterval = 1 * time.Second
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}

	return &TokenBucketLimiter{
		redisClient: redisClient,
		config:      config,
		buckets:     make(map[string]*memoryBucket),
	}
}

// Allow reports whether one request from clientKey fits the budget.
func (tbl *TokenBucketLimiter) Allow(ctx context.Context, clientKey string) bool {
	if tbl.redisClient != nil {
		allowed, err := tbl.allowRedis(ctx, clientKey)
		if err == nil {
			return allowed
		}
		// Fall through to the in-memory bucket; fail open rather than
		// rejecting traffic on a redis hiccup.
		logging.GetLogger().WithField("error", err.Error()).Warn("Rate limiter redis error, using in-memory fallback")
	}

	return tbl.allowMemory(clientKey)
}

func (tbl *TokenBucketLimiter) allowRedis(ctx context.Context, clientKey string) (bool, error) {
	refillPerMs := float64(tbl.config.RefillRate) / float64(tbl.config.RefillInterval.Milliseconds())

	result, err := tokenBucketScript.Run(ctx, tbl.redisClient,
		[]string{tbl.config.KeyPrefix + clientKey},
		tbl.config.MaxTokens,
		refillPerMs,
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, err
	}

	return len(result) > 0 && result[0] == 1, nil
}

func (tbl *TokenBucketLimiter) allowMemory(clientKey string) bool {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()

	now := time.Now()
	bucket, ok := tbl.buckets[clientKey]
	if !ok {
		bucket = &memoryBucket{tokens: float64(tbl.config.MaxTokens), lastRefill: now}
		tbl.buckets[clientKey] = bucket
	}

	refillPerSec := float64(tbl.config.RefillRate) / tbl.config.RefillInterval.Seconds()
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * refillPerSec
	if bucket.tokens > float64(tbl.config.MaxTokens) {
		bucket.tokens = float64(tbl.config.MaxTokens)
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false
	}

	bucket.tokens--
	return true
}

// Handler returns mux middleware keyed by client IP.
func (tbl *TokenBucketLimiter) Handler(next http.Handler) http.Handler {
	skip := make(map[string]bool, len(tbl.config.SkipPaths))
	for _, path := range tbl.config.SkipPaths {
		skip[path] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if !tbl.Allow(r.Context(), clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First entry is the originating client; later hops vary per proxy
		if idx := strings.Index(forwarded, ","); idx != -1 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
