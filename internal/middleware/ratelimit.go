package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/raffle-reservation/internal/config"
)

// WindowStore counts requests per key within a fixed window. It is the
// externally-owned shared state behind the limiter: the API is
// horizontally scaled, so counters must never live in-process. Incr
// returns the post-increment count and the time remaining in the key's
// current window.
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// NewReserveLimiter returns middleware enforcing a fixed-window request
// limit per client IP, keyed "ratelimit:reserve:{ip}". When the window's
// limit is exceeded the request is rejected with 429, a Retry-After header
// equal to the remaining window, and the standard X-RateLimit headers.
//
// The limiter fails open: if the backing store is nil or unreachable the
// request proceeds uncounted. Losing rate limiting during an infra
// degradation is preferable to refusing ticket sales.
func NewReserveLimiter(cfg config.RateLimitConfig, store WindowStore) echo.MiddlewareFunc {
	if !cfg.Enabled || store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := cfg.Prefix + ":reserve:" + ip

			count, remaining, err := store.Incr(c.Request().Context(), key, cfg.Window)
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] store error for key=%s: %v", key, err)
				}
				return next(c)
			}

			left := int64(cfg.Limit) - count
			if left < 0 {
				left = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))

			if count > int64(cfg.Limit) {
				secs := int(math.Ceil(remaining.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block key=%s count=%d retry=%ds", key, count, secs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success":    false,
					"error":      "too_many_requests",
					"retryAfter": secs,
				})
			}
			return next(c)
		}
	}
}

// windowScript increments the window counter and stamps its expiry on
// first use, returning the count and the window's remaining lifetime in
// milliseconds. Running both steps in one script keeps the
// increment-then-expire pair atomic across concurrent API instances.
var windowScript = redis.NewScript(`
    local key = KEYS[1]
    local window_ms = tonumber(ARGV[1])

    local count = redis.call('INCR', key)
    if count == 1 then
        redis.call('PEXPIRE', key, window_ms)
    end
    local ttl = redis.call('PTTL', key)
    if ttl < 0 then
        redis.call('PEXPIRE', key, window_ms)
        ttl = window_ms
    end
    return { count, ttl }
`)

// RedisWindowStore implements WindowStore on a shared Redis instance.
type RedisWindowStore struct {
	rdb *redis.Client
}

// NewRedisWindowStore wraps a Redis client; a nil client yields a nil store
// so callers can pass the result straight to NewReserveLimiter.
func NewRedisWindowStore(rdb *redis.Client) *RedisWindowStore {
	if rdb == nil {
		return nil
	}
	return &RedisWindowStore{rdb: rdb}
}

// Incr runs the window script for the key.
func (s *RedisWindowStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := windowScript.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, 0, errUnexpectedScriptResult
	}
	return asInt64(arr[0]), time.Duration(asInt64(arr[1])) * time.Millisecond, nil
}

var errUnexpectedScriptResult = errors.New("ratelimit: unexpected script result")

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
