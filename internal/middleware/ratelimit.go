package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"folio/internal/cache"
	"folio/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client in fixed Redis windows. It fails
// open when Redis is missing or erroring.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter; a disabled limiter lets every request through.
func NewRateLimiter(rdb *redis.Client, enabled bool) *RateLimiter {
	return &RateLimiter{rdb: rdb, enabled: enabled}
}

// Allow reports whether subject may make another request to name.
func (l *RateLimiter) Allow(ctx context.Context, name, subject string, limit int, window time.Duration) (bool, error) {
	if !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return true, fmt.Errorf("redis client is nil")
	}

	key := cache.RateLimitKey(name, subject)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// Limit allows limit requests per window for each client IP on the named route.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := l.Allow(c.UserContext(), name, c.IP(), limit, window)
		if err != nil {
			slog.WarnContext(c.UserContext(), "rate limit unavailable, allowing request", "route", name, "error", err)
		}
		if !allowed {
			observability.AuthFailures.WithLabelValues("rate_limited").Inc()
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests from this IP, please try again later")
		}
		return c.Next()
	}
}
