package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newRedis(t)

	tests := []struct {
		name    string
		limiter *RateLimiter
		calls   int
		allowed bool
		wantErr bool
	}{
		{"disabled", NewRateLimiter(rdb, false), 10, true, false},
		{"within limit", NewRateLimiter(rdb, true), 3, true, false},
		{"over limit", NewRateLimiter(rdb, true), 4, false, false},
		{"nil redis fails open", NewRateLimiter(nil, true), 10, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			var allowed bool
			var err error
			for i := 0; i < tt.calls; i++ {
				allowed, err = tt.limiter.Allow(ctx, "login", "1.2.3.4", 3, time.Minute)
			}
			assert.Equal(t, tt.allowed, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	rdb, mr := newRedis(t)
	l := NewRateLimiter(rdb, true)

	for i := 0; i < 2; i++ {
		_, _ = l.Allow(ctx, "login", "ip", 2, time.Minute)
	}
	allowed, _ := l.Allow(ctx, "login", "ip", 2, time.Minute)
	assert.False(t, allowed)

	mr.FastForward(time.Minute + time.Second)
	allowed, err := l.Allow(ctx, "login", "ip", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_Limit(t *testing.T) {
	rdb, _ := newRedis(t)
	l := NewRateLimiter(rdb, true)

	app := fiber.New()
	app.Post("/login", l.Limit("login", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
