package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"akinmueble/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoLimiterStore = errors.New("rate limiter has no redis client")

// CheckRateLimit counts one hit for id against resource in a fixed window and
// reports whether it is still within limit. Outside production-like
// environments (APP_ENV unset, "development" or "test") every hit is allowed.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := hit(ctx, rdb, resource, id, limit, window)
	return allowed, err
}

func limiterBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "development", "test":
		return true
	}
	return false
}

// hit returns whether the hit is allowed and how long until the window resets.
func hit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limiterBypassed() {
		return true, 0, nil
	}
	if rdb == nil {
		return false, 0, errNoLimiterStore
	}

	key := "rl:" + resource + ":" + id
	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return count.Val() <= int64(limit), ttl.Val(), nil
}

// RateLimit allows limit requests per window from each client IP on the
// route, failing open when Redis is down. name keys the counter; it
// defaults to the request path.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit FailPolicy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, retryAfter, err := hit(c.UserContext(), rdb, resource, "ip:"+c.IP(), limit, window)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			if policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Rate limiting is temporarily unavailable",
					Code:  models.CodeInternal,
				})
			}
			return c.Next()
		}

		if !allowed {
			if retryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
