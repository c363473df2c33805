package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"monolith/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis is unavailable.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("rate limit store is not configured")

// fixedWindow increments the counter, starts the window on the first hit and
// returns {count, remaining window in ms}.
var fixedWindow = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {c, redis.call('PTTL', KEYS[1])}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return true
	}
	return false
}

// CheckRateLimit counts one hit of id against resource in a fixed window of
// length window. Rate limiting is disabled when APP_ENV is "test" or
// "development".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Decision, error) {
	if rateLimitBypassed() {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if rdb == nil {
		return Decision{Limit: limit}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	res, err := fixedWindow.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{Limit: limit}, err
	}
	if len(res) != 2 {
		return Decision{Limit: limit}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	count, pttl := res[0], res[1]
	d := Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: max(0, limit-int(min(count, math.MaxInt32))),
	}
	if !d.Allowed && pttl > 0 {
		d.RetryAfter = time.Duration(pttl) * time.Millisecond
	}
	return d, nil
}

// RateLimit returns a Fiber middleware enforcing limit requests per window,
// keyed by the authenticated user or else the remote IP. The optional name
// groups routes into one bucket; the request path is used otherwise.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		d, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					"resource", resource, "error", err.Error())
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Message: "Service temporarily unavailable.",
					Code:    models.CodeUnavailable,
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			if d.RetryAfter > 0 {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later.",
				Code:    models.CodeRateLimited,
			})
		}
		return c.Next()
	}
}
