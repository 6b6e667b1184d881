package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reelty/clipper-api/pkg/response"
)

// RateLimiter enforces per-user request budgets backed by Redis counters
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// GenerateLimit caps clip generation submissions per user per hour
func (r *RateLimiter) GenerateLimit(perHour int) fiber.Handler {
	return r.limit("generate", perHour, time.Hour)
}

func (r *RateLimiter) limit(scope string, max int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if max <= 0 {
			return c.Next()
		}

		identity := GetUserID(c)
		if identity == "" {
			identity = c.IP()
		}
		key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)

		count, err := r.redis.Incr(c.Context(), key).Result()
		if err != nil {
			// Redis being down should not take the API with it
			log.Printf("Rate limiter unavailable: %v", err)
			return c.Next()
		}
		if count == 1 {
			r.redis.Expire(c.Context(), key, window)
		}
		if count > int64(max) {
			return response.RateLimited(c)
		}
		return c.Next()
	}
}
