package handlers

import (
	"sync"
	"time"

	applog "bookfair/internal/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a token bucket per key (user id, else client IP).
type Throttle struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	swept    time.Time
}

func NewThrottle(limit rate.Limit, burst int) *Throttle {
	return &Throttle{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		idle:     10 * time.Minute,
		swept:    time.Now(),
	}
}

func (t *Throttle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.swept) > t.idle {
		for k, v := range t.visitors {
			if now.Sub(v.lastSeen) > t.idle {
				delete(t.visitors, k)
			}
		}
		t.swept = now
	}
	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// Handler rejects with 429 once the caller's bucket is empty.
func (t *Throttle) Handler(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if u := currentUser(c); u != nil {
			key = u.ID
		}
		if !t.Allow(key) {
			applog.Security(c, "rate."+action+".hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded, retry soon",
				"code":  "rate_limited",
			})
		}
		return c.Next()
	}
}
