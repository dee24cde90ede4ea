package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = 15 * time.Minute
)

type visitor struct {
	count       int
	windowStart time.Time
}

// RateLimiter counts requests per client IP in fixed windows. At most max requests are
// admitted per IP in each window; the window starts with the first request after the
// previous one ended.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter falls back to 100 requests per 15 minutes for non-positive arguments.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// allow records a request from ip and reports whether it fits the current window, along
// with the time left until the window resets.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok || !now.Before(v.windowStart.Add(rl.window)) {
		v = &visitor{windowStart: now}
		rl.visitors[ip] = v
	}
	remaining := v.windowStart.Add(rl.window).Sub(now)
	if v.count >= rl.max {
		return false, remaining
	}
	v.count++
	return true, remaining
}

// Sweep forgets clients whose window has ended.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	removed := 0
	for ip, v := range rl.visitors {
		if !now.Before(v.windowStart.Add(rl.window)) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every window until ctx is done.
func (rl *RateLimiter) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Sweep()
			}
		}
	}()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, remaining := rl.allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.max))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
			utils.AbortWithError(c, utils.NewAppError(http.StatusTooManyRequests, utils.CodeRateLimitExceeded,
				"Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
