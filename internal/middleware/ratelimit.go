package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures the per-IP rate limiting middleware.
type RateLimitConfig struct {
	// MaxRequests is the number of requests allowed per window per client IP
	MaxRequests int
	// Window is the fixed window length. Defaults to one hour.
	Window time.Duration
}

// RateLimit returns a Gin middleware applying per-IP fixed-window rate
// limiting. State is in-memory and per-process; the public form endpoints see
// little enough traffic that this is all they need.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}

	rl := &rateLimiter{
		windows: make(map[string]*window),
		limit:   cfg.MaxRequests,
		length:  cfg.Window,
	}
	go rl.cleanup()

	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

type window struct {
	count     int
	resetTime time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetTime) {
		rl.windows[key] = &window{count: 1, resetTime: now.Add(rl.length)}
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// cleanup drops expired windows so the map does not grow without bound
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, w := range rl.windows {
			if now.After(w.resetTime) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
