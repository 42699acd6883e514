package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// SecurityHeaders adds security-related headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// CORS allows the listed storefront origins; "*" allows any origin.
func CORS(allowedOrigins string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if strings.TrimSpace(allowedOrigins) == "*" {
		cfg.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSuffix(strings.TrimSpace(o), "/"); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOrigins = []string{"http://localhost:3000"}
		}
	}
	return cors.New(cfg)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	rate  rate.Limit
	burst int
	ttl   time.Duration
}

// NewRateLimiter creates a limiter. Call Run to evict idle IPs.
func NewRateLimiter(r rate.Limit, b int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		ips:   make(map[string]*limiterEntry),
		rate:  r,
		burst: b,
		ttl:   ttl,
	}
}

// GetLimiter returns the limiter for ip, creating it on first use.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.ips[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Cleanup drops IPs not seen within the TTL.
func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, e := range rl.ips {
		if now.Sub(e.lastSeen) > rl.ttl {
			delete(rl.ips, ip)
		}
	}
}

// Run cleans up stale entries every TTL until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) error {
	if rl.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			rl.Cleanup(now)
		}
	}
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// ExceptLoopback runs next only for non-loopback clients. The server's own
// carrier calls reach the proxy from loopback and must not share one bucket.
// The client IP honours the engine's trusted proxies, so a forwarded header
// from an untrusted peer cannot claim loopback.
func ExceptLoopback(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := net.ParseIP(c.ClientIP()); ip != nil && ip.IsLoopback() {
			c.Next()
			return
		}
		next(c)
	}
}

// SharedSecret admits only requests whose header carries secret.
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
