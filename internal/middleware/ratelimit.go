// ratelimit.go provides Gin middleware that enforces per-client rate limits, returning
// 429 responses when a limit is exceeded. Limits are kept in memory by default or in
// Redis when several replicas must share them.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/apperrors"
	"github.com/feedback-system/feedback-system/internal/config"
)

// Rate limit messages.
const (
	MsgTooManyRequests      = "Too many requests from this IP, please try again later."
	MsgTooManyLoginAttempts = "Too many login attempts, please try again later."
	MsgTooManySubmissions   = "Too many feedback submissions, please try again later."
)

// RateLimitConfig holds configuration for one limit
type RateLimitConfig struct {
	// Rate is the number of requests allowed per Period
	Rate int
	// Period is the refill window
	Period time.Duration
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often idle in-memory entries are dropped
	CleanupInterval time.Duration
}

// APIRateLimitConfig returns the general API limit.
func APIRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		Rate:            cfg.RequestsPerMinute,
		Period:          time.Minute,
		BurstSize:       cfg.Burst,
		CleanupInterval: 5 * time.Minute,
	}
}

// LoginRateLimitConfig returns the stricter limit for the login endpoint.
func LoginRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		Rate:            cfg.LoginRequestsPerMinute,
		Period:          time.Minute,
		BurstSize:       cfg.LoginRequestsPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// SubmitRateLimitConfig returns the limit for public feedback submission.
func SubmitRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		Rate:            cfg.SubmitRequestsPerHour,
		Period:          time.Hour,
		BurstSize:       cfg.SubmitRequestsPerHour,
		CleanupInterval: 5 * time.Minute,
	}
}

// LimitResult is the outcome of one Allow call.
type LimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (LimitResult, error)
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-memory token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes idle entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	idle := 2 * rl.config.Period
	if idle < 10*time.Minute {
		idle = 10 * time.Minute
	}
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > idle {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow takes one token for key if one is available.
func (rl *RateLimiter) Allow(_ context.Context, key string) (LimitResult, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.config.BurstSize)
	perSecond := float64(rl.config.Rate) / rl.config.Period.Seconds()

	entry, exists := rl.entries[key]
	if !exists {
		entry = &rateLimitEntry{tokens: burst, lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate).Seconds()
		entry.tokens = math.Min(burst, entry.tokens+elapsed*perSecond)
		entry.lastUpdate = now
	}

	res := LimitResult{Limit: rl.config.BurstSize}
	if entry.tokens >= 1 {
		entry.tokens--
		res.Allowed = true
		res.Remaining = int(entry.tokens)
		return res, nil
	}

	if perSecond > 0 {
		res.RetryAfter = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	} else {
		res.RetryAfter = rl.config.Period
	}
	return res, nil
}

// RateLimitMiddleware rejects requests over limiter's limit with message. A limiter
// error lets the request through.
func RateLimitMiddleware(limiter Limiter, scope, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":" + getRateLimitKey(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request",
				"scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			Abort(c, apperrors.New(apperrors.KindRateLimited, message))
			return
		}

		c.Next()
	}
}

// getRateLimitKey prefers the authenticated administrator over the client IP.
func getRateLimitKey(c *gin.Context) string {
	if admin, ok := CurrentAdmin(c); ok {
		return "admin:" + admin.ID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
