package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedback-system/feedback-system/internal/config"
)

// ---------------------------------------------------------------------------
// Config constructors
// ---------------------------------------------------------------------------

func testRateLimiting() config.RateLimitingConfig {
	return config.RateLimitingConfig{
		Enabled:                true,
		RequestsPerMinute:      100,
		Burst:                  20,
		LoginRequestsPerMinute: 5,
		SubmitRequestsPerHour:  10,
	}
}

func TestRateLimitConfigs(t *testing.T) {
	api := APIRateLimitConfig(testRateLimiting())
	if api.Rate != 100 || api.Period != time.Minute || api.BurstSize != 20 {
		t.Errorf("APIRateLimitConfig = %+v", api)
	}

	login := LoginRateLimitConfig(testRateLimiting())
	if login.Rate != 5 || login.Period != time.Minute || login.BurstSize != 5 {
		t.Errorf("LoginRateLimitConfig = %+v", login)
	}

	submit := SubmitRateLimitConfig(testRateLimiting())
	if submit.Rate != 10 || submit.Period != time.Hour || submit.BurstSize != 10 {
		t.Errorf("SubmitRateLimitConfig = %+v", submit)
	}
}

// ---------------------------------------------------------------------------
// RateLimiter.Allow
// ---------------------------------------------------------------------------

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(t *testing.T, rate, burst int, period time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{
		Rate:            rate,
		Period:          period,
		BurstSize:       burst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl, _ := newTestLimiter(t, 5, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, _ := rl.Allow(ctx, "ip:1.2.3.4")
		if !res.Allowed {
			t.Fatalf("request %d blocked within burst", i+1)
		}
		if res.Remaining != 4-i {
			t.Errorf("request %d remaining = %d, want %d", i+1, res.Remaining, 4-i)
		}
	}

	res, _ := rl.Allow(ctx, "ip:1.2.3.4")
	if res.Allowed {
		t.Fatal("6th request allowed")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 13*time.Second {
		t.Errorf("RetryAfter = %v, want about 12s", res.RetryAfter)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 1, time.Minute)
	ctx := context.Background()

	if res, _ := rl.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("first request blocked")
	}
	if res, _ := rl.Allow(ctx, "k"); res.Allowed {
		t.Fatal("second request allowed with empty bucket")
	}

	*now = now.Add(time.Second)
	if res, _ := rl.Allow(ctx, "k"); !res.Allowed {
		t.Error("request blocked after refill interval")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1, time.Hour)
	ctx := context.Background()

	rl.Allow(ctx, "a")
	if res, _ := rl.Allow(ctx, "b"); !res.Allowed {
		t.Error("key b limited by key a")
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (LimitResult, error) {
	return LimitResult{}, errors.New("redis: connection refused")
}

func newRateLimitedRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l, "login", MsgTooManyLoginAttempts))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, 2, time.Minute)
	r := newRateLimitedRouter(rl)

	for i := 0; i < 2; i++ {
		if w := post(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
	}

	w := post(r, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if msg := decodeError(t, w).Message; msg != MsgTooManyLoginAttempts {
		t.Errorf("message = %q", msg)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", w.Header().Get("X-RateLimit-Remaining"))
	}

	if w := post(r, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	if w := post(newRateLimitedRouter(erroringLimiter{}), "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter errors", w.Code)
	}
}

func TestGetRateLimitKey_PrefersAdmin(t *testing.T) {
	r := gin.New()
	r.Use(AuthMiddleware(newStubVerifier()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, getRateLimitKey(c)) })

	if w := doGet(r, "Bearer good"); w.Body.String() != "admin:admin-1" {
		t.Errorf("key = %q, want admin:admin-1", w.Body.String())
	}
}
