package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"mealplan-backend/internal/shared/util"
)

func newLimitedRouter(limiter Limiter, rules map[string]RateLimitRule, groupFor func(*gin.Context) string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor:     groupFor,
		Limiter:      limiter,
		Rules:        rules,
	}))
	r.GET("/api/v1/activity", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/v1/activity/meals", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
	return resp
}

func TestRateLimitReadsHigherThanWrites(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.Request.Method == http.MethodGet {
			return "READ"
		}
		return "DEFAULT"
	}
	r := newLimitedRouter(limiter, map[string]RateLimitRule{
		"DEFAULT": {Rate: 1, Burst: 2},
		"READ":    {Rate: 5, Burst: 10},
	}, groupFor)

	for i := 0; i < 3; i++ {
		if resp := serve(r, http.MethodGet, "/api/v1/activity"); resp.Code != http.StatusOK {
			t.Fatalf("read request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	for i := 0; i < 2; i++ {
		if resp := serve(r, http.MethodPost, "/api/v1/activity/meals"); resp.Code != http.StatusOK {
			t.Fatalf("write request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	if resp := serve(r, http.MethodPost, "/api/v1/activity/meals"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("write request 3 expected 429, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := newLimitedRouter(limiter, map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}}, nil)

	if resp := serve(r, http.MethodGet, "/api/v1/activity"); resp.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp.Code)
	}
	resp := serve(r, http.MethodGet, "/api/v1/activity")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "rate_limited" {
		t.Fatalf("expected error=rate_limited")
	}
	if _, ok := payload["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in response")
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 2, Burst: 1}
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "k", rule); !ok {
		t.Fatalf("expected first call allowed")
	}
	ok, wait := limiter.Allow(ctx, "k", rule)
	if ok || wait != 500*time.Millisecond {
		t.Fatalf("expected denial with 500ms wait, got ok=%v wait=%s", ok, wait)
	}
	now = now.Add(500 * time.Millisecond)
	if ok, _ := limiter.Allow(ctx, "k", rule); !ok {
		t.Fatalf("expected refill after wait")
	}
}

func TestRedisLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// Two limiters against one Redis behave like two API replicas.
	a := NewRedisLimiter(client)
	b := NewRedisLimiter(client)
	rule := RateLimitRule{Rate: 1, Burst: 2}
	ctx := context.Background()

	if ok, _ := a.Allow(ctx, "user-1|DEFAULT", rule); !ok {
		t.Fatalf("expected first call allowed")
	}
	if ok, _ := b.Allow(ctx, "user-1|DEFAULT", rule); !ok {
		t.Fatalf("expected second call allowed")
	}
	ok, wait := a.Allow(ctx, "user-1|DEFAULT", rule)
	if ok {
		t.Fatalf("expected third call denied")
	}
	if wait <= 0 || wait > 2*time.Second {
		t.Fatalf("unexpected retry-after %s", wait)
	}
	if ok, _ := b.Allow(ctx, "user-2|DEFAULT", rule); !ok {
		t.Fatalf("expected other user unaffected")
	}
	if !mr.Exists(redisKeyPrefix + util.HashKey("user-1|DEFAULT")) {
		t.Fatalf("expected hashed window key, have %v", mr.Keys())
	}

	mr.FastForward(3 * time.Second)
	if ok, _ := b.Allow(ctx, "user-1|DEFAULT", rule); !ok {
		t.Fatalf("expected window to expire")
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	ok, _ := NewRedisLimiter(client).Allow(context.Background(), "user-1|DEFAULT", RateLimitRule{Rate: 1, Burst: 1})
	if !ok {
		t.Fatalf("expected fail-open when redis is down")
	}
}
