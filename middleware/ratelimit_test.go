package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(10*time.Second, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatalf("expected the first two calls to pass")
	}
	if l.Allow("u1") {
		t.Fatalf("expected the bucket to be empty")
	}
	if !l.Allow("u2") {
		t.Fatalf("expected keys to have separate buckets")
	}

	now = now.Add(5 * time.Second)
	if !l.Allow("u1") {
		t.Fatalf("expected half a window to refill one token")
	}
	if l.Allow("u1") {
		t.Fatalf("expected only one token after half a window")
	}

	now = now.Add(time.Minute)
	l.Prune()
	l.mu.Lock()
	n := len(l.visitors)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected idle buckets to be pruned, have %d", n)
	}
}

func TestLimiterKeepsFractionalRefill(t *testing.T) {
	// 2 tokens per second
	l := NewLimiter(10*time.Second, 20)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	for i := 0; i < 20; i++ {
		l.Allow("u1")
	}
	if l.Allow("u1") {
		t.Fatalf("expected the burst to be spent")
	}

	allowed := 0
	for i := 0; i < 100; i++ {
		now = now.Add(900 * time.Millisecond)
		for j := 0; j < 2; j++ {
			if l.Allow("u1") {
				allowed++
			}
		}
	}
	// 90s at 2/s refills 180 tokens
	if allowed < 178 || allowed > 181 {
		t.Fatalf("expected about 180 calls allowed over 90s, got %d", allowed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(time.Minute, 1)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set(ContextUserIDKey, uint(7)) }, l.RateLimit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After of one window, got %q", w.Header().Get("Retry-After"))
	}
}
