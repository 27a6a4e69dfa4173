package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"DirectChat/pkg/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a token bucket per user+ip. Each key holds up to capacity
// tokens, refilled at capacity per window.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	window   time.Duration
	capacity int
	every    rate.Limit
	now      func() time.Time
}

func NewLimiter(window time.Duration, capacity int) *Limiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	if capacity <= 0 {
		capacity = 5
	}
	return &Limiter{
		visitors: map[string]*visitor{},
		window:   window,
		capacity: capacity,
		every:    rate.Every(window / time.Duration(capacity)),
		now:      time.Now,
	}
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

func userKey(c *gin.Context) string {
	return strconv.FormatUint(uint64(CurrentUserID(c)), 10) + "@" + clientIP(c)
}

// Allow takes one token for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	v := l.visitors[key]
	if v == nil {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.capacity)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Prune drops keys idle for a whole window; their buckets are full again.
func (l *Limiter) Prune() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, k)
		}
	}
}

// RateLimit rejects requests once the caller's bucket is empty.
func (l *Limiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(userKey(c)) {
			metrics.RateLimitHits.WithLabelValues("http").Inc()
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		c.Next()
	}
}
