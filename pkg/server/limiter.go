package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// keyedLimiter holds one token bucket per key. A nil keyedLimiter allows
// everything.
type keyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	r       rate.Limit
	b       int
	ttl     time.Duration
}

// newKeyedLimiter returns nil when perSecond is not positive. A zero ttl
// keeps entries until Forget.
func newKeyedLimiter(perSecond float64, burst int, ttl time.Duration) *keyedLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &keyedLimiter{
		entries: make(map[string]*limiterEntry),
		r:       rate.Limit(perSecond),
		b:       burst,
		ttl:     ttl,
	}
}

// Allow consumes one token for key.
func (l *keyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.r, l.b)}
		l.entries[key] = e
	}
	e.seen = time.Now()
	l.mu.Unlock()
	return e.lim.Allow()
}

// Forget drops the bucket for key.
func (l *keyedLimiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *keyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *keyedLimiter) gc(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, e := range l.entries {
		if now.Sub(e.seen) > l.ttl {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// startGC evicts idle keys every interval until done is closed.
func (l *keyedLimiter) startGC(interval time.Duration, done <-chan struct{}) {
	if l == nil || l.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				l.gc(now)
			}
		}
	}()
}

// rateLimit is a per client IP and route token bucket middleware.
func rateLimit(l *keyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !l.Allow(clientIP(c.Request.RemoteAddr) + "|" + path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
