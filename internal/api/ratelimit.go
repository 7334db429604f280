package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client's token bucket is kept around.
const staleAfter = 10 * time.Minute

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiters tracks one token bucket per client IP.
type rateLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func (r *rateLimiters) allow(ip string) bool {
	r.mu.Lock()
	l, ok := r.clients[ip]
	if !ok {
		l = &clientLimiter{bucket: rate.NewLimiter(r.rps, r.burst)}
		r.clients[ip] = l
	}
	l.lastSeen = time.Now()
	r.mu.Unlock()
	return l.bucket.Allow()
}

func (r *rateLimiters) evictStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ip, l := range r.clients {
		if time.Since(l.lastSeen) > staleAfter {
			delete(r.clients, ip)
		}
	}
}

// RateLimiter returns a Gin middleware enforcing per-IP token-bucket rate
// limiting: rps steady-state requests per second with the given burst.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	limiters := &rateLimiters{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiters.evictStale()
		}
	}()

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
