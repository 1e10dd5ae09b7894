package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an IP's limiter survives without requests.
const idleLimiterTTL = 10 * time.Minute

type RateLimitMiddleware struct {
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	lastGC   time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimitMiddleware(requestsPerSecond float64, burst int) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
		limiters: make(map[string]*ipLimiter),
		lastGC:   time.Now(),
	}
}

// IPRateLimit applies a token bucket per client IP
func (r *RateLimitMiddleware) IPRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := r.limiterFor(c.ClientIP(), time.Now())

		if !limiter.Allow() {
			retryAfter := int(math.Ceil(1 / float64(r.rps)))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func (r *RateLimitMiddleware) limiterFor(ip string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastGC) > idleLimiterTTL {
		for key, l := range r.limiters {
			if now.Sub(l.lastSeen) > idleLimiterTTL {
				delete(r.limiters, key)
			}
		}
		r.lastGC = now
	}

	l, ok := r.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}
