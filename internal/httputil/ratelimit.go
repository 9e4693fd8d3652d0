package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientIdle is how long a client's bucket is kept after its last request.
const clientIdle = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*client
	limit      rate.Limit
	burst      int
	trustProxy bool
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimiter allows each client perSecond requests on average with
// bursts of up to burst requests.
func NewRateLimiter(perSecond float64, burst int, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*client),
		limit:      rate.Limit(perSecond),
		burst:      max(burst, 1),
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

// Allow consumes a token for ip and reports whether the request may proceed.
// When it may not, the returned duration is how long until a token is due.
func (l *RateLimiter) Allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > clientIdle {
		l.sweep(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops clients that have been idle long enough for their bucket to
// have refilled. Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > clientIdle {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// count returns the number of tracked clients.
func (l *RateLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After header.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := l.Allow(ClientIP(r, l.trustProxy))
		if !ok {
			secs := max(int(math.Ceil(retry.Seconds())), 1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
