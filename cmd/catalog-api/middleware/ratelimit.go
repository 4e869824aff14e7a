package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// RateLimit returns a middleware applying a per-client token bucket. Client
// identity is the remote IP, so RealIP must run earlier in the chain.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	limiter := newClientLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !limiter.allow(ip) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     rate.Limit
	burst   int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	cl := &clientLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
	}
	if cl.rps <= 0 {
		cl.rps = 50
	}
	if cl.burst <= 0 {
		cl.burst = 100
	}
	go cl.cleanup()
	return cl
}

func (c *clientLimiter) allow(ip string) bool {
	c.mu.Lock()
	entry, ok := c.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	c.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanup evicts buckets for clients idle longer than three minutes.
func (c *clientLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for ip, entry := range c.clients {
			if time.Since(entry.lastSeen) > 3*time.Minute {
				delete(c.clients, ip)
			}
		}
		c.mu.Unlock()
	}
}
