package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RouteLimit is the token-bucket budget applied to one route.
type RouteLimit struct {
	Rate  rate.Limit
	Burst int
}

// register/challenge/verify have distinct abuse profiles: registering
// an account is rare and should be capped hard against username
// squatting; challenge issuance is cheap (one hash) but is the entry
// point for user enumeration; verify drives the CPU-bound modPow
// stage through the worker pool, so its budget sits below challenge's
// to let the rate limiter shed load before the pool's queue does.
var (
	DefaultRegisterLimit  = RouteLimit{Rate: 2, Burst: 5}
	DefaultChallengeLimit = RouteLimit{Rate: 10, Burst: 20}
	DefaultVerifyLimit    = RouteLimit{Rate: 5, Burst: 10}

	// DefaultFallbackLimit applies to any route given to Middleware
	// without its own entry in RateLimiter's route table.
	DefaultFallbackLimit = RouteLimit{Rate: 10, Burst: 20}
)

// RateLimiter provides per-IP, per-route rate limiting using the
// token bucket algorithm. Each IP gets an independent bucket per
// route, so a flood against /verify can't burn through the budget a
// legitimate client still has left for /challenge.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.RWMutex
	routes   map[string]RouteLimit
	fallback RouteLimit
	cleanup  time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter with per-route budgets. routes
// maps a route label (the same label passed to Middleware) to its
// RouteLimit; a label with no entry falls back to fallback.
func NewRateLimiter(routes map[string]RouteLimit, fallback RouteLimit) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		routes:   routes,
		fallback: fallback,
		cleanup:  time.Minute,
	}

	// Start cleanup goroutine
	go rl.cleanupLoop()

	return rl
}

// cleanupLoop removes stale entries every minute.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	for range ticker.C {
		rl.mu.Lock()
		for key, client := range rl.limiters {
			if time.Since(client.lastSeen) > 3*time.Minute {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) limitFor(route string) RouteLimit {
	if limit, ok := rl.routes[route]; ok {
		return limit
	}
	return rl.fallback
}

// Allow checks if a request from the given IP against route should be
// allowed.
func (rl *RateLimiter) Allow(ip, route string) bool {
	key := route + "|" + ip

	// Fast path: check if limiter exists with read lock
	rl.mu.RLock()
	client, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		limit := rl.limitFor(route)
		// Slow path: create new limiter with write lock
		rl.mu.Lock()
		// Double-check after acquiring write lock
		client, exists = rl.limiters[key]
		if !exists {
			client = &clientLimiter{
				limiter:  rate.NewLimiter(limit.Rate, limit.Burst),
				lastSeen: time.Now(),
			}
			rl.limiters[key] = client
		}
		rl.mu.Unlock()
	}

	// Update lastSeen (atomic operation on limiter is safe)
	client.lastSeen = time.Now()

	return client.limiter.Allow()
}

// Middleware returns an HTTP middleware enforcing route's budget
// per-IP. Each protocol endpoint wraps its own handler with a
// distinct route label so budgets don't bleed into one another.
func (rl *RateLimiter) Middleware(route string) func(http.Handler) http.Handler {
	limit := rl.limitFor(route)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)

			if !rl.Allow(ip, route) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ConnectionLimiter limits concurrent connections per IP.
type ConnectionLimiter struct {
	connections map[string]int
	mu          sync.Mutex
	maxPerIP    int
}

// DefaultMaxConnectionsPerIP is 200 concurrent connections per IP
const DefaultMaxConnectionsPerIP = 200

// NewConnectionLimiter creates a new connection limiter.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	return &ConnectionLimiter{
		connections: make(map[string]int),
		maxPerIP:    maxPerIP,
	}
}

// Acquire tries to acquire a connection slot for the given IP.
// Returns true if allowed, false if limit reached.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.connections[ip] >= cl.maxPerIP {
		return false
	}
	cl.connections[ip]++
	return true
}

// Release releases a connection slot for the given IP.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.connections[ip] > 0 {
		cl.connections[ip]--
	}
	if cl.connections[ip] == 0 {
		delete(cl.connections, ip)
	}
}

// Middleware returns an HTTP middleware that enforces connection limits.
func (cl *ConnectionLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)

		if !cl.Acquire(ip) {
			http.Error(w, "Too Many Connections", http.StatusServiceUnavailable)
			return
		}
		defer cl.Release(ip)

		next.ServeHTTP(w, r)
	})
}

// extractIP gets the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers first (for proxies),
// then falls back to RemoteAddr.
func extractIP(r *http.Request) string {
	// Check X-Forwarded-For (may contain multiple IPs)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client), before any comma
		for i, c := range xff {
			if c == ',' {
				return strings.TrimSpace(xff[:i])
			}
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
