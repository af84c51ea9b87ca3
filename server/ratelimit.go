package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/realtechee/platform/am"
)

// ipLimiter applies a token-bucket rate limit per client IP.
// Idle entries are evicted so abusive scans can't grow the map unbounded.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipEntry
	limit    rate.Limit
	burst    int
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const ipEntryTTL = 10 * time.Minute

func newIPLimiter(cfg am.Leads) *ipLimiter {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = perMinute
	}
	return &ipLimiter{
		limiters: make(map[string]*ipEntry),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether the request from ip fits inside its budget.
func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	// Opportunistic sweep of stale entries
	if len(l.limiters) > 1000 {
		for key, e := range l.limiters {
			if now.Sub(e.lastSeen) > ipEntryTTL {
				delete(l.limiters, key)
			}
		}
	}

	return entry.limiter.Allow()
}

// clientIP extracts the caller's IP, honoring X-Forwarded-For from a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
