package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateGate enforces a per-client-IP request rate for one route group.
type rateGate struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateGate(perMinute int) *rateGate {
	return &rateGate{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (g *rateGate) allow(key string) bool {
	g.mu.Lock()
	limiter, ok := g.visitors[key]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.burst)
		g.visitors[key] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}

// clientIP prefers the first X-Forwarded-For hop so limits hold behind
// a reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limited wraps a handler with a rate gate.
func limited(gate *rateGate, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !gate.allow(clientIP(r)) {
			writeErrorCode(w, "RATE_LIMITED", "too many requests, slow down")
			return
		}
		next(w, r)
	}
}
