package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"routeplan/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrader take over the connection.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

// LogMiddleware logs each request and records Prometheus request metrics.
func LogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		dur := time.Since(start)
		status := strconv.Itoa(sr.status)
		path := routeLabel(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sr.status, dur)
	})
}

// routeLabel collapses plan, subscription and delivery ids so metric label
// cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "plans", "subscriptions", "webhook-deliveries":
			if parts[i] != "ws" {
				parts[i] = "{id}"
			}
		}
	}
	return "/" + strings.Join(parts, "/")
}

// RateLimiter hands out one token bucket per tenant.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterFromEnv reads RATE_RPS and RATE_BURST; it returns nil when
// RATE_RPS is unset or not positive.
func NewRateLimiterFromEnv() *RateLimiter {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_RPS"), 64)
	if err != nil || rps <= 0 {
		return nil
	}
	burst, err := strconv.Atoi(os.Getenv("RATE_BURST"))
	if err != nil || burst <= 0 {
		burst = int(rps) + 1
	}
	return NewRateLimiter(rps, burst)
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (rl *RateLimiter) Allow(tenant string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[tenant]
	if !ok {
		l = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[tenant] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Middleware rejects bad bearer tokens with 401 and over-limit tenants with 429.
// Health, readiness and metrics endpoints bypass both checks.
func (s *Server) Middleware(rl *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if err := s.bearerRejected(r); err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		if rl != nil && !rl.Allow(s.getPrincipal(r).Tenant) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "tenant rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
