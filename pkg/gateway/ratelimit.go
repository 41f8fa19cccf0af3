package gateway

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/larsjoon/joonify/pkg/httputil"
)

// RateLimitConfig defines per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerWindow is the sustained number of requests per window.
	RequestsPerWindow int `yaml:"requests_per_window"`
	// WindowDuration is the refill window.
	WindowDuration time.Duration `yaml:"window_duration"`
	// BurstSize is the number of requests allowed at once.
	BurstSize int `yaml:"burst_size"`
	// MaxClients bounds the number of tracked clients.
	MaxClients int `yaml:"max_clients"`
	// TrustProxyHeaders keys clients by CF-Connecting-IP, X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// DefaultRateLimitConfig returns default contact form limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    10 * time.Minute,
		BurstSize:         3,
		MaxClients:        10000,
	}
}

// ClientLimiter keeps one token bucket per client IP. Idle clients expire
// after two windows; the least recently seen client is evicted at capacity.
type ClientLimiter struct {
	config   RateLimitConfig
	limit    rate.Limit
	mu       sync.Mutex
	limiters *lru.LRU[string, *rate.Limiter]
}

// NewClientLimiter creates a limiter. Zero fields take defaults.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	d := DefaultRateLimitConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = d.RequestsPerWindow
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = d.WindowDuration
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = d.BurstSize
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = d.MaxClients
	}

	return &ClientLimiter{
		config:   cfg,
		limit:    rate.Limit(float64(cfg.RequestsPerWindow) / cfg.WindowDuration.Seconds()),
		limiters: lru.NewLRU[string, *rate.Limiter](cfg.MaxClients, nil, 2*cfg.WindowDuration),
	}
}

// Allow reports whether client may make a request now.
func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.config.BurstSize)
		l.limiters.Add(client, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429. onLimited, when set,
// is called for every rejected request.
func (l *ClientLimiter) Middleware(next http.Handler, onLimited func(*http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r, l.config.TrustProxyHeaders)) {
			if onLimited != nil {
				onLimited(r)
			}
			retryAfter := l.config.WindowDuration / time.Duration(l.config.RequestsPerWindow)
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote host. With trustProxy set, proxy headers take
// precedence: CF-Connecting-IP, the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
			return strings.TrimSpace(cf)
		}
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
