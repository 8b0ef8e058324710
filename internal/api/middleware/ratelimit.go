package middleware

import (
	"context"
	"customer-service/internal/config"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 10 * time.Minute

type RateLimiterMiddleware struct {
	limiters sync.Map
	cfg      config.RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimiterMiddleware keeps one token bucket per client IP. Idle buckets
// are swept until ctx is cancelled.
func NewRateLimiterMiddleware(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		cfg:    cfg,
		logger: logger.With("component", "RateLimiter"),
	}

	if cfg.Enabled {
		go rl.cleanupLimiters(ctx, limiterCleanupInterval)
	}

	return rl
}

func (rl *RateLimiterMiddleware) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := rl.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
	return limiter.(*rate.Limiter)
}

func (rl *RateLimiterMiddleware) cleanupLimiters(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

// sweep drops buckets that have refilled completely.
func (rl *RateLimiterMiddleware) sweep(now time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)

		if !rl.getLimiter(ip).Allow() {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"status":  http.StatusTooManyRequests,
				"message": "Rate limit exceeded",
				"data":    nil,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
