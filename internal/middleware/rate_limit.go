package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"sosalert/internal/utils"
	"sosalert/pkg/metrics"
)

// RateLimitConfig uses the limiter's formatted rates, e.g. "100-M".
// PerRoute keys are "METHOD /route/template" and replace the default rate
// for that route with a separate bucket.
type RateLimitConfig struct {
	Rate      string
	PerRoute  map[string]string
	SkipPaths []string
}

type RateLimiter struct {
	general   *limiter.Limiter
	routes    map[string]*limiter.Limiter
	skipPaths []string
	metrics   *metrics.Metrics
}

// NewRateLimiter builds limiters on store; a nil store means in-memory.
func NewRateLimiter(cfg RateLimitConfig, store limiter.Store, m *metrics.Metrics) (*RateLimiter, error) {
	if store == nil {
		store = memory.NewStore()
	}

	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", cfg.Rate, err)
	}

	rl := &RateLimiter{
		general:   limiter.New(store, rate),
		routes:    make(map[string]*limiter.Limiter, len(cfg.PerRoute)),
		skipPaths: cfg.SkipPaths,
		metrics:   m,
	}
	for route, formatted := range cfg.PerRoute {
		r, err := limiter.NewRateFromFormatted(formatted)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit %q for %s: %w", formatted, route, err)
		}
		rl.routes[route] = limiter.New(store, r)
	}
	return rl, nil
}

// Middleware keys buckets by client IP. Store errors let the request through.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.skipped(c.Request.URL.Path) {
			c.Next()
			return
		}

		route := c.Request.Method + " " + c.FullPath()
		lim, key := l.general, "ip:"+clientIP(c)
		if specific, ok := l.routes[route]; ok {
			lim, key = specific, "route:"+route+":"+clientIP(c)
		}

		ctx, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		if ctx.Reached {
			retry := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			l.metrics.RateLimited(route)
			utils.TooManyRequestsResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

func (l *RateLimiter) skipped(path string) bool {
	for _, prefix := range l.skipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func clientIP(c *gin.Context) string {
	return strings.TrimPrefix(c.ClientIP(), "::ffff:")
}
