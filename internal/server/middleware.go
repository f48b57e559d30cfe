package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates or assigns X-Request-ID and stores a request-scoped logger in the context.
func RequestID(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)

		ctx := common.WithRequestID(c.Request.Context(), id)
		ctx = common.WithLogger(ctx, logger.With("request_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		common.LoggerFromContext(c.Request.Context(), logger).Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// RateLimiterConfig configures a per-client token bucket.
type RateLimiterConfig struct {
	RPS       float64
	Burst     int
	Extractor func(c *gin.Context) string
}

// NewRateLimiter rejects requests beyond RPS per client with 429.
func NewRateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Extractor == nil {
		cfg.Extractor = func(c *gin.Context) string { return c.ClientIP() }
	}
	var (
		mu       sync.Mutex
		limiters = map[string]*rate.Limiter{}
	)
	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
			limiters[key] = l
		}
		return l
	}

	return func(c *gin.Context) {
		if cfg.RPS <= 0 {
			c.Next()
			return
		}
		id := cfg.Extractor(c)
		if id == "" {
			id = "anonymous"
		}
		if !get(id).Allow() {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%g", cfg.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
