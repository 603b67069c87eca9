package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/internal/ratelimit"
	"github.com/astro-comp/registrar/pkg/metrics"
	"github.com/astro-comp/registrar/pkg/response"
)

// RateLimitRule binds a policy and its rejection message to a scope.
type RateLimitRule struct {
	Scope   string
	Policy  ratelimit.Policy
	Message string
}

// RateLimit rejects clients that exceed rule's budget with 429. Limiter errors
// let the request through.
func RateLimit(limiter ratelimit.Limiter, rule RateLimitRule, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.Scope + ":" + c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key, rule.Policy)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", zap.Error(err), zap.String("scope", rule.Scope))
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		retryAfter := res.RetryAfter(time.Now())
		c.Header("RateLimit-Reset", strconv.Itoa(retryAfter))

		if !res.Allowed {
			m.IncrementRateLimited(rule.Scope)
			logger.Warn("rate limit exceeded",
				zap.String("scope", rule.Scope),
				zap.String("client_ip", c.ClientIP()),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.TooManyRequests(c, rule.Message, "Please try again later.", retryAfter)
			return
		}
		c.Next()
	}
}
