package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// RateLimiter decides whether a client may perform an action
type RateLimiter interface {
	IsAllowed(ctx context.Context, clientID, tier, action string) (bool, *models.RateLimitInfo, error)
}

// RateLimit enforces the per-client budget for action. It must run after Auth.
func RateLimit(rateLimitService RateLimiter, action string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, tier, ok := GetClientFromContext(c)
		if !ok {
			// This should not happen if auth middleware is properly configured
			logger.Error("Rate limit middleware called without client context")
			c.Next()
			return
		}
		if tier == "" {
			tier = "free"
		}

		allowed, info, err := rateLimitService.IsAllowed(c.Request.Context(), clientID.String(), tier, action)
		if err != nil {
			logger.WithError(err).Error("Failed to check rate limit")
			// Continue on error to avoid blocking requests when Redis is down
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !allowed {
			logger.WithFields(logrus.Fields{
				"client_id":   clientID,
				"client_tier": tier,
				"action":      action,
				"limit":       info.Limit,
			}).Warn("Rate limit exceeded")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
