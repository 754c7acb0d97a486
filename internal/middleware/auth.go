package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// Context keys set by Auth
const (
	ContextClientID   = "client_id"
	ContextClientTier = "client_tier"
	ContextAPIKey     = "api_key"
)

// TokenValidator checks bearer credentials
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
	ValidateAPIKey(apiKey string) (string, error)
}

// Auth accepts either a JWT issued by /auth/token or a raw API key as the
// bearer credential.
func Auth(authService TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "MISSING_AUTHORIZATION", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abortUnauthorized(c, "INVALID_AUTHORIZATION_FORMAT", "Authorization header must be in format 'Bearer <token>'")
			return
		}

		tokenString := tokenParts[1]

		// API keys never contain dots, JWTs always do
		if !strings.Contains(tokenString, ".") {
			tier, err := authService.ValidateAPIKey(tokenString)
			if err != nil {
				logger.WithError(err).Warn("Invalid API key")
				abortUnauthorized(c, "INVALID_API_KEY", "Invalid API key")
				return
			}

			clientID := uuid.New()
			if header := c.GetHeader("X-Client-ID"); header != "" {
				parsed, err := uuid.Parse(header)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{
						"error": gin.H{
							"code":    "INVALID_CLIENT_ID",
							"message": "Invalid client ID format",
						},
					})
					c.Abort()
					return
				}
				clientID = parsed
			}

			setClient(c, clientID, tier, tokenString)
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		setClient(c, claims.ClientID, claims.ClientTier, claims.APIKey)
		c.Next()
	}
}

func setClient(c *gin.Context, clientID uuid.UUID, tier, apiKey string) {
	c.Set(ContextClientID, clientID)
	c.Set(ContextClientTier, tier)
	c.Set(ContextAPIKey, apiKey)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

// GetClientFromContext returns the caller identity set by Auth
func GetClientFromContext(c *gin.Context) (uuid.UUID, string, bool) {
	value, exists := c.Get(ContextClientID)
	if !exists {
		return uuid.Nil, "", false
	}
	clientID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	return clientID, c.GetString(ContextClientTier), true
}
