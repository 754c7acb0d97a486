package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// Authenticator exchanges API keys for tokens
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string, clientID *uuid.UUID) (*models.AuthResponse, error)
}

type AuthHandler struct {
	auth      Authenticator
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewAuthHandler(auth Authenticator, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		validator: validator.New(),
		logger:    logger,
	}
}

// Token issues a JWT for a valid API key
func (h *AuthHandler) Token(c *gin.Context) {
	var request models.AuthRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_JSON",
				"message": "Invalid JSON format",
				"details": err.Error(),
			},
		})
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	var clientID *uuid.UUID
	if request.ClientID != "" {
		parsed, err := uuid.Parse(request.ClientID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_CLIENT_ID", "Invalid client ID format"))
			return
		}
		clientID = &parsed
	}

	response, err := h.auth.Authenticate(c.Request.Context(), request.APIKey, clientID)
	if err != nil {
		h.logger.WithError(err).Warn("Token request rejected")
		respondError(c, h.logger, err, "TOKEN_ISSUE_FAILED", "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, response)
}
