package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/services"
	"github.com/temcen/psyrec/pkg/models"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{models.ErrProfileNotFound, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found"},
	{models.ErrItemNotFound, http.StatusNotFound, "ITEM_NOT_FOUND", "Item not found"},
	{models.ErrUnknownQuestion, http.StatusBadRequest, "UNKNOWN_QUESTION", "Unknown question"},
	{models.ErrUnknownOption, http.StatusBadRequest, "UNKNOWN_OPTION", "Unknown option for question"},
	{models.ErrMissingFeedbackValue, http.StatusBadRequest, "MISSING_FEEDBACK_VALUE", "Feedback requires a rating or a reaction"},
	{models.ErrUnknownEvidenceKind, http.StatusBadRequest, "UNKNOWN_EVIDENCE_KIND", "Unknown evidence kind"},
	{models.ErrInvalidDimension, http.StatusBadRequest, "INVALID_DIMENSION", "Invalid dimension"},
	{services.ErrInvalidAPIKey, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key"},
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError writes the error envelope for err. Unmapped errors are logged
// and reported as fallbackCode with status 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error, fallbackCode, fallbackMessage string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{
				"error": gin.H{
					"code":    m.code,
					"message": m.message,
					"details": err.Error(),
				},
			})
			return
		}
	}

	logger.WithError(err).WithField("path", c.FullPath()).Error(fallbackMessage)
	c.JSON(http.StatusInternalServerError, errorResponse(fallbackCode, fallbackMessage))
}
