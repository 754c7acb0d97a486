package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/services"
	"github.com/temcen/psyrec/pkg/models"
)

type ProfileHandler struct {
	profiles  services.ProfileServiceInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewProfileHandler(profiles services.ProfileServiceInterface, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles:  profiles,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create stores a new first-contact profile. The body is optional and may
// carry a client chosen id.
func (h *ProfileHandler) Create(c *gin.Context) {
	var request models.CreateProfileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			h.invalidBody(c, err)
			return
		}
	}
	if err := h.validator.Struct(&request); err != nil {
		h.validationFailed(c, err)
		return
	}

	var id *uuid.UUID
	if request.ID != "" {
		parsed, err := uuid.Parse(request.ID)
		if err != nil {
			h.validationFailed(c, err)
			return
		}
		id = &parsed
	}

	profile, err := h.profiles.Create(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "PROFILE_CREATION_FAILED", "Failed to create profile")
		return
	}

	c.JSON(http.StatusCreated, models.ProfileResponse{Profile: profile})
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profileID, ok := h.profileID(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, h.logger, err, "PROFILE_RETRIEVAL_FAILED", "Failed to retrieve profile")
		return
	}

	c.JSON(http.StatusOK, models.ProfileResponse{Profile: profile})
}

// Answer applies an answered question. With ?async=true the evidence is
// queued and 202 is returned.
func (h *ProfileHandler) Answer(c *gin.Context) {
	profileID, ok := h.profileID(c)
	if !ok {
		return
	}

	var request models.AnswerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidBody(c, err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		h.validationFailed(c, err)
		return
	}

	response, err := h.profiles.AnswerQuestion(c.Request.Context(), profileID, &request, c.Query("async") == "true")
	if err != nil {
		respondError(c, h.logger, err, "ANSWER_FAILED", "Failed to apply answer")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"profile_id":  profileID,
		"question_id": request.QuestionID,
		"option_id":   request.OptionID,
		"queued":      response.Queued,
	}).Debug("Answer accepted")

	c.JSON(evidenceStatus(response), response)
}

// Feedback applies a rating or reaction on a catalog item
func (h *ProfileHandler) Feedback(c *gin.Context) {
	profileID, ok := h.profileID(c)
	if !ok {
		return
	}

	var request models.FeedbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.invalidBody(c, err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		h.validationFailed(c, err)
		return
	}

	response, err := h.profiles.SubmitFeedback(c.Request.Context(), profileID, &request, c.Query("async") == "true")
	if err != nil {
		respondError(c, h.logger, err, "FEEDBACK_FAILED", "Failed to apply feedback")
		return
	}

	c.JSON(evidenceStatus(response), response)
}

func evidenceStatus(response *models.ProfileResponse) int {
	if response.Queued {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (h *ProfileHandler) profileID(c *gin.Context) (uuid.UUID, bool) {
	profileID, err := uuid.Parse(c.Param("profileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_PROFILE_ID", "Invalid profile ID format"))
		return uuid.Nil, false
	}
	return profileID, true
}

func (h *ProfileHandler) invalidBody(c *gin.Context, err error) {
	h.logger.WithError(err).Warn("Invalid JSON in profile request")
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    "INVALID_JSON",
			"message": "Invalid JSON format",
			"details": err.Error(),
		},
	})
}

func (h *ProfileHandler) validationFailed(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    "VALIDATION_FAILED",
			"message": "Request validation failed",
			"details": err.Error(),
		},
	})
}
