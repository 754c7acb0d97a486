package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/services"
	"github.com/temcen/psyrec/pkg/models"
)

const maxRecommendationCount = 100

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	validator       *validator.Validate
	logger          *logrus.Logger
}

func NewRecommendationHandler(
	recommendations services.RecommendationServiceInterface,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		validator:       validator.New(),
		logger:          logger,
	}
}

func (h *RecommendationHandler) Get(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("profileId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_PROFILE_ID", "Invalid profile ID format"))
		return
	}

	opts, err := parseRecommendationOptions(c)
	if err == nil {
		err = h.validator.Struct(&opts)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_PARAMETERS",
				"message": "Invalid recommendation parameters",
				"details": err.Error(),
			},
		})
		return
	}

	response, err := h.recommendations.GetRecommendations(c.Request.Context(), profileID, opts)
	if err != nil {
		respondError(c, h.logger, err, "RECOMMENDATION_GENERATION_FAILED", "Failed to generate recommendations")
		return
	}

	c.JSON(http.StatusOK, response)
}

// parseRecommendationOptions reads the query string. An absent or
// non-positive count leaves the engine default in place.
func parseRecommendationOptions(c *gin.Context) (models.RecommendationOptions, error) {
	var opts models.RecommendationOptions

	if countStr := c.Query("count"); countStr != "" {
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return opts, err
		}
		if count > maxRecommendationCount {
			count = maxRecommendationCount
		}
		if count > 0 {
			opts.Count = count
		}
	}

	if minScoreStr := c.Query("min_score"); minScoreStr != "" {
		minScore, err := strconv.ParseFloat(minScoreStr, 64)
		if err != nil {
			return opts, err
		}
		opts.MinScore = minScore
	}

	if includeRated := c.Query("include_rated"); includeRated != "" {
		value, err := strconv.ParseBool(includeRated)
		if err != nil {
			return opts, err
		}
		opts.IncludeRated = value
	}

	opts.Mood = models.Mood(strings.ToLower(strings.TrimSpace(c.Query("mood"))))
	opts.ExcludeIDs = splitList(c.Query("exclude"))
	opts.IncludeBuckets = splitBuckets(c.Query("include_buckets"))
	opts.ExcludeBuckets = splitBuckets(c.Query("exclude_buckets"))

	return opts, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitBuckets restores the tone sign of bucket keys such as V1N2C0P3T+1
// when an unencoded '+' arrived as a space.
func splitBuckets(value string) []string {
	buckets := splitList(value)
	for i, b := range buckets {
		buckets[i] = strings.ReplaceAll(b, " ", "+")
	}
	return buckets
}
