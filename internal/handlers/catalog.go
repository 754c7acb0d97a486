package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/services"
)

// CatalogHandler serves the dimension registry and the question bank
type CatalogHandler struct {
	registry  *services.DimensionRegistry
	questions *services.QuestionBank
	logger    *logrus.Logger
}

func NewCatalogHandler(registry *services.DimensionRegistry, questions *services.QuestionBank, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		registry:  registry,
		questions: questions,
		logger:    logger,
	}
}

func (h *CatalogHandler) Dimensions(c *gin.Context) {
	dims := h.registry.Dimensions()
	c.JSON(http.StatusOK, gin.H{
		"dimensions": dims,
		"count":      len(dims),
	})
}

func (h *CatalogHandler) Questions(c *gin.Context) {
	questions := h.questions.Questions()
	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"count":     len(questions),
	})
}
