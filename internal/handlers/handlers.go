package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Auth           *AuthHandler
	Catalog        *CatalogHandler
	Profile        *ProfileHandler
	Recommendation *RecommendationHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Auth:           NewAuthHandler(services.Auth, logger),
		Catalog:        NewCatalogHandler(services.Registry, services.Questions, logger),
		Profile:        NewProfileHandler(services.Profiles, logger),
		Recommendation: NewRecommendationHandler(services.Recommendations, logger),
	}
}
