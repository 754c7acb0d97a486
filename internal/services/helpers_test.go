package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// axisItem builds an item positioned on the clustering axes.
func axisItem(id string, visual, narrative, character, pace, valence, popularity float64) models.Item {
	return models.Item{
		ID:    id,
		Title: "Title " + id,
		Attributes: map[string]float64{
			DimVisualComplexity:    visual,
			DimNarrativeComplexity: narrative,
			DimCharacterComplexity: character,
			DimPacePreference:      pace,
			DimEmotionalValence:    valence,
		},
		Popularity: popularity,
	}
}

// confidentProfile starts from the registry midpoints and overrides the given
// dimensions with value and confidence.
func confidentProfile(registry *DimensionRegistry, settings map[string][2]float64) *models.Profile {
	p := registry.NewProfile(uuid.New())
	for key, vc := range settings {
		p.Values[key] = vc[0]
		p.Confidences[key] = vc[1]
	}
	return p
}

func defaultEngine() config.EngineConfig {
	return config.DefaultEngineConfig()
}

func defaultCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{EnrichmentBatchSize: 50, EnrichmentConcurrency: 4}
}
