package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/internal/database"
	"github.com/temcen/psyrec/internal/messaging"
	"github.com/temcen/psyrec/internal/validation"
	"github.com/temcen/psyrec/pkg/models"
)

type Services struct {
	Auth            *AuthService
	Health          *HealthService
	RateLimit       *RateLimitService
	Validator       *validation.SchemaValidator
	Registry        *DimensionRegistry
	Questions       *QuestionBank
	Profiles        *ProfileService
	Recommendations *RecommendationService
	Recommender     *Recommender
	Metrics         *EngineMetrics
	EvidenceBus     *messaging.EvidenceBus // nil unless kafka is enabled
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	validator, err := validation.NewDefaultSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	registry, questions, err := loadCatalogConfig(cfg.Catalog, validator, logger)
	if err != nil {
		return nil, err
	}

	authService := NewAuthService(cfg, logger, db.Redis.Hot)
	rateLimitService := NewRateLimitService(cfg, logger, db.Redis.Hot)
	healthService := NewHealthService(logger, prometheus.DefaultRegisterer, DatabaseHealthChecks(db)...).
		WithPoolStats(db.PG.Stat)

	metrics := NewEngineMetrics(prometheus.DefaultRegisterer, logger)

	profileRepo := NewProfileRepository(db.PG, logger)
	catalogRepo := NewCatalogRepository(db.PG, logger)

	enricher := NewCatalogEnricher(registry, NewGenreAttributeSource(registry, logger), catalogRepo, cfg.Catalog, metrics, logger)
	recommender := NewRecommender(registry, cfg.Engine, NewBucketCache(cfg.Engine.Caching.BucketCacheSize), metrics, logger)
	recommendationService := NewRecommendationService(
		profileRepo, catalogRepo, enricher, recommender,
		db.Redis.Warm, cfg.Engine.Caching.RecommendationsTTL, metrics, logger,
	)

	updater := NewProfileUpdater(registry, cfg.Engine.Updater, logger)
	profileService := NewProfileService(profileRepo, catalogRepo, registry, updater, questions, logger).
		WithInvalidator(recommendationService).
		WithMetrics(metrics)

	var bus *messaging.EvidenceBus
	if cfg.Kafka.Enabled {
		bus, err = messaging.NewEvidenceBus(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create evidence bus: %w", err)
		}
		profileService.WithPublisher(bus)
		healthService.WithDetails("evidence_consumer", bus.GetMetrics)
	}

	return &Services{
		Auth:            authService,
		Health:          healthService,
		RateLimit:       rateLimitService,
		Validator:       validator,
		Registry:        registry,
		Questions:       questions,
		Profiles:        profileService,
		Recommendations: recommendationService,
		Recommender:     recommender,
		Metrics:         metrics,
		EvidenceBus:     bus,
	}, nil
}

// loadCatalogConfig reads the dimension registry and question bank documents,
// falling back to the built-in defaults when no path is configured.
func loadCatalogConfig(cfg config.CatalogConfig, validator *validation.SchemaValidator, logger *logrus.Logger) (*DimensionRegistry, *QuestionBank, error) {
	dims := DefaultDimensions()
	if cfg.RegistryPath != "" {
		loaded, err := validator.LoadDimensionsFile(cfg.RegistryPath)
		if err != nil {
			return nil, nil, err
		}
		dims = loaded
	}

	registry, err := NewDimensionRegistry(dims)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build dimension registry: %w", err)
	}

	var questionList []models.Question
	if cfg.QuestionBankPath != "" {
		questionList, err = validator.LoadQuestionsFile(cfg.QuestionBankPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		questionList = DefaultQuestions()
	}

	questions, err := NewQuestionBank(questionList)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build question bank: %w", err)
	}
	if err := questions.Validate(registry); err != nil {
		// the updater skips effects on unknown dimensions
		logger.WithError(err).Warn("Question bank references dimensions outside the registry")
	}

	logger.WithFields(logrus.Fields{
		"dimensions": registry.Len(),
		"questions":  len(questionList),
	}).Info("Loaded dimension registry and question bank")

	return registry, questions, nil
}
