package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/internal/database"
	"github.com/temcen/psyrec/internal/handlers"
	"github.com/temcen/psyrec/internal/messaging"
	"github.com/temcen/psyrec/internal/middleware"
	"github.com/temcen/psyrec/internal/services"
	"github.com/temcen/psyrec/pkg/models"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine

	cancel    context.CancelFunc
	consumers sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	timeout := cfg.Database.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services)

	// Setup router
	app.router = newRouter(cfg, app.logger, app.handlers, routeDeps{
		auth:      services.Auth,
		rateLimit: services.RateLimit,
		validator: middleware.NewValidationMiddleware(services.Validator),
	})

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// Start launches the background workers: health metric collectors and, when
// kafka is enabled, the evidence consumer.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.services.Health.Start(ctx)

	bus := a.services.EvidenceBus
	if bus == nil {
		return
	}

	a.consumers.Add(1)
	go func() {
		defer a.consumers.Done()
		handler := evidenceHandler(a.services.Profiles, a.logger)
		if err := bus.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Evidence consumer stopped")
		}
	}()
	a.logger.Info("Evidence consumer started")
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.consumers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Timed out waiting for evidence consumer")
	}

	if a.services.EvidenceBus != nil {
		if err := a.services.EvidenceBus.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing evidence bus")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

// evidenceApplier is the part of the profile service the consumer needs
type evidenceApplier interface {
	ApplyEvidence(ctx context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error)
}

// evidenceHandler applies queued evidence. Errors that a retry cannot fix are
// marked permanent so the message goes straight to the dead letter topic.
func evidenceHandler(profiles evidenceApplier, logger *logrus.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.EvidenceMessage) error {
		_, err := profiles.ApplyEvidence(ctx, msg.ProfileID, msg.Event)
		if err == nil {
			return nil
		}

		if isPermanent(err) {
			logger.WithError(err).WithFields(logrus.Fields{
				"profile_id":  msg.ProfileID,
				"evidence_id": msg.Event.ID,
			}).Warn("Dropping evidence that cannot be applied")
			return fmt.Errorf("%w: %v", messaging.ErrPermanent, err)
		}
		return err
	}
}

func isPermanent(err error) bool {
	for _, target := range []error{
		models.ErrProfileNotFound,
		models.ErrNilProfile,
		models.ErrUnknownEvidenceKind,
		models.ErrMissingFeedbackValue,
		models.ErrUnknownQuestion,
		models.ErrUnknownOption,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

type routeDeps struct {
	auth      middleware.TokenValidator
	rateLimit middleware.RateLimiter
	validator *middleware.ValidationMiddleware
}

func newRouter(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers, deps routeDeps) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg))

	// Health check endpoints (no auth required)
	router.GET("/health", h.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	if cfg.Monitoring.Enabled {
		metricsPath := cfg.Monitoring.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		router.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	// Token exchange happens before a client holds a token
	router.POST("/api/v1/auth/token", h.Auth.Token)

	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(deps.auth, logger))
		api.Use(middleware.RateLimit(deps.rateLimit, services.ActionRequest, logger))

		api.GET("/dimensions", h.Catalog.Dimensions)
		api.GET("/questions", h.Catalog.Questions)

		profiles := api.Group("/profiles")
		{
			profiles.POST("", h.Profile.Create)
			profiles.GET("/:profileId", h.Profile.Get)

			evidence := profiles.Group("/:profileId")
			evidence.Use(middleware.RateLimit(deps.rateLimit, services.ActionEvidence, logger))
			{
				evidence.POST("/answers", deps.validator.ValidateAnswer(), h.Profile.Answer)
				evidence.POST("/feedback", deps.validator.ValidateFeedback(), h.Profile.Feedback)
			}
		}

		api.GET("/recommendations/:profileId", h.Recommendation.Get)
	}

	return router
}
