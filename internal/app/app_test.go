package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/internal/handlers"
	"github.com/temcen/psyrec/internal/messaging"
	"github.com/temcen/psyrec/internal/middleware"
	"github.com/temcen/psyrec/internal/services"
	"github.com/temcen/psyrec/internal/validation"
	"github.com/temcen/psyrec/pkg/models"
)

type applierFunc func(ctx context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error)

func (f applierFunc) ApplyEvidence(ctx context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error) {
	return f(ctx, id, event)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestEvidenceHandler(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantErr       bool
		wantPermanent bool
	}{
		{name: "applied"},
		{name: "transient failure is retried", err: errors.New("connection reset"), wantErr: true},
		{name: "unknown profile is permanent", err: fmt.Errorf("load: %w", models.ErrProfileNotFound), wantErr: true, wantPermanent: true},
		{name: "bad event is permanent", err: models.ErrUnknownEvidenceKind, wantErr: true, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := messaging.EvidenceMessage{
				ProfileID: uuid.New(),
				Event:     models.EvidenceEvent{ID: "question:palette", Kind: models.EvidenceChoice},
				Timestamp: time.Now(),
			}

			var gotID uuid.UUID
			handler := evidenceHandler(applierFunc(func(_ context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error) {
				gotID = id
				assert.Equal(t, msg.Event.ID, event.ID)
				return nil, tt.err
			}), newTestLogger())

			err := handler(context.Background(), msg)
			assert.Equal(t, msg.ProfileID, gotID)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, messaging.ErrPermanent))
		})
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	logger := setupLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "text"
	logger = setupLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

type staticHealth struct{}

func (staticHealth) CheckHealth(context.Context) *services.HealthStatus {
	return &services.HealthStatus{Status: "healthy", Timestamp: time.Now()}
}

type allowAll struct{}

func (allowAll) IsAllowed(context.Context, string, string, string) (bool, *models.RateLimitInfo, error) {
	return true, &models.RateLimitInfo{Limit: 100, Remaining: 99}, nil
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := newTestLogger()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.APIKeys = map[string]string{"demo-free-key": "free"}
	cfg.Monitoring.Enabled = true
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	cfg.Security.CORS.AllowedMethods = []string{"GET", "POST"}
	cfg.Security.CORS.AllowedHeaders = []string{"*"}

	registry := services.MustDefaultRegistry()
	questions, err := services.NewQuestionBank(services.DefaultQuestions())
	require.NoError(t, err)
	sv, err := validation.NewDefaultSchemaValidator()
	require.NoError(t, err)

	auth := services.NewAuthService(cfg, logger, nil)
	h := &handlers.Handlers{
		Health:  handlers.NewHealthHandler(logger, staticHealth{}),
		Auth:    handlers.NewAuthHandler(auth, logger),
		Catalog: handlers.NewCatalogHandler(registry, questions, logger),
	}
	router := newRouter(cfg, logger, h, routeDeps{
		auth:      auth,
		rateLimit: allowAll{},
		validator: middleware.NewValidationMiddleware(sv),
	})

	tests := []struct {
		name           string
		method         string
		path           string
		authorization  string
		expectedStatus int
	}{
		{"health is public", "GET", "/health", "", http.StatusOK},
		{"metrics are public", "GET", "/metrics", "", http.StatusOK},
		{"api requires credentials", "GET", "/api/v1/dimensions", "", http.StatusUnauthorized},
		{"api key grants access", "GET", "/api/v1/questions", "Bearer demo-free-key", http.StatusOK},
		{"unknown api key", "GET", "/api/v1/questions", "Bearer other-key", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.path, nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	t.Run("issued token grants access", func(t *testing.T) {
		resp, err := auth.Authenticate(context.Background(), "demo-free-key", nil)
		require.NoError(t, err)

		req, _ := http.NewRequest("GET", "/api/v1/dimensions", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}
