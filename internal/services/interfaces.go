package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/temcen/psyrec/pkg/models"
)

// DatabaseQuerier interface for database operations
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ProfileStore persists profiles between calls
type ProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Save(ctx context.Context, profile *models.Profile) error
}

// CatalogProvider supplies catalog items with their attribute vectors
type CatalogProvider interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
}

// AttributeSource looks up missing dimension attributes for an item, e.g. a
// metadata provider
type AttributeSource interface {
	Attributes(ctx context.Context, item models.Item) (map[string]float64, error)
}

// AttributeSaver stores attributes found during enrichment
type AttributeSaver interface {
	SaveAttributes(ctx context.Context, id string, attributes map[string]float64) error
}

// EvidencePublisher queues evidence for asynchronous application
type EvidencePublisher interface {
	PublishEvidence(ctx context.Context, profileID uuid.UUID, event models.EvidenceEvent) error
}

// ProfileServiceInterface defines the interface for profile operations
type ProfileServiceInterface interface {
	Create(ctx context.Context, id *uuid.UUID) (*models.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	AnswerQuestion(ctx context.Context, id uuid.UUID, req *models.AnswerRequest, async bool) (*models.ProfileResponse, error)
	SubmitFeedback(ctx context.Context, id uuid.UUID, req *models.FeedbackRequest, async bool) (*models.ProfileResponse, error)
	ApplyEvidence(ctx context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error)
}

// RecommendationServiceInterface defines the interface for recommendation generation
type RecommendationServiceInterface interface {
	GetRecommendations(ctx context.Context, profileID uuid.UUID, opts models.RecommendationOptions) (*models.RecommendationResponse, error)
	Invalidate(ctx context.Context, profileID uuid.UUID) error
}
