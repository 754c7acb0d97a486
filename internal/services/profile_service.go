package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// CacheInvalidator drops derived data for a profile after it changes
type CacheInvalidator interface {
	Invalidate(ctx context.Context, profileID uuid.UUID) error
}

// ProfileService loads, updates and stores profiles. Updates to one profile
// are serialized within the process; across processes the evidence topic is
// keyed by profile id.
type ProfileService struct {
	store       ProfileStore
	catalog     CatalogProvider
	registry    *DimensionRegistry
	updater     *ProfileUpdater
	questions   *QuestionBank
	publisher   EvidencePublisher
	invalidator CacheInvalidator
	metrics     *EngineMetrics
	logger      *logrus.Logger

	locks [64]sync.Mutex
}

// NewProfileService creates a new profile service
func NewProfileService(
	store ProfileStore,
	catalog CatalogProvider,
	registry *DimensionRegistry,
	updater *ProfileUpdater,
	questions *QuestionBank,
	logger *logrus.Logger,
) *ProfileService {
	return &ProfileService{
		store:     store,
		catalog:   catalog,
		registry:  registry,
		updater:   updater,
		questions: questions,
		logger:    logger,
	}
}

// WithPublisher enables asynchronous evidence submission.
func (s *ProfileService) WithPublisher(publisher EvidencePublisher) *ProfileService {
	s.publisher = publisher
	return s
}

// WithInvalidator registers a cache to clear after each update.
func (s *ProfileService) WithInvalidator(invalidator CacheInvalidator) *ProfileService {
	s.invalidator = invalidator
	return s
}

func (s *ProfileService) WithMetrics(metrics *EngineMetrics) *ProfileService {
	s.metrics = metrics
	return s
}

// Create stores a first-contact profile. An existing profile with the same
// id is returned unchanged.
func (s *ProfileService) Create(ctx context.Context, id *uuid.UUID) (*models.Profile, error) {
	profileID := uuid.New()
	if id != nil {
		profileID = *id

		existing, err := s.store.Get(ctx, profileID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
	}

	profile := s.registry.NewProfile(profileID)
	profile.LastUpdated = time.Now()

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.WithField("profile_id", profileID).Info("Created profile")
	return profile, nil
}

func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return s.store.Get(ctx, id)
}

// AnswerQuestion resolves the answer and applies it, or queues it when async
// is set and a publisher is configured.
func (s *ProfileService) AnswerQuestion(ctx context.Context, id uuid.UUID, req *models.AnswerRequest, async bool) (*models.ProfileResponse, error) {
	event, err := s.questions.Resolve(req.QuestionID, req.OptionID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, id, event, async)
}

// SubmitFeedback builds a feedback event from the rated item's attributes.
func (s *ProfileService) SubmitFeedback(ctx context.Context, id uuid.UUID, req *models.FeedbackRequest, async bool) (*models.ProfileResponse, error) {
	if req.Rating == nil && req.Reaction == "" {
		return nil, models.ErrMissingFeedbackValue
	}

	item, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	event := models.EvidenceEvent{
		ID:             models.FeedbackEvidenceID(item.ID),
		Kind:           models.EvidenceFeedback,
		Timestamp:      time.Now(),
		ItemID:         item.ID,
		ItemAttributes: item.Attributes,
		Rating:         req.Rating,
		Reaction:       models.Reaction(req.Reaction),
	}
	return s.submit(ctx, id, event, async)
}

func (s *ProfileService) submit(ctx context.Context, id uuid.UUID, event models.EvidenceEvent, async bool) (*models.ProfileResponse, error) {
	if async && s.publisher != nil {
		profile, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.publisher.PublishEvidence(ctx, id, event); err != nil {
			return nil, fmt.Errorf("failed to queue evidence: %w", err)
		}
		return &models.ProfileResponse{Profile: profile, Queued: true}, nil
	}

	profile, err := s.ApplyEvidence(ctx, id, event)
	if err != nil {
		return nil, err
	}
	return &models.ProfileResponse{Profile: profile}, nil
}

// ApplyEvidence loads the profile, applies event and stores the result.
func (s *ProfileService) ApplyEvidence(ctx context.Context, id uuid.UUID, event models.EvidenceEvent) (*models.Profile, error) {
	lock := &s.locks[int(id[len(id)-1])%len(s.locks)]
	lock.Lock()
	defer lock.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.updater.Apply(current, event)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to store updated profile: %w", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, id); err != nil {
			s.logger.WithError(err).WithField("profile_id", id).Warn("Failed to invalidate cached recommendations")
		}
	}
	s.metrics.IncProfileUpdate(string(event.Kind))

	s.logger.WithFields(logrus.Fields{
		"profile_id":        id,
		"kind":              event.Kind,
		"evidence_id":       event.ID,
		"interaction_count": updated.InteractionCount,
	}).Info("Applied evidence")

	return updated, nil
}
