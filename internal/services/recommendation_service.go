package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// RecommendationService loads the profile and catalog, runs the recommender
// and caches responses in redis.
type RecommendationService struct {
	profiles    ProfileStore
	catalog     CatalogProvider
	enricher    *CatalogEnricher
	recommender *Recommender
	redis       *redis.Client
	cacheTTL    time.Duration
	metrics     *EngineMetrics
	logger      *logrus.Logger
}

// NewRecommendationService creates a new recommendation service. enricher,
// redis and metrics may be nil.
func NewRecommendationService(
	profiles ProfileStore,
	catalog CatalogProvider,
	enricher *CatalogEnricher,
	recommender *Recommender,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	metrics *EngineMetrics,
	logger *logrus.Logger,
) *RecommendationService {
	return &RecommendationService{
		profiles:    profiles,
		catalog:     catalog,
		enricher:    enricher,
		recommender: recommender,
		redis:       redisClient,
		cacheTTL:    cacheTTL,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetRecommendations returns recommendations for a stored profile
func (s *RecommendationService) GetRecommendations(ctx context.Context, profileID uuid.UUID, opts models.RecommendationOptions) (*models.RecommendationResponse, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	cacheKey := s.buildCacheKey(profile, opts)
	if cached, ok := s.getCached(ctx, cacheKey); ok {
		return cached, nil
	}

	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if s.enricher != nil {
		items, err = s.enricher.Enrich(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("failed to enrich catalog: %w", err)
		}
	}

	outcome, err := s.recommender.Run(profile, items, opts)
	if err != nil {
		return nil, err
	}

	response := &models.RecommendationResponse{
		ProfileID:       profileID,
		Recommendations: outcome.Results,
		ColdStart:       outcome.ColdStart,
		GeneratedAt:     time.Now(),
	}

	if err := s.cache(ctx, cacheKey, response); err != nil {
		s.logger.WithError(err).WithField("profile_id", profileID).Warn("Failed to cache recommendations")
	}

	s.logger.WithFields(logrus.Fields{
		"profile_id": profileID,
		"count":      len(outcome.Results),
		"cold_start": outcome.ColdStart,
		"catalog":    len(items),
	}).Info("Generated recommendations")

	return response, nil
}

// Invalidate removes every cached response for a profile
func (s *RecommendationService) Invalidate(ctx context.Context, profileID uuid.UUID) error {
	if s.redis == nil {
		return nil
	}

	pattern := fmt.Sprintf("recommendations:%s:*", profileID.String())
	keys, err := s.redis.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return s.redis.Del(ctx, keys...).Err()
	}
	return nil
}

func (s *RecommendationService) getCached(ctx context.Context, key string) (*models.RecommendationResponse, bool) {
	if s.redis == nil {
		return nil, false
	}

	cached, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).Warn("Recommendation cache lookup failed")
		}
		s.metrics.ObserveCache("recommendations", false)
		return nil, false
	}

	var response models.RecommendationResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		s.metrics.ObserveCache("recommendations", false)
		return nil, false
	}

	s.metrics.ObserveCache("recommendations", true)
	response.CacheHit = true
	return &response, true
}

func (s *RecommendationService) cache(ctx context.Context, key string, response *models.RecommendationResponse) error {
	if s.redis == nil || s.cacheTTL <= 0 {
		return nil
	}

	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

// buildCacheKey includes the profile's update time so a stale entry is never
// served after the profile changes, even if invalidation failed.
func (s *RecommendationService) buildCacheKey(profile *models.Profile, opts models.RecommendationOptions) string {
	return fmt.Sprintf("recommendations:%s:%d:%d:%g:%s:%s:%s:%t:%s",
		profile.ID.String(),
		profile.LastUpdated.UnixNano(),
		opts.Count,
		opts.MinScore,
		joinSorted(opts.ExcludeIDs),
		joinSorted(opts.IncludeBuckets),
		joinSorted(opts.ExcludeBuckets),
		opts.IncludeRated,
		opts.Mood,
	)
}

func joinSorted(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
