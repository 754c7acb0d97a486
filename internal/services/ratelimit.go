package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// Rate limited actions. Evidence submissions get a tighter budget than reads.
const (
	ActionRequest  = "request"
	ActionEvidence = "evidence"
)

// RateLimitService implements sliding window rate limiting on redis. It fails
// open when redis is unavailable.
type RateLimitService struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	now         func() time.Time
}

func NewRateLimitService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		now:         time.Now,
	}
}

// CheckLimit records one call of action for clientID and reports the budget
// left in the current window.
func (s *RateLimitService) CheckLimit(ctx context.Context, clientID, tier, action string) (*models.RateLimitInfo, error) {
	limit := s.LimitFor(tier, action)
	window := s.config.Auth.RateLimit.Window
	now := s.now()

	permissive := &models.RateLimitInfo{
		Limit:     limit,
		Remaining: limit - 1,
		ResetTime: now.Add(window).Unix(),
	}
	if s.redisClient == nil {
		return permissive, nil
	}

	key := fmt.Sprintf("rate_limit:%s:%s", clientID, action)
	windowStart := now.Add(-window)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to execute rate limit pipeline")
		return permissive, nil
	}

	remaining := limit - int(countCmd.Val()) - 1
	if remaining < -1 {
		remaining = -1
	}

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(window).Unix(),
	}, nil
}

// IsAllowed is CheckLimit reduced to a decision. Remaining is negative once
// the call exceeds the budget.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientID, tier, action string) (bool, *models.RateLimitInfo, error) {
	info, err := s.CheckLimit(ctx, clientID, tier, action)
	if err != nil {
		return false, nil, err
	}

	allowed := info.Remaining >= 0
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return allowed, info, nil
}

// LimitFor returns the per-window budget for a tier and action
func (s *RateLimitService) LimitFor(tier, action string) int {
	var limit int
	switch tier {
	case "premium":
		limit = s.config.Auth.RateLimit.Premium
	case "enterprise":
		limit = s.config.Auth.RateLimit.Premium * 10
	default:
		limit = s.config.Auth.RateLimit.Default
	}

	if action == ActionEvidence {
		limit /= 2
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
