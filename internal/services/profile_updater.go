package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// ProfileUpdater applies evidence to profiles by confidence-weighted
// blending. Apply never mutates its input.
type ProfileUpdater struct {
	registry *DimensionRegistry
	config   config.UpdaterConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewProfileUpdater creates a new profile updater
func NewProfileUpdater(registry *DimensionRegistry, cfg config.UpdaterConfig, logger *logrus.Logger) *ProfileUpdater {
	return &ProfileUpdater{
		registry: registry,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for LastUpdated.
func (u *ProfileUpdater) WithClock(now func() time.Time) *ProfileUpdater {
	u.now = now
	return u
}

// Apply returns a new profile with event folded in.
func (u *ProfileUpdater) Apply(profile *models.Profile, event models.EvidenceEvent) (*models.Profile, error) {
	if profile == nil {
		return nil, models.ErrNilProfile
	}

	var effects []models.DimensionEffect
	evidenceID := event.ID

	switch event.Kind {
	case models.EvidenceChoice:
		effects = event.Effects
		if evidenceID == "" {
			evidenceID = models.ChoiceEvidenceID(event.QuestionID)
		}
	case models.EvidenceFeedback:
		fx, err := u.feedbackEffects(event)
		if err != nil {
			return nil, err
		}
		effects = fx
		if evidenceID == "" {
			evidenceID = models.FeedbackEvidenceID(event.ItemID)
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEvidenceKind, event.Kind)
	}

	if evidenceID == "" || evidenceID == models.ChoiceEvidenceID("") {
		evidenceID = uuid.NewString()
	}

	updated := profile.Clone()
	if updated.AnsweredEvidenceIDs == nil {
		updated.AnsweredEvidenceIDs = models.NewStringSet()
	}
	if updated.Values == nil {
		updated.Values = make(map[string]float64)
	}
	if updated.Confidences == nil {
		updated.Confidences = make(map[string]float64)
	}

	applied := 0
	for _, effect := range effects {
		dim, ok := u.registry.Get(effect.Dimension)
		if !ok {
			continue
		}

		current, hasValue := updated.Values[dim.Key]
		if !hasValue {
			current = dim.Midpoint()
		}
		currentConf := clampUnit(updated.Confidences[dim.Key])

		value, conf := u.blend(dim.Clamp(current), currentConf, dim.Clamp(effect.Target), clampUnit(effect.Confidence))
		updated.Values[dim.Key] = dim.Clamp(value)
		updated.Confidences[dim.Key] = conf
		applied++
	}

	updated.AnsweredEvidenceIDs[evidenceID] = struct{}{}
	updated.InteractionCount++
	updated.LastUpdated = u.now()

	u.logger.WithFields(logrus.Fields{
		"profile_id":  updated.ID,
		"evidence_id": evidenceID,
		"kind":        event.Kind,
		"dimensions":  applied,
	}).Debug("Applied evidence to profile")

	return updated, nil
}

// ApplyAll folds events in order. No events returns an unchanged copy.
func (u *ProfileUpdater) ApplyAll(profile *models.Profile, events []models.EvidenceEvent) (*models.Profile, error) {
	if profile == nil {
		return nil, models.ErrNilProfile
	}

	current := profile.Clone()
	for _, event := range events {
		next, err := u.Apply(current, event)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// blend computes the confidence-weighted average and the diminishing-returns
// confidence accumulation.
func (u *ProfileUpdater) blend(current, currentConf, target, asserted float64) (float64, float64) {
	var value float64
	switch {
	case asserted == 0:
		value = current
	case currentConf == 0:
		value = target
	default:
		value = (current*currentConf + target*asserted) / (currentConf + asserted)
	}

	var conf float64
	if currentConf == 0 {
		conf = math.Min(asserted, u.config.FirstObservationCap)
	} else {
		conf = currentConf + (1-currentConf)*asserted*u.config.AccumulationRate
	}
	conf = math.Min(conf, u.config.ConfidenceCap)

	// never lose confidence, even if a stored value already sits above the cap
	return value, math.Max(conf, currentConf)
}

// feedbackEffects converts a rating or reaction into per-dimension effects.
func (u *ProfileUpdater) feedbackEffects(event models.EvidenceEvent) ([]models.DimensionEffect, error) {
	strength, positive, err := u.feedbackStrength(event)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(event.ItemAttributes))
	for k := range event.ItemAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	effects := make([]models.DimensionEffect, 0, len(keys))
	for _, key := range keys {
		dim, ok := u.registry.Get(key)
		if !ok {
			continue
		}
		value := dim.Clamp(event.ItemAttributes[key])

		if positive {
			effects = append(effects, models.DimensionEffect{
				Dimension:  key,
				Target:     value,
				Confidence: strength * u.config.PositiveWeight,
			})
			continue
		}

		effects = append(effects, models.DimensionEffect{
			Dimension:  key,
			Target:     reflectAway(dim, value),
			Confidence: strength * u.config.NegativeWeight,
		})
	}

	return effects, nil
}

// feedbackStrength maps a rating or reaction to a strength in [0,1] and a
// direction. Ratings near the scale midpoint carry little information.
func (u *ProfileUpdater) feedbackStrength(event models.EvidenceEvent) (float64, bool, error) {
	if event.Rating != nil {
		lo, hi := u.config.RatingMin, u.config.RatingMax
		mid := (lo + hi) / 2
		rating := math.Max(lo, math.Min(hi, *event.Rating))
		strength := math.Abs(rating-mid) / (hi - mid)
		return clampUnit(strength), rating > mid, nil
	}

	switch event.Reaction {
	case models.ReactionLike:
		return u.config.LikeStrength, true, nil
	case models.ReactionDislike:
		return u.config.DislikeStrength, false, nil
	case models.ReactionNeutral:
		return u.config.NeutralStrength, true, nil
	case "":
		return 0, false, models.ErrMissingFeedbackValue
	default:
		return 0, false, fmt.Errorf("%w: unknown reaction %q", models.ErrMissingFeedbackValue, event.Reaction)
	}
}

// reflectAway returns the midpoint between value and the bound farther from
// it. A dislike says what to avoid, so the target moves to the other side.
func reflectAway(dim models.Dimension, value float64) float64 {
	far := dim.Max
	if value >= dim.Midpoint() {
		far = dim.Min
	}
	return (value + far) / 2
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
