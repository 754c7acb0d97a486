package services

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// ScoreOptions toggles the per-dimension weighting terms. A disabled term
// contributes a factor of 1.
type ScoreOptions struct {
	UseConfidence bool
	UseImportance bool
}

// SimilarityResult is the outcome of comparing a profile with an item.
type SimilarityResult struct {
	Overall      float64            `json:"overall"`
	PerDimension map[string]float64 `json:"per_dimension"`
	Weights      map[string]float64 `json:"weights"`
}

// SimilarityScorer computes bounded-distance similarity between a profile
// and an attribute vector.
type SimilarityScorer struct {
	registry *DimensionRegistry
	config   config.ScoringConfig
}

// NewSimilarityScorer creates a new similarity scorer
func NewSimilarityScorer(registry *DimensionRegistry, cfg config.ScoringConfig) *SimilarityScorer {
	return &SimilarityScorer{
		registry: registry,
		config:   cfg,
	}
}

// Score compares using the configured weighting toggles.
func (s *SimilarityScorer) Score(profile *models.Profile, attributes map[string]float64) SimilarityResult {
	return s.ScoreWith(profile, attributes, ScoreOptions{
		UseConfidence: s.config.UseConfidence,
		UseImportance: s.config.UseImportance,
	})
}

// ScoreWith compares every dimension present in both the profile and the
// attributes. With no shared dimension, or zero total weight, Overall is 0.
func (s *SimilarityScorer) ScoreWith(profile *models.Profile, attributes map[string]float64, opts ScoreOptions) SimilarityResult {
	result := SimilarityResult{
		PerDimension: make(map[string]float64),
		Weights:      make(map[string]float64),
	}
	if profile == nil || len(attributes) == 0 {
		return result
	}

	var sims, weights []float64
	for _, key := range s.registry.Keys() {
		pv, ok := profile.Values[key]
		if !ok {
			continue
		}
		av, ok := attributes[key]
		if !ok {
			continue
		}
		dim, _ := s.registry.Get(key)

		sim := DimensionSimilarity(dim, pv, av)
		weight := 1.0
		if opts.UseConfidence {
			weight *= profile.Confidence(key)
		}
		if opts.UseImportance {
			weight *= dim.Importance
		}

		result.PerDimension[key] = sim
		result.Weights[key] = weight
		sims = append(sims, sim)
		weights = append(weights, weight)
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if len(sims) == 0 || total <= 0 {
		return result
	}

	overall := stat.Mean(sims, weights)
	if math.IsNaN(overall) {
		return result
	}
	result.Overall = clampUnit(overall)
	return result
}

// RankScore blends a bounded popularity bonus into a similarity score so near
// ties break toward popular items. The bonus never exceeds PopularityBonus.
func (s *SimilarityScorer) RankScore(overall, popularity float64) float64 {
	bonus := clampUnit(s.config.PopularityBonus)
	return clampUnit(overall)*(1-bonus) + bonus*clampUnit(popularity/100)
}

// DimensionSimilarity is 1 - d^2 over normalized values, so one large
// mismatch costs more than several small ones.
func DimensionSimilarity(dim models.Dimension, a, b float64) float64 {
	d := dim.Normalize(a) - dim.Normalize(b)
	return 1 - d*d
}

// NormalizedDistance is |a-b| as a fraction of the dimension's range.
func NormalizedDistance(dim models.Dimension, a, b float64) float64 {
	return math.Abs(dim.Normalize(a) - dim.Normalize(b))
}
