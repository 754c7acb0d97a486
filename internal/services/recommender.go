package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// Pipeline stage names used in logs and metrics.
const (
	StageExcluded        = "excluded"
	StageCandidates      = "candidates"
	StageBucketed        = "bucketed"
	StageRepresentatives = "representatives"
	StageScored          = "scored"
	StageFinal           = "final"
)

// RecommendationOutcome is the full result of one pipeline run.
type RecommendationOutcome struct {
	Results   []models.RecommendationResult
	ColdStart bool
}

// Recommender runs the recommendation pipeline over an in-memory catalog.
// It holds no per-call state, so one instance serves concurrent calls.
type Recommender struct {
	registry    *DimensionRegistry
	config      config.EngineConfig
	filter      *CandidateFilter
	clusterer   *Clusterer
	selector    *RepresentativeSelector
	scorer      *SimilarityScorer
	mood        *MoodScorer
	diversifier *Diversifier
	explainer   *ExplanationService
	metrics     *EngineMetrics
	logger      *logrus.Logger
}

// NewRecommender creates a new recommender. cache and metrics may be nil.
func NewRecommender(
	registry *DimensionRegistry,
	cfg config.EngineConfig,
	cache *BucketCache,
	metrics *EngineMetrics,
	logger *logrus.Logger,
) *Recommender {
	scorer := NewSimilarityScorer(registry, cfg.Scoring)
	clusterer := NewClusterer(registry, cfg.Clustering, cache)

	return &Recommender{
		registry:    registry,
		config:      cfg,
		filter:      NewCandidateFilter(registry, cfg.Filter, logger),
		clusterer:   clusterer,
		selector:    NewRepresentativeSelector(clusterer, scorer, cfg.Representatives, logger),
		scorer:      scorer,
		mood:        NewMoodScorer(registry, cfg.Scoring.MoodWeight),
		diversifier: NewDiversifier(cfg.Diversity, logger),
		explainer:   NewExplanationService(registry, cfg.Explanation, logger),
		metrics:     metrics,
		logger:      logger,
	}
}

// Clusterer exposes the recommender's clusterer.
func (r *Recommender) Clusterer() *Clusterer {
	return r.clusterer
}

// Explainer exposes the recommender's explanation service.
func (r *Recommender) Explainer() *ExplanationService {
	return r.explainer
}

// Recommend returns ranked, diversified and explained results.
func (r *Recommender) Recommend(profile *models.Profile, catalog []models.Item, opts models.RecommendationOptions) ([]models.RecommendationResult, error) {
	outcome, err := r.Run(profile, catalog, opts)
	if err != nil {
		return nil, err
	}
	return outcome.Results, nil
}

// Run is Recommend with pipeline metadata.
func (r *Recommender) Run(profile *models.Profile, catalog []models.Item, opts models.RecommendationOptions) (*RecommendationOutcome, error) {
	start := time.Now()
	if profile == nil {
		r.metrics.ObserveRecommendation(start, false, models.ErrNilProfile)
		return nil, models.ErrNilProfile
	}

	count := opts.Count
	if count <= 0 {
		count = r.config.DefaultCount
	}

	pool := r.applyExclusions(profile, catalog, opts)
	r.metrics.SetStageItems(StageExcluded, len(pool))

	filtered := r.filter.Filter(profile, pool)
	r.metrics.SetStageItems(StageCandidates, len(filtered.Candidates))

	candidates := r.applyBucketFilters(filtered.Candidates, opts)
	r.metrics.SetStageItems(StageBucketed, len(candidates))

	var final []ScoredItem
	if filtered.ColdStart {
		final = r.rankByPopularity(candidates, opts.MinScore, count)
	} else {
		reps := r.selector.Select(candidates, profile, count)
		r.metrics.SetStageItems(StageRepresentatives, len(reps))

		scored := r.fineScore(profile, reps, opts)
		r.metrics.SetStageItems(StageScored, len(scored))

		final = r.diversifier.Diversify(scored, count)
	}
	r.metrics.SetStageItems(StageFinal, len(final))

	results := r.explain(profile, final, filtered.ColdStart)

	r.logger.WithFields(logrus.Fields{
		"profile_id": profile.ID,
		"catalog":    len(catalog),
		"candidates": len(candidates),
		"results":    len(results),
		"cold_start": filtered.ColdStart,
		"mood":       opts.Mood,
		"duration":   time.Since(start),
	}).Debug("Generated recommendations")

	r.metrics.ObserveRecommendation(start, filtered.ColdStart, nil)
	return &RecommendationOutcome{Results: results, ColdStart: filtered.ColdStart}, nil
}

// applyExclusions drops explicitly excluded items and, unless IncludeRated is
// set, items the profile has already given feedback on.
func (r *Recommender) applyExclusions(profile *models.Profile, catalog []models.Item, opts models.RecommendationOptions) []models.Item {
	excluded := models.NewStringSet(opts.ExcludeIDs...)

	pool := make([]models.Item, 0, len(catalog))
	for _, item := range catalog {
		if excluded.Has(item.ID) {
			continue
		}
		if !opts.IncludeRated && profile.AnsweredEvidenceIDs.Has(models.FeedbackEvidenceID(item.ID)) {
			continue
		}
		pool = append(pool, item)
	}
	return pool
}

// applyBucketFilters assigns bucket keys and applies the include and exclude
// lists. An empty include list admits every bucket.
func (r *Recommender) applyBucketFilters(candidates []models.Item, opts models.RecommendationOptions) []models.Item {
	include := models.NewStringSet(opts.IncludeBuckets...)
	exclude := models.NewStringSet(opts.ExcludeBuckets...)

	out := make([]models.Item, 0, len(candidates))
	for i := range candidates {
		item := candidates[i]
		key := r.clusterer.Assign(&item)
		if len(include) > 0 && !include.Has(key) {
			continue
		}
		if exclude.Has(key) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// rankByPopularity serves profiles with no usable signal. Score is
// popularity on the 0-1 scale.
func (r *Recommender) rankByPopularity(candidates []models.Item, minScore float64, count int) []ScoredItem {
	ranked := TopByPopularity(candidates, 0)

	out := make([]ScoredItem, 0, count)
	for _, item := range ranked {
		if len(out) >= count {
			break
		}
		score := clampUnit(item.Popularity / 100)
		if score*10 < minScore {
			continue
		}
		out = append(out, ScoredItem{Item: item, Bucket: item.BucketKey, Score: score})
	}
	return out
}

// fineScore rescores representatives with confidence and importance weights,
// the popularity bonus and the requested mood, dropping anything under
// MinScore (0-10 scale).
func (r *Recommender) fineScore(profile *models.Profile, reps []ScoredItem, opts models.RecommendationOptions) []ScoredItem {
	out := make([]ScoredItem, 0, len(reps))
	for _, rep := range reps {
		sim := r.scorer.Score(profile, rep.Item.Attributes)
		score := r.scorer.RankScore(sim.Overall, rep.Item.Popularity)
		score = r.mood.Blend(opts.Mood, score, rep.Item.Attributes)
		if score*10 < opts.MinScore {
			continue
		}
		rep.Similarity = sim
		rep.Score = score
		out = append(out, rep)
	}
	sortScored(out)
	return out
}

func (r *Recommender) explain(profile *models.Profile, final []ScoredItem, coldStart bool) []models.RecommendationResult {
	rng := r.explainer.NewRand()

	results := make([]models.RecommendationResult, 0, len(final))
	for i, s := range final {
		reasons := []models.MatchReason{}
		if !coldStart {
			reasons = r.explainer.ExplainWith(rng, profile, s.Item.Attributes)
		}
		item := cloneItem(s.Item)
		results = append(results, models.RecommendationResult{
			Item:         item,
			Score:        s.Score * 10,
			MatchReasons: reasons,
			Summary:      r.explainer.Summarize(item, reasons),
			Bucket:       s.Bucket,
			Position:     i + 1,
		})
	}
	return results
}

func cloneItem(item models.Item) models.Item {
	clone := item
	if item.Attributes != nil {
		clone.Attributes = make(map[string]float64, len(item.Attributes))
		for k, v := range item.Attributes {
			clone.Attributes[k] = v
		}
	}
	if item.Genres != nil {
		clone.Genres = append([]string(nil), item.Genres...)
	}
	return clone
}
