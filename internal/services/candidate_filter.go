package services

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// FilterResult is the stage-1 candidate set.
type FilterResult struct {
	Candidates []models.Item
	// HighConfidence lists the dimensions the filter matched on, sorted.
	HighConfidence []string
	// ColdStart is set when no dimension qualified and the popularity
	// fallback was used.
	ColdStart bool
}

// CandidateFilter reduces a catalog using only dimensions the profile is
// sure about.
type CandidateFilter struct {
	registry *DimensionRegistry
	config   config.FilterConfig
	logger   *logrus.Logger
}

// NewCandidateFilter creates a new candidate filter
func NewCandidateFilter(registry *DimensionRegistry, cfg config.FilterConfig, logger *logrus.Logger) *CandidateFilter {
	return &CandidateFilter{
		registry: registry,
		config:   cfg,
		logger:   logger,
	}
}

// HighConfidenceDimensions returns dimensions with confidence and importance
// both above their thresholds. A nil profile has none.
func (f *CandidateFilter) HighConfidenceDimensions(profile *models.Profile) []string {
	if profile == nil {
		return nil
	}

	var out []string
	for _, dim := range f.registry.Dimensions() {
		if profile.Confidence(dim.Key) > f.config.ConfidenceThreshold && dim.Importance > f.config.ImportanceThreshold {
			if _, ok := profile.Values[dim.Key]; ok {
				out = append(out, dim.Key)
			}
		}
	}
	return out
}

// Filter keeps items matching at least half (min 1) of the high-confidence
// dimensions. With none, including for a nil profile, it falls back to the
// most popular items.
func (f *CandidateFilter) Filter(profile *models.Profile, catalog []models.Item) FilterResult {
	dims := f.HighConfidenceDimensions(profile)
	if len(dims) == 0 {
		candidates := TopByPopularity(catalog, f.config.ColdStartLimit)
		f.logger.WithFields(logrus.Fields{
			"catalog_size": len(catalog),
			"candidates":   len(candidates),
		}).Debug("No high-confidence dimensions, using popularity fallback")
		return FilterResult{Candidates: candidates, ColdStart: true}
	}

	required := len(dims) / 2
	if required < 1 {
		required = 1
	}

	candidates := make([]models.Item, 0, len(catalog))
	for _, item := range catalog {
		matches := 0
		for _, key := range dims {
			av, ok := item.Attributes[key]
			if !ok {
				continue
			}
			dim, _ := f.registry.Get(key)
			if NormalizedDistance(dim, profile.Values[key], av) < f.config.MatchDistance {
				matches++
			}
		}
		if matches >= required {
			candidates = append(candidates, item)
		}
	}

	f.logger.WithFields(logrus.Fields{
		"catalog_size":    len(catalog),
		"candidates":      len(candidates),
		"high_confidence": len(dims),
		"required":        required,
	}).Debug("Filtered catalog by high-confidence dimensions")

	return FilterResult{Candidates: candidates, HighConfidence: dims}
}

// TopByPopularity returns up to limit items ordered by popularity descending,
// ties broken by id. A non-positive limit keeps everything.
func TopByPopularity(catalog []models.Item, limit int) []models.Item {
	sorted := make([]models.Item, len(catalog))
	copy(sorted, catalog)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Popularity != sorted[j].Popularity {
			return sorted[i].Popularity > sorted[j].Popularity
		}
		return sorted[i].ID < sorted[j].ID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
