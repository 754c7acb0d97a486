package services

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// ScoredItem is an item carried through the later pipeline stages.
type ScoredItem struct {
	Item       models.Item
	Bucket     string
	Score      float64 // 0-1
	Similarity SimilarityResult
}

// RepresentativeSelector prunes the candidate set to the best few items of the
// buckets around the profile.
type RepresentativeSelector struct {
	clusterer *Clusterer
	scorer    *SimilarityScorer
	config    config.RepresentativeConfig
	logger    *logrus.Logger
}

// NewRepresentativeSelector creates a new representative selector
func NewRepresentativeSelector(clusterer *Clusterer, scorer *SimilarityScorer, cfg config.RepresentativeConfig, logger *logrus.Logger) *RepresentativeSelector {
	if cfg.PerBucket < 1 {
		cfg.PerBucket = 1
	}
	return &RepresentativeSelector{
		clusterer: clusterer,
		scorer:    scorer,
		config:    cfg,
		logger:    logger,
	}
}

// Select groups candidates by bucket and keeps the top PerBucket items from
// the profile's bucket and its adjacent buckets. When that leaves fewer than
// want items or fewer than MinBucketSpread buckets, it widens to the nearest
// remaining buckets by key distance.
func (s *RepresentativeSelector) Select(candidates []models.Item, profile *models.Profile, want int) []ScoredItem {
	if len(candidates) == 0 {
		return nil
	}

	groups := make(map[string][]models.Item)
	for i := range candidates {
		item := candidates[i]
		key := s.clusterer.Assign(&item)
		groups[key] = append(groups[key], item)
	}

	own := s.clusterer.ProfileKey(profile)
	relevant := []string{own.String()}
	for _, adj := range s.clusterer.Adjacent(own) {
		relevant = append(relevant, adj.String())
	}

	var reps []ScoredItem
	used := make(map[string]struct{})
	buckets := 0

	take := func(key string) {
		if _, done := used[key]; done {
			return
		}
		used[key] = struct{}{}
		members, ok := groups[key]
		if !ok || len(members) == 0 {
			return
		}
		reps = append(reps, s.topOfBucket(key, members, profile)...)
		buckets++
	}

	for _, key := range relevant {
		take(key)
	}

	if len(reps) < want || buckets < s.config.MinBucketSpread {
		for _, key := range s.remainingByDistance(groups, used, own) {
			if len(reps) >= want && buckets >= s.config.MinBucketSpread {
				break
			}
			take(key)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"candidates":      len(candidates),
		"buckets":         len(groups),
		"used_buckets":    buckets,
		"representatives": len(reps),
		"profile_bucket":  own.String(),
	}).Debug("Selected bucket representatives")

	return reps
}

// topOfBucket scores members with confidence weighting only; importance is
// applied later by fine scoring.
func (s *RepresentativeSelector) topOfBucket(key string, members []models.Item, profile *models.Profile) []ScoredItem {
	scored := make([]ScoredItem, 0, len(members))
	for _, item := range members {
		sim := s.scorer.ScoreWith(profile, item.Attributes, ScoreOptions{UseConfidence: true})
		scored = append(scored, ScoredItem{
			Item:       item,
			Bucket:     key,
			Score:      sim.Overall,
			Similarity: sim,
		})
	}
	sortScored(scored)
	if len(scored) > s.config.PerBucket {
		scored = scored[:s.config.PerBucket]
	}
	return scored
}

func (s *RepresentativeSelector) remainingByDistance(groups map[string][]models.Item, used map[string]struct{}, own BucketKey) []string {
	type bucketDist struct {
		key  string
		dist int
	}

	var rest []bucketDist
	for key := range groups {
		if _, ok := used[key]; ok {
			continue
		}
		dist := 1 << 30
		if parsed, err := ParseBucketKey(key); err == nil {
			dist = own.Distance(parsed)
		}
		rest = append(rest, bucketDist{key: key, dist: dist})
	}

	sort.Slice(rest, func(i, j int) bool {
		if rest[i].dist != rest[j].dist {
			return rest[i].dist < rest[j].dist
		}
		return rest[i].key < rest[j].key
	})

	out := make([]string, len(rest))
	for i, r := range rest {
		out[i] = r.key
	}
	return out
}

// sortScored orders by score descending, ties by item id.
func sortScored(items []ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Item.ID < items[j].Item.ID
	})
}
