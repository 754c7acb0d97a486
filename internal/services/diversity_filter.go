package services

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/temcen/psyrec/internal/config"
)

// Diversifier performs the final selection, trading raw score for bucket
// variety. Output is deterministic for identical input.
type Diversifier struct {
	config config.DiversityConfig
	logger *logrus.Logger
}

// NewDiversifier creates a new diversifier
func NewDiversifier(cfg config.DiversityConfig, logger *logrus.Logger) *Diversifier {
	return &Diversifier{
		config: cfg,
		logger: logger,
	}
}

type bucketGroup struct {
	key     string
	items   []ScoredItem
	top     float64
	average float64
	next    int
}

// Diversify picks min(target, distinct items) results in three passes: the
// best item of every bucket, a second pick from strong buckets that clears
// SecondPickThreshold, then the best leftovers. Repeated item ids in scored
// are collapsed to their best-scoring entry.
func (d *Diversifier) Diversify(scored []ScoredItem, target int) []ScoredItem {
	if target <= 0 || len(scored) == 0 {
		return []ScoredItem{}
	}

	ranked := dedupeScored(scored)
	if target > len(ranked) {
		target = len(ranked)
	}

	groups := groupByBucket(ranked)
	selected := make([]ScoredItem, 0, target)
	taken := make(map[string]struct{}, target)

	pick := func(item ScoredItem) {
		selected = append(selected, item)
		taken[item.Item.ID] = struct{}{}
	}

	// one per bucket
	for _, g := range groups {
		if len(selected) >= target {
			break
		}
		pick(g.items[0])
		g.next = 1
	}

	// second pick, high bar only
	for _, g := range groups {
		if len(selected) >= target {
			break
		}
		if g.next < len(g.items) && g.items[g.next].Score >= d.config.SecondPickThreshold {
			pick(g.items[g.next])
			g.next++
		}
	}

	firstPasses := len(selected)

	for _, item := range ranked {
		if len(selected) >= target {
			break
		}
		if _, ok := taken[item.Item.ID]; ok {
			continue
		}
		pick(item)
	}

	sortScored(selected)

	d.logger.WithFields(logrus.Fields{
		"input":    len(scored),
		"target":   target,
		"buckets":  len(groups),
		"selected": len(selected),
		"filled":   len(selected) - firstPasses,
	}).Debug("Diversified recommendations")

	return selected
}

// DistinctBuckets counts the buckets represented in items.
func DistinctBuckets(items []ScoredItem) int {
	seen := make(map[string]struct{})
	for _, item := range items {
		seen[item.Bucket] = struct{}{}
	}
	return len(seen)
}

// dedupeScored returns items sorted by score with one entry per item id.
func dedupeScored(scored []ScoredItem) []ScoredItem {
	ranked := make([]ScoredItem, len(scored))
	copy(ranked, scored)
	sortScored(ranked)

	seen := make(map[string]struct{}, len(ranked))
	out := ranked[:0]
	for _, item := range ranked {
		if _, ok := seen[item.Item.ID]; ok {
			continue
		}
		seen[item.Item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// groupByBucket groups score-sorted items and orders buckets by top score,
// then average score, then key.
func groupByBucket(ranked []ScoredItem) []*bucketGroup {
	index := make(map[string]*bucketGroup)
	var groups []*bucketGroup
	for _, item := range ranked {
		g, ok := index[item.Bucket]
		if !ok {
			g = &bucketGroup{key: item.Bucket, top: item.Score}
			index[item.Bucket] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, item)
	}

	for _, g := range groups {
		scores := make([]float64, len(g.items))
		for i, item := range g.items {
			scores[i] = item.Score
		}
		g.average = stat.Mean(scores, nil)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].top != groups[j].top {
			return groups[i].top > groups[j].top
		}
		if groups[i].average != groups[j].average {
			return groups[i].average > groups[j].average
		}
		return groups[i].key < groups[j].key
	})
	return groups
}
