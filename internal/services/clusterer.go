package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// Tone levels run from strongly negative (-2) to strongly positive (+2).
const (
	minToneLevel = -2
	maxToneLevel = 2
)

// FeatureVector is the reduced representation used for bucketing, in axis
// order visual, narrative, character, pacing, tone.
type FeatureVector [5]float64

// BucketKey is a discrete coordinate in the reduced trait space.
type BucketKey struct {
	Visual    int
	Narrative int
	Character int
	Pacing    int
	Tone      int
}

func (k BucketKey) String() string {
	return fmt.Sprintf("V%dN%dC%dP%dT%+d", k.Visual, k.Narrative, k.Character, k.Pacing, k.Tone)
}

// ParseBucketKey reverses BucketKey.String.
func ParseBucketKey(s string) (BucketKey, error) {
	var k BucketKey
	if _, err := fmt.Sscanf(s, "V%dN%dC%dP%dT%d", &k.Visual, &k.Narrative, &k.Character, &k.Pacing, &k.Tone); err != nil {
		return BucketKey{}, fmt.Errorf("invalid bucket key %q: %w", s, err)
	}
	return k, nil
}

// Distance is the L1 distance between two keys.
func (k BucketKey) Distance(o BucketKey) int {
	return absInt(k.Visual-o.Visual) + absInt(k.Narrative-o.Narrative) +
		absInt(k.Character-o.Character) + absInt(k.Pacing-o.Pacing) + absInt(k.Tone-o.Tone)
}

// Clusterer assigns items and profiles to bucket keys. Bucketing is a pure
// function of the feature vector.
type Clusterer struct {
	registry *DimensionRegistry
	config   config.ClusteringConfig
	cache    *BucketCache
	axes     [4]models.Dimension
	tone     models.Dimension
}

// NewClusterer creates a new clusterer. cache may be nil.
func NewClusterer(registry *DimensionRegistry, cfg config.ClusteringConfig, cache *BucketCache) *Clusterer {
	if cfg.AxisBuckets < 1 {
		cfg.AxisBuckets = 1
	}

	c := &Clusterer{
		registry: registry,
		config:   cfg,
		cache:    cache,
	}
	for i, key := range []string{DimVisualComplexity, DimNarrativeComplexity, DimCharacterComplexity, DimPacePreference} {
		c.axes[i] = axisDimension(registry, key, models.Dimension{Key: key, Min: 0, Max: 10})
	}
	c.tone = axisDimension(registry, DimEmotionalValence, models.Dimension{Key: DimEmotionalValence, Min: -5, Max: 5})
	return c
}

func axisDimension(registry *DimensionRegistry, key string, fallback models.Dimension) models.Dimension {
	if registry != nil {
		if d, ok := registry.Get(key); ok {
			return d
		}
	}
	return fallback
}

// Features reduces values to the bucketing axes. Missing axes default to the
// axis midpoint.
func (c *Clusterer) Features(values map[string]float64) FeatureVector {
	var fv FeatureVector
	for i, dim := range c.axes {
		fv[i] = featureOrMidpoint(values, dim)
	}
	fv[4] = featureOrMidpoint(values, c.tone)
	return fv
}

func featureOrMidpoint(values map[string]float64, dim models.Dimension) float64 {
	if v, ok := values[dim.Key]; ok {
		return dim.Clamp(v)
	}
	return dim.Midpoint()
}

// KeyFor discretizes a feature vector.
func (c *Clusterer) KeyFor(fv FeatureVector) BucketKey {
	return BucketKey{
		Visual:    c.linearBucket(c.axes[0], fv[0]),
		Narrative: c.linearBucket(c.axes[1], fv[1]),
		Character: c.linearBucket(c.axes[2], fv[2]),
		Pacing:    c.linearBucket(c.axes[3], fv[3]),
		Tone:      c.toneBucket(fv[4]),
	}
}

// Key is KeyFor(Features(values)).
func (c *Clusterer) Key(values map[string]float64) BucketKey {
	return c.KeyFor(c.Features(values))
}

// ProfileKey buckets a profile by its current values.
func (c *Clusterer) ProfileKey(profile *models.Profile) BucketKey {
	if profile == nil {
		return c.Key(nil)
	}
	return c.Key(profile.Values)
}

// Assign computes the item's key, reusing the key cached on the item or in
// the shared cache when the feature fingerprint is unchanged.
func (c *Clusterer) Assign(item *models.Item) string {
	fv := c.Features(item.Attributes)
	fingerprint := fv.fingerprint()

	if key, ok := item.CachedBucketKey(fingerprint); ok {
		return key
	}
	if key, ok := c.cache.Get(fingerprint); ok {
		item.SetBucketKey(key, fingerprint)
		return key
	}

	key := c.KeyFor(fv).String()
	c.cache.Put(fingerprint, key)
	item.SetBucketKey(key, fingerprint)
	return key
}

// Adjacent returns every key one step away on a single axis, plus the key
// with the tone sign flipped, sorted by string form.
func (c *Clusterer) Adjacent(k BucketKey) []BucketKey {
	maxIdx := c.config.AxisBuckets - 1
	seen := map[BucketKey]struct{}{k: {}}
	var out []BucketKey

	add := func(n BucketKey) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	for _, delta := range []int{-1, 1} {
		if v := k.Visual + delta; v >= 0 && v <= maxIdx {
			n := k
			n.Visual = v
			add(n)
		}
		if v := k.Narrative + delta; v >= 0 && v <= maxIdx {
			n := k
			n.Narrative = v
			add(n)
		}
		if v := k.Character + delta; v >= 0 && v <= maxIdx {
			n := k
			n.Character = v
			add(n)
		}
		if v := k.Pacing + delta; v >= 0 && v <= maxIdx {
			n := k
			n.Pacing = v
			add(n)
		}
		if v := k.Tone + delta; v >= minToneLevel && v <= maxToneLevel {
			n := k
			n.Tone = v
			add(n)
		}
	}
	if k.Tone != 0 {
		n := k
		n.Tone = -k.Tone
		add(n)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (c *Clusterer) linearBucket(dim models.Dimension, v float64) int {
	idx := int(dim.Normalize(v) * float64(c.config.AxisBuckets))
	if idx >= c.config.AxisBuckets {
		idx = c.config.AxisBuckets - 1
	}
	return idx
}

// toneBucket buckets by sign and magnitude band so mildly and strongly
// positive items land in different buckets.
func (c *Clusterer) toneBucket(v float64) int {
	half := c.tone.Span() / 2
	rel := (c.tone.Clamp(v) - c.tone.Midpoint()) / half
	mag := math.Abs(rel)

	if mag < c.config.ToneNeutralBand {
		return 0
	}
	level := 1
	if mag >= c.config.ToneStrongBand {
		level = 2
	}
	if rel < 0 {
		return -level
	}
	return level
}

func (fv FeatureVector) fingerprint() string {
	parts := make([]string, len(fv))
	for i, v := range fv {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, "|")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
