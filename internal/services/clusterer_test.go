package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

func newTestClusterer(cache *BucketCache) *Clusterer {
	return NewClusterer(MustDefaultRegistry(), config.DefaultEngineConfig().Clustering, cache)
}

func TestClusterer_Key(t *testing.T) {
	c := newTestClusterer(nil)

	tests := []struct {
		name     string
		values   map[string]float64
		expected string
	}{
		{
			name:     "missing axes default to midpoints",
			values:   nil,
			expected: "V2N2C2P2T+0",
		},
		{
			name: "range edges",
			values: map[string]float64{
				DimVisualComplexity:    0,
				DimNarrativeComplexity: 10,
				DimCharacterComplexity: 2.4,
				DimPacePreference:      7.6,
			},
			expected: "V0N3C0P3T+0",
		},
		{
			name:     "out of range values are clamped",
			values:   map[string]float64{DimVisualComplexity: 40, DimEmotionalValence: -12},
			expected: "V3N2C2P2T-2",
		},
		{
			name:     "mildly positive tone",
			values:   map[string]float64{DimEmotionalValence: 1},
			expected: "V2N2C2P2T+1",
		},
		{
			name:     "strongly positive tone",
			values:   map[string]float64{DimEmotionalValence: 4},
			expected: "V2N2C2P2T+2",
		},
		{
			name:     "near neutral tone",
			values:   map[string]float64{DimEmotionalValence: 0.4},
			expected: "V2N2C2P2T+0",
		},
		{
			name:     "mildly negative tone",
			values:   map[string]float64{DimEmotionalValence: -1},
			expected: "V2N2C2P2T-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Key(tt.values).String())
		})
	}
}

func TestClusterer_MildAndStrongToneDiffer(t *testing.T) {
	c := newTestClusterer(nil)

	mild := c.Key(map[string]float64{DimEmotionalValence: 1.5})
	strong := c.Key(map[string]float64{DimEmotionalValence: 4.5})
	opposite := c.Key(map[string]float64{DimEmotionalValence: -4.5})

	assert.NotEqual(t, mild, strong)
	assert.NotEqual(t, strong, opposite)
	assert.Equal(t, -strong.Tone, opposite.Tone)
}

func TestBucketKey_ParseAndDistance(t *testing.T) {
	key := BucketKey{Visual: 3, Narrative: 0, Character: 1, Pacing: 2, Tone: -2}

	parsed, err := ParseBucketKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	zero, err := ParseBucketKey("V0N0C0P0T+0")
	require.NoError(t, err)
	assert.Equal(t, BucketKey{}, zero)
	assert.Equal(t, 3+0+1+2+2, key.Distance(zero))

	_, err = ParseBucketKey("not-a-key")
	assert.Error(t, err)
}

func TestClusterer_Adjacent(t *testing.T) {
	c := newTestClusterer(nil)

	t.Run("corner key", func(t *testing.T) {
		corner := BucketKey{Tone: 2}
		adjacent := c.Adjacent(corner)

		assert.Len(t, adjacent, 6)
		assert.Contains(t, adjacent, BucketKey{Visual: 1, Tone: 2})
		assert.Contains(t, adjacent, BucketKey{Tone: 1})
		assert.Contains(t, adjacent, BucketKey{Tone: -2})
		assert.NotContains(t, adjacent, corner)
	})

	t.Run("centre key", func(t *testing.T) {
		centre := BucketKey{Visual: 1, Narrative: 1, Character: 1, Pacing: 1, Tone: 0}
		adjacent := c.Adjacent(centre)

		// two neighbours per axis, no sign flip for a neutral tone
		assert.Len(t, adjacent, 10)
		for _, k := range adjacent {
			assert.Equal(t, 1, centre.Distance(k))
		}
	})

	t.Run("sorted", func(t *testing.T) {
		adjacent := c.Adjacent(BucketKey{Visual: 2, Tone: -1})
		for i := 1; i < len(adjacent); i++ {
			assert.Less(t, adjacent[i-1].String(), adjacent[i].String())
		}
	})
}

func TestClusterer_AssignCachesKeys(t *testing.T) {
	cache := NewBucketCache(16)
	c := newTestClusterer(cache)

	a := axisItem("a", 9, 9, 9, 9, 4, 50)
	b := axisItem("b", 9, 9, 9, 9, 4, 10)

	keyA := c.Assign(&a)
	assert.Equal(t, "V3N3C3P3T+2", keyA)
	assert.Equal(t, keyA, a.BucketKey)

	keyB := c.Assign(&b)
	assert.Equal(t, keyA, keyB)
	assert.Equal(t, 1, cache.Len())

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	// item-level cache short-circuits the shared cache
	assert.Equal(t, keyA, c.Assign(&a))
	hits, _ = cache.Stats()
	assert.Equal(t, uint64(1), hits)
}

func TestClusterer_AssignRecomputesOnAttributeChange(t *testing.T) {
	c := newTestClusterer(NewBucketCache(16))
	item := axisItem("a", 9, 9, 9, 9, 4, 50)

	before := c.Assign(&item)
	item.Attributes[DimVisualComplexity] = 1
	after := c.Assign(&item)

	assert.NotEqual(t, before, after)
	assert.Equal(t, "V0N3C3P3T+2", after)
}

func TestClusterer_AssignDistinguishesValuesAcrossBoundary(t *testing.T) {
	below := models.Item{ID: "below", Attributes: map[string]float64{DimVisualComplexity: 4.9999999}}
	onEdge := models.Item{ID: "edge", Attributes: map[string]float64{DimVisualComplexity: 5.0}}

	uncached := newTestClusterer(nil)
	wantBelow := uncached.KeyFor(uncached.Features(below.Attributes)).String()
	wantEdge := uncached.KeyFor(uncached.Features(onEdge.Attributes)).String()
	require.Equal(t, "V1N2C2P2T+0", wantBelow)
	require.Equal(t, "V2N2C2P2T+0", wantEdge)

	t.Run("shared cache", func(t *testing.T) {
		c := newTestClusterer(NewBucketCache(16))
		assert.Equal(t, wantBelow, c.Assign(&below))
		assert.Equal(t, wantEdge, c.Assign(&onEdge))
		assert.Equal(t, 2, c.cache.Len())
	})

	t.Run("item cache", func(t *testing.T) {
		c := newTestClusterer(nil)
		item := models.Item{ID: "moving", Attributes: map[string]float64{DimVisualComplexity: 5.0}}
		assert.Equal(t, wantEdge, c.Assign(&item))

		item.Attributes[DimVisualComplexity] = 4.9999999
		assert.Equal(t, wantBelow, c.Assign(&item))
	})
}

func TestClusterer_AssignWithoutCache(t *testing.T) {
	c := newTestClusterer(nil)
	item := models.Item{ID: "bare"}

	assert.Equal(t, "V2N2C2P2T+0", c.Assign(&item))
}

func TestBucketCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewBucketCache(2)

	cache.Put("a", "A")
	cache.Put("b", "B")
	_, ok := cache.Get("a")
	require.True(t, ok)
	cache.Put("c", "C")

	_, ok = cache.Get("b")
	assert.False(t, ok)
	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)
	assert.Equal(t, 2, cache.Len())
}

func TestBucketCache_DisabledAndNil(t *testing.T) {
	disabled := NewBucketCache(0)
	disabled.Put("a", "A")
	assert.Equal(t, 0, disabled.Len())

	var nilCache *BucketCache
	nilCache.Put("a", "A")
	_, ok := nilCache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, nilCache.Len())
}
