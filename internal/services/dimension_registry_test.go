package services

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/pkg/models"
)

func TestDimensionRegistry_Default(t *testing.T) {
	registry := MustDefaultRegistry()

	assert.Equal(t, 10, registry.Len())
	keys := registry.Keys()
	assert.True(t, sort.StringsAreSorted(keys))

	valence, ok := registry.Get(DimEmotionalValence)
	require.True(t, ok)
	assert.Equal(t, -5.0, valence.Min)
	assert.Equal(t, 5.0, valence.Max)

	_, ok = registry.Get("unknown")
	assert.False(t, ok)
}

func TestDimensionRegistry_Validation(t *testing.T) {
	tests := []struct {
		name string
		dims []models.Dimension
	}{
		{
			name: "min equals max",
			dims: []models.Dimension{{Key: "a", Min: 5, Max: 5, Importance: 0.5}},
		},
		{
			name: "min above max",
			dims: []models.Dimension{{Key: "a", Min: 10, Max: 0, Importance: 0.5}},
		},
		{
			name: "importance above one",
			dims: []models.Dimension{{Key: "a", Min: 0, Max: 10, Importance: 1.5}},
		},
		{
			name: "negative importance",
			dims: []models.Dimension{{Key: "a", Min: 0, Max: 10, Importance: -0.1}},
		},
		{
			name: "duplicate key",
			dims: []models.Dimension{
				{Key: "a", Min: 0, Max: 10, Importance: 0.5},
				{Key: "a", Min: 0, Max: 1, Importance: 0.5},
			},
		},
		{
			name: "empty key",
			dims: []models.Dimension{{Key: "", Min: 0, Max: 10, Importance: 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := NewDimensionRegistry(tt.dims)
			assert.Nil(t, registry)
			assert.ErrorIs(t, err, models.ErrInvalidDimension)
		})
	}
}

func TestDimensionRegistry_NewProfile(t *testing.T) {
	registry := MustDefaultRegistry()
	id := uuid.New()

	profile := registry.NewProfile(id)

	assert.Equal(t, id, profile.ID)
	assert.Len(t, profile.Values, registry.Len())
	assert.Len(t, profile.Confidences, registry.Len())
	assert.Equal(t, 0.0, profile.Values[DimEmotionalValence])
	assert.Equal(t, 5.0, profile.Values[DimNarrativeComplexity])
	for _, key := range registry.Keys() {
		assert.Equal(t, 0.0, profile.Confidences[key], key)
	}
	assert.Zero(t, profile.InteractionCount)
}

func TestDimension_Helpers(t *testing.T) {
	dim := models.Dimension{Key: "v", Min: -5, Max: 5}

	assert.Equal(t, 10.0, dim.Span())
	assert.Equal(t, 0.0, dim.Midpoint())
	assert.Equal(t, 5.0, dim.Clamp(12))
	assert.Equal(t, -5.0, dim.Clamp(-7))
	assert.InDelta(t, 0.75, dim.Normalize(2.5), 1e-9)
	assert.Equal(t, 1.0, dim.Normalize(100))
}
