package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

func completeAttributes(registry *DimensionRegistry) map[string]float64 {
	attrs := make(map[string]float64)
	for _, dim := range registry.Dimensions() {
		attrs[dim.Key] = dim.Midpoint()
	}
	return attrs
}

func TestCatalogEnricher_FillsMissingOnly(t *testing.T) {
	registry := MustDefaultRegistry()

	full := models.Item{ID: "full", Attributes: completeAttributes(registry)}
	partial := models.Item{ID: "partial", Attributes: map[string]float64{DimPacePreference: 2}}
	broken := models.Item{ID: "broken", Attributes: map[string]float64{}}

	source := &stubAttributeSource{
		values: map[string]map[string]float64{
			"partial": {
				DimPacePreference:   9,  // already known, must not change
				DimVisualComplexity: 42, // clamped to the dimension max
				"unknownDimension":  3,
			},
		},
		failFor: map[string]bool{"broken": true},
	}
	catalog := &memoryCatalog{}

	cfg := config.CatalogConfig{EnrichmentBatchSize: 1, EnrichmentConcurrency: 2, EnrichmentTimeout: time.Second}
	enricher := NewCatalogEnricher(registry, source, catalog, cfg, nil, newTestLogger())

	input := []models.Item{full, partial, broken}
	out, err := enricher.Enrich(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, 2, source.calls, "complete items are not looked up")

	assert.InDelta(t, 2.0, out[1].Attributes[DimPacePreference], 1e-9)
	assert.InDelta(t, 10.0, out[1].Attributes[DimVisualComplexity], 1e-9)
	_, hasUnknown := out[1].Attributes["unknownDimension"]
	assert.False(t, hasUnknown)

	assert.Empty(t, out[2].Attributes)
	assert.Contains(t, catalog.saved, "partial")
	assert.NotContains(t, catalog.saved, "broken")

	// input is never mutated
	_, touched := input[1].Attributes[DimVisualComplexity]
	assert.False(t, touched)
}

func TestCatalogEnricher_NoSource(t *testing.T) {
	registry := MustDefaultRegistry()
	enricher := NewCatalogEnricher(registry, nil, nil, config.CatalogConfig{}, nil, newTestLogger())

	items := []models.Item{{ID: "a"}}
	out, err := enricher.Enrich(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, items, out)
}

func TestCatalogEnricher_CancelledContext(t *testing.T) {
	registry := MustDefaultRegistry()
	source := &stubAttributeSource{values: map[string]map[string]float64{}}
	enricher := NewCatalogEnricher(registry, source, nil, config.CatalogConfig{}, nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := enricher.Enrich(ctx, []models.Item{{ID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
}
