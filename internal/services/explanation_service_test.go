package services

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

func newTestExplainer() (*ExplanationService, *DimensionRegistry) {
	registry := MustDefaultRegistry()
	return NewExplanationService(registry, config.DefaultEngineConfig().Explanation, newTestLogger()), registry
}

func TestExplanationService_Label(t *testing.T) {
	es, _ := newTestExplainer()

	tests := map[string]string{
		DimNarrativeComplexity:    "Narrative Complexity",
		DimIntellectualEngagement: "Intellectual Engagement",
		"pace":                    "Pace",
		"dark_tone":               "Dark Tone",
	}
	for key, expected := range tests {
		assert.Equal(t, expected, es.Label(key))
	}
}

func TestExplanationService_Explain(t *testing.T) {
	es, registry := newTestExplainer()
	profile := confidentProfile(registry, map[string][2]float64{
		DimNarrativeComplexity: {9, 0.8},
		DimMoralAmbiguity:      {9, 0.8},
		DimVisualComplexity:    {5, 0.5},
		DimPacePreference:      {9, 0.6},
	})

	reasons := es.Explain(profile, map[string]float64{
		DimNarrativeComplexity: 9, // 1.0
		DimMoralAmbiguity:      8, // 0.99
		DimVisualComplexity:    9, // 0.84
		DimPacePreference:      3, // 0.64, below threshold
		DimHumorStyle:          5, // zero confidence, ignored
	})

	require.Len(t, reasons, 3)
	assert.Equal(t, DimNarrativeComplexity, reasons[0].Dimension)
	assert.Equal(t, DimMoralAmbiguity, reasons[1].Dimension)
	assert.Equal(t, DimVisualComplexity, reasons[2].Dimension)
	assert.InDelta(t, 1.0, reasons[0].Strength, 1e-9)
	assert.InDelta(t, 0.99, reasons[1].Strength, 1e-9)
	assert.InDelta(t, 0.84, reasons[2].Strength, 1e-9)
	assert.Contains(t, reasons[0].Explanation, "narrative complexity")
	assert.Contains(t, reasons[0].Explanation, "high")
}

func TestExplanationService_MaxReasons(t *testing.T) {
	es, registry := newTestExplainer()
	profile := confidentProfile(registry, map[string][2]float64{
		DimNarrativeComplexity: {5, 0.8},
		DimMoralAmbiguity:      {5, 0.8},
		DimVisualComplexity:    {5, 0.8},
		DimPacePreference:      {5, 0.8},
	})

	reasons := es.Explain(profile, map[string]float64{
		DimNarrativeComplexity: 5,
		DimMoralAmbiguity:      5,
		DimVisualComplexity:    5,
		DimPacePreference:      5,
	})

	require.Len(t, reasons, 3)
	// equal strengths fall back to key order
	assert.Equal(t, DimMoralAmbiguity, reasons[0].Dimension)
	assert.Equal(t, DimNarrativeComplexity, reasons[1].Dimension)
	assert.Equal(t, DimPacePreference, reasons[2].Dimension)
}

func TestExplanationService_FixedSeedIsDeterministic(t *testing.T) {
	es, registry := newTestExplainer()
	profile := confidentProfile(registry, map[string][2]float64{
		DimNarrativeComplexity: {9, 0.8},
		DimMoralAmbiguity:      {9, 0.8},
	})
	attrs := map[string]float64{DimNarrativeComplexity: 9, DimMoralAmbiguity: 9}

	first := es.Explain(profile, attrs)
	second := es.Explain(profile, attrs)
	assert.Equal(t, first, second)

	// a different source may change wording but never the reasons themselves
	other := es.ExplainWith(rand.New(rand.NewSource(99)), profile, attrs)
	require.Len(t, other, len(first))
	for i := range first {
		assert.Equal(t, first[i].Dimension, other[i].Dimension)
		assert.Equal(t, first[i].Strength, other[i].Strength)
	}
}

func TestExplanationService_NoBasis(t *testing.T) {
	es, registry := newTestExplainer()

	assert.Empty(t, es.Explain(nil, map[string]float64{DimNarrativeComplexity: 5}))
	assert.Empty(t, es.Explain(registry.NewProfile(uuid.Nil), map[string]float64{DimNarrativeComplexity: 5}))
}

func TestExplanationService_Summarize(t *testing.T) {
	es, _ := newTestExplainer()

	tests := []struct {
		name     string
		item     models.Item
		reasons  []models.MatchReason
		contains string
	}{
		{
			name:     "popular fallback",
			item:     models.Item{Title: "Skyline", Popularity: 85},
			contains: "Skyline is one of the most popular titles",
		},
		{
			name:     "rated fallback",
			item:     models.Item{Title: "Quiet Harbor", Popularity: 20, Rating: 8.4},
			contains: "rated 8.4",
		},
		{
			name:     "unknown fallback",
			item:     models.Item{Title: "Unmarked"},
			contains: "while we learn your taste",
		},
		{
			name:     "single reason",
			reasons:  []models.MatchReason{{Dimension: DimHumorStyle}},
			contains: "Recommended for its humor style",
		},
		{
			name: "three reasons",
			reasons: []models.MatchReason{
				{Dimension: DimNarrativeComplexity},
				{Dimension: DimMoralAmbiguity},
				{Dimension: DimFantasyRealism},
			},
			contains: "narrative complexity, moral ambiguity and fantasy realism",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, es.Summarize(tt.item, tt.reasons), tt.contains)
		})
	}
}
