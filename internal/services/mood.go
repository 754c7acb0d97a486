package services

import (
	"github.com/temcen/psyrec/pkg/models"
)

// moodTargets places each mood in the trait space. Values use the
// dimension's own scale.
var moodTargets = map[models.Mood]map[string]float64{
	models.MoodHappy: {
		DimEmotionalValence:   4,
		DimEmotionalIntensity: 4,
		DimHumorStyle:         3,
		DimPacePreference:     6,
	},
	models.MoodSad: {
		DimEmotionalValence:    -3,
		DimEmotionalIntensity:  8,
		DimCharacterComplexity: 7,
		DimPacePreference:      3,
	},
	models.MoodRelaxed: {
		DimEmotionalValence:    2,
		DimEmotionalIntensity:  2,
		DimPacePreference:      2,
		DimNarrativeComplexity: 3,
	},
	models.MoodExcited: {
		DimPacePreference:     9,
		DimEmotionalIntensity: 8,
		DimVisualComplexity:   7,
		DimEmotionalValence:   1,
	},
	models.MoodThoughtful: {
		DimIntellectualEngagement: 8,
		DimNarrativeComplexity:    7,
		DimMoralAmbiguity:         6,
		DimPacePreference:         3,
	},
	models.MoodAdventurous: {
		DimFantasyRealism:   8,
		DimPacePreference:   7,
		DimVisualComplexity: 7,
		DimEmotionalValence: 2,
	},
	models.MoodRomantic: {
		DimEmotionalValence:    3,
		DimEmotionalIntensity:  6,
		DimCharacterComplexity: 6,
		DimPacePreference:      4,
	},
	models.MoodMysterious: {
		DimNarrativeComplexity:    8,
		DimMoralAmbiguity:         7,
		DimEmotionalValence:       -2,
		DimIntellectualEngagement: 6,
	},
}

// MoodScorer rates how well an item's attributes suit a requested mood.
type MoodScorer struct {
	registry *DimensionRegistry
	weight   float64
}

// NewMoodScorer creates a mood scorer. weight is clamped to [0,1].
func NewMoodScorer(registry *DimensionRegistry, weight float64) *MoodScorer {
	return &MoodScorer{registry: registry, weight: clampUnit(weight)}
}

// Active reports whether mood changes scoring at all.
func (m *MoodScorer) Active(mood models.Mood) bool {
	if m.weight == 0 || mood == "" || mood == models.MoodAny {
		return false
	}
	_, ok := moodTargets[mood]
	return ok
}

// Relevance is the mean per-dimension similarity between the mood's targets
// and the item, in [0,1]. A targeted dimension the item lacks counts as 0.
// Targets outside the registry are ignored; an empty or "any" mood is 1.
func (m *MoodScorer) Relevance(mood models.Mood, attributes map[string]float64) float64 {
	targets, ok := moodTargets[mood]
	if !ok {
		return 1
	}

	var sum float64
	var n int
	for key, target := range targets {
		dim, ok := m.registry.Get(key)
		if !ok {
			continue
		}
		n++
		if value, ok := attributes[key]; ok {
			sum += DimensionSimilarity(dim, target, value)
		}
	}
	if n == 0 {
		return 1
	}
	return clampUnit(sum / float64(n))
}

// Blend mixes mood relevance into a 0-1 rank score. The mood share never
// exceeds the configured weight and the result stays in [0,1].
func (m *MoodScorer) Blend(mood models.Mood, score float64, attributes map[string]float64) float64 {
	if !m.Active(mood) {
		return score
	}
	return clampUnit(score)*(1-m.weight) + m.weight*m.Relevance(mood, attributes)
}
