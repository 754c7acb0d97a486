package services

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/temcen/psyrec/pkg/models"
)

// Dimension keys used by the clusterer axes and the built-in question bank.
const (
	DimVisualComplexity       = "visualComplexity"
	DimNarrativeComplexity    = "narrativeComplexity"
	DimCharacterComplexity    = "characterComplexity"
	DimPacePreference         = "pacePreference"
	DimEmotionalValence       = "emotionalValence"
	DimEmotionalIntensity     = "emotionalIntensity"
	DimMoralAmbiguity         = "moralAmbiguity"
	DimFantasyRealism         = "fantasyRealism"
	DimIntellectualEngagement = "intellectualEngagement"
	DimHumorStyle             = "humorStyle"
)

// DefaultDimensions returns the built-in trait space.
func DefaultDimensions() []models.Dimension {
	return []models.Dimension{
		{Key: DimVisualComplexity, Min: 0, Max: 10, Importance: 0.65, Description: "Preference for visually dense, detailed art over clean minimal styles"},
		{Key: DimNarrativeComplexity, Min: 0, Max: 10, Importance: 0.8, Description: "Preference for layered, non-linear plots over straightforward stories"},
		{Key: DimCharacterComplexity, Min: 0, Max: 10, Importance: 0.75, Description: "Preference for deep, conflicted characters over archetypes"},
		{Key: DimPacePreference, Min: 0, Max: 10, Importance: 0.55, Description: "Preference for fast, action-driven pacing over slow contemplative pacing"},
		{Key: DimEmotionalValence, Min: -5, Max: 5, Importance: 0.7, Description: "Preference for dark and bleak (negative) versus warm and uplifting (positive) tone"},
		{Key: DimEmotionalIntensity, Min: 0, Max: 10, Importance: 0.6, Description: "Tolerance for emotionally intense, cathartic content"},
		{Key: DimMoralAmbiguity, Min: 0, Max: 10, Importance: 0.7, Description: "Comfort with grey morality and unresolved ethical questions"},
		{Key: DimFantasyRealism, Min: 0, Max: 10, Importance: 0.5, Description: "Preference for grounded realism (low) versus fantastical worlds (high)"},
		{Key: DimIntellectualEngagement, Min: 0, Max: 10, Importance: 0.65, Description: "Appetite for philosophical or cerebral themes"},
		{Key: DimHumorStyle, Min: 0, Max: 10, Importance: 0.4, Description: "Preference for slapstick (low) versus dry, subtle humour (high)"},
	}
}

// DimensionRegistry is the read-only catalog of dimensions. It is safe for
// concurrent use once constructed.
type DimensionRegistry struct {
	dimensions map[string]models.Dimension
	keys       []string
}

// NewDimensionRegistry validates dims and builds a registry. Any bound or
// importance violation fails with models.ErrInvalidDimension.
func NewDimensionRegistry(dims []models.Dimension) (*DimensionRegistry, error) {
	r := &DimensionRegistry{
		dimensions: make(map[string]models.Dimension, len(dims)),
		keys:       make([]string, 0, len(dims)),
	}

	for _, d := range dims {
		if d.Key == "" {
			return nil, fmt.Errorf("%w: empty key", models.ErrInvalidDimension)
		}
		if _, exists := r.dimensions[d.Key]; exists {
			return nil, fmt.Errorf("%w: duplicate key %q", models.ErrInvalidDimension, d.Key)
		}
		if d.Min >= d.Max {
			return nil, fmt.Errorf("%w: %s has min %.2f >= max %.2f", models.ErrInvalidDimension, d.Key, d.Min, d.Max)
		}
		if d.Importance < 0 || d.Importance > 1 {
			return nil, fmt.Errorf("%w: %s importance %.2f outside [0,1]", models.ErrInvalidDimension, d.Key, d.Importance)
		}
		r.dimensions[d.Key] = d
		r.keys = append(r.keys, d.Key)
	}

	sort.Strings(r.keys)
	return r, nil
}

// MustDefaultRegistry returns the registry over DefaultDimensions.
func MustDefaultRegistry() *DimensionRegistry {
	r, err := NewDimensionRegistry(DefaultDimensions())
	if err != nil {
		panic(err)
	}
	return r
}

// Get looks up a dimension by key.
func (r *DimensionRegistry) Get(key string) (models.Dimension, bool) {
	d, ok := r.dimensions[key]
	return d, ok
}

// Keys returns all dimension keys in sorted order.
func (r *DimensionRegistry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Dimensions returns all dimensions sorted by key.
func (r *DimensionRegistry) Dimensions() []models.Dimension {
	out := make([]models.Dimension, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.dimensions[k])
	}
	return out
}

func (r *DimensionRegistry) Len() int {
	return len(r.keys)
}

// NewProfile creates a first-contact profile: every dimension at its
// midpoint with zero confidence.
func (r *DimensionRegistry) NewProfile(id uuid.UUID) *models.Profile {
	p := &models.Profile{
		ID:                  id,
		Values:              make(map[string]float64, len(r.keys)),
		Confidences:         make(map[string]float64, len(r.keys)),
		AnsweredEvidenceIDs: models.NewStringSet(),
	}
	for _, k := range r.keys {
		p.Values[k] = r.dimensions[k].Midpoint()
		p.Confidences[k] = 0
	}
	return p
}
