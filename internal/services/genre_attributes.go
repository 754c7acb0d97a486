package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/psyrec/pkg/models"
)

// GenreAttributeSource estimates missing dimension values from an item's
// genres. Each known genre carries a partial attribute profile; an item gets
// the average over its recognised genres for every dimension at least one of
// them describes.
type GenreAttributeSource struct {
	registry *DimensionRegistry
	profiles map[string]map[string]float64
	aliases  map[string]string
	logger   *logrus.Logger
}

// defaultGenreProfiles uses the default dimension ranges: 0-10 except
// emotionalValence (-5..5).
var defaultGenreProfiles = map[string]map[string]float64{
	"action": {
		"pacePreference": 8.5, "emotionalIntensity": 7.5, "narrativeComplexity": 3.5,
		"intellectualEngagement": 3, "fantasyRealism": 5,
	},
	"adventure": {
		"pacePreference": 7, "emotionalValence": 2, "visualComplexity": 6.5, "fantasyRealism": 6,
	},
	"animation": {
		"visualComplexity": 7.5, "fantasyRealism": 8, "emotionalValence": 2.5, "humorStyle": 6,
	},
	"comedy": {
		"humorStyle": 8.5, "emotionalValence": 3.5, "emotionalIntensity": 3.5, "moralAmbiguity": 3,
	},
	"crime": {
		"moralAmbiguity": 7.5, "narrativeComplexity": 6.5, "emotionalValence": -2, "fantasyRealism": 2.5,
	},
	"documentary": {
		"fantasyRealism": 0.5, "intellectualEngagement": 8, "pacePreference": 3, "humorStyle": 2,
	},
	"drama": {
		"characterComplexity": 8, "emotionalIntensity": 6.5, "pacePreference": 3.5, "emotionalValence": -1,
	},
	"fantasy": {
		"fantasyRealism": 9.5, "visualComplexity": 7.5, "narrativeComplexity": 6,
	},
	"horror": {
		"emotionalValence": -4, "emotionalIntensity": 8.5, "pacePreference": 6, "humorStyle": 2,
	},
	"mystery": {
		"narrativeComplexity": 8, "intellectualEngagement": 7.5, "moralAmbiguity": 6, "pacePreference": 4.5,
	},
	"romance": {
		"emotionalValence": 3, "characterComplexity": 6, "emotionalIntensity": 6, "fantasyRealism": 4,
	},
	"science fiction": {
		"fantasyRealism": 8, "intellectualEngagement": 7.5, "visualComplexity": 7, "narrativeComplexity": 6.5,
	},
	"thriller": {
		"pacePreference": 7.5, "emotionalIntensity": 8, "moralAmbiguity": 6.5, "emotionalValence": -2.5,
	},
	"war": {
		"emotionalValence": -3.5, "emotionalIntensity": 8, "moralAmbiguity": 7, "fantasyRealism": 1.5,
	},
}

var defaultGenreAliases = map[string]string{
	"sci-fi":          "science fiction",
	"scifi":           "science fiction",
	"science-fiction": "science fiction",
	"sf":              "science fiction",
	"animated":        "animation",
	"anime":           "animation",
	"comedies":        "comedy",
	"rom-com":         "romance",
	"romantic":        "romance",
	"suspense":        "thriller",
	"detective":       "mystery",
	"noir":            "crime",
	"doc":             "documentary",
	"docs":            "documentary",
}

// NewGenreAttributeSource creates a genre based attribute source with the
// built-in genre table. Values outside a dimension's range are clamped and
// genres naming unknown dimensions are ignored.
func NewGenreAttributeSource(registry *DimensionRegistry, logger *logrus.Logger) *GenreAttributeSource {
	return &GenreAttributeSource{
		registry: registry,
		profiles: defaultGenreProfiles,
		aliases:  defaultGenreAliases,
		logger:   logger,
	}
}

// Attributes implements AttributeSource.
func (s *GenreAttributeSource) Attributes(ctx context.Context, item models.Item) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	genres := s.normalizeGenres(item.Genres)
	if len(genres) == 0 {
		return nil, fmt.Errorf("no known genres for item %s", item.ID)
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, genre := range genres {
		for key, value := range s.profiles[genre] {
			if _, ok := s.registry.Get(key); !ok {
				continue
			}
			sums[key] += value
			counts[key]++
		}
	}

	attributes := make(map[string]float64, len(sums))
	for key, sum := range sums {
		dim, _ := s.registry.Get(key)
		attributes[key] = dim.Clamp(sum / float64(counts[key]))
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":    item.ID,
		"genres":     genres,
		"dimensions": len(attributes),
	}).Debug("Estimated attributes from genres")

	return attributes, nil
}

// normalizeGenres maps genre labels onto the known taxonomy, dropping unknown
// and duplicate entries. The result is sorted.
func (s *GenreAttributeSource) normalizeGenres(genres []string) []string {
	seen := make(map[string]bool, len(genres))
	var out []string
	for _, genre := range genres {
		name := s.normalizeGenreName(genre)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *GenreAttributeSource) normalizeGenreName(genre string) string {
	// folding can leave decomposed sequences, so compose afterwards
	normalized := norm.NFC.String(cases.Fold().String(strings.TrimSpace(genre)))
	normalized = strings.Join(strings.Fields(normalized), " ")

	if _, ok := s.profiles[normalized]; ok {
		return normalized
	}
	if canonical, ok := s.aliases[normalized]; ok {
		return canonical
	}
	return ""
}
