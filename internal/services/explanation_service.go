package services

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// defaultExplanationSeed is used when the configured seed is zero.
const defaultExplanationSeed int64 = 42

// reasonTemplates are equivalent phrasings. Arguments are the level word and
// the lower-case dimension label.
var reasonTemplates = []string{
	"Its %s %s lines up closely with yours",
	"You lean toward %s %s, and so does this one",
	"A strong match on %[2]s: this title sits at a %[1]s level, like you",
	"Fits your taste for %s %s",
}

// ExplanationService explains recommendations through the dimensions that
// match the profile most strongly.
type ExplanationService struct {
	registry *DimensionRegistry
	config   config.ExplanationConfig
	logger   *logrus.Logger
	seed     int64
	title    cases.Caser
}

// NewExplanationService creates a new explanation service
func NewExplanationService(registry *DimensionRegistry, cfg config.ExplanationConfig, logger *logrus.Logger) *ExplanationService {
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultExplanationSeed
	}
	if cfg.MaxReasons < 1 {
		cfg.MaxReasons = 1
	}
	return &ExplanationService{
		registry: registry,
		config:   cfg,
		logger:   logger,
		seed:     seed,
		title:    cases.Title(language.English),
	}
}

// NewRand returns a phrasing source seeded with the configured seed. Callers
// that explain a whole result list share one source so the list is
// reproducible.
func (es *ExplanationService) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(es.seed))
}

// Explain returns up to MaxReasons strong matches using a fresh phrasing
// source.
func (es *ExplanationService) Explain(profile *models.Profile, attributes map[string]float64) []models.MatchReason {
	return es.ExplainWith(es.NewRand(), profile, attributes)
}

// ExplainWith considers dimensions the profile has any confidence in, keeps
// those at or above StrongMatchThreshold, and returns the strongest first.
// rng only affects wording.
func (es *ExplanationService) ExplainWith(rng *rand.Rand, profile *models.Profile, attributes map[string]float64) []models.MatchReason {
	if profile == nil || len(attributes) == 0 {
		return []models.MatchReason{}
	}

	type match struct {
		dim models.Dimension
		sim float64
		val float64
	}

	var matches []match
	for _, dim := range es.registry.Dimensions() {
		if profile.Confidence(dim.Key) <= 0 {
			continue
		}
		pv, ok := profile.Values[dim.Key]
		if !ok {
			continue
		}
		av, ok := attributes[dim.Key]
		if !ok {
			continue
		}
		sim := DimensionSimilarity(dim, pv, av)
		if sim >= es.config.StrongMatchThreshold {
			matches = append(matches, match{dim: dim, sim: sim, val: av})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		return matches[i].dim.Key < matches[j].dim.Key
	})
	if len(matches) > es.config.MaxReasons {
		matches = matches[:es.config.MaxReasons]
	}

	reasons := make([]models.MatchReason, 0, len(matches))
	for _, m := range matches {
		template := reasonTemplates[0]
		if rng != nil {
			template = reasonTemplates[rng.Intn(len(reasonTemplates))]
		}
		reasons = append(reasons, models.MatchReason{
			Dimension:   m.dim.Key,
			Strength:    m.sim,
			Explanation: fmt.Sprintf(template, levelWord(m.dim, m.val), strings.ToLower(es.Label(m.dim.Key))),
		})
	}
	return reasons
}

// Summarize renders a one-line summary. Without reasons it falls back to a
// popularity sentence.
func (es *ExplanationService) Summarize(item models.Item, reasons []models.MatchReason) string {
	if len(reasons) == 0 {
		switch {
		case item.Popularity >= 70:
			return fmt.Sprintf("%s is one of the most popular titles right now", item.Title)
		case item.Rating > 0:
			return fmt.Sprintf("%s is well regarded (rated %.1f) and a good place to start", item.Title, item.Rating)
		default:
			return fmt.Sprintf("%s is a good place to start while we learn your taste", item.Title)
		}
	}

	labels := make([]string, len(reasons))
	for i, r := range reasons {
		labels[i] = strings.ToLower(es.Label(r.Dimension))
	}

	var joined string
	switch len(labels) {
	case 1:
		joined = labels[0]
	case 2:
		joined = labels[0] + " and " + labels[1]
	default:
		joined = strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
	return fmt.Sprintf("Recommended for its %s", joined)
}

// Label turns a dimension key such as "narrativeComplexity" into
// "Narrative Complexity".
func (es *ExplanationService) Label(key string) string {
	var words []string
	var current []rune
	for _, r := range key {
		if (unicode.IsUpper(r) || r == '_' || r == '-') && len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
		if r == '_' || r == '-' {
			continue
		}
		current = append(current, unicode.ToLower(r))
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	return es.title.String(strings.Join(words, " "))
}

func levelWord(dim models.Dimension, v float64) string {
	n := dim.Normalize(v)
	switch {
	case n >= 0.67:
		return "high"
	case n <= 0.33:
		return "low"
	default:
		return "moderate"
	}
}
