package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchReason explains one dimension driving a recommendation.
type MatchReason struct {
	Dimension   string  `json:"dimension"`
	Strength    float64 `json:"strength"`
	Explanation string  `json:"explanation"`
}

// RecommendationResult is created fresh per call and never mutated afterwards.
type RecommendationResult struct {
	Item         Item          `json:"item"`
	Score        float64       `json:"score"` // 0-10
	MatchReasons []MatchReason `json:"match_reasons"`
	Summary      string        `json:"summary"`
	Bucket       string        `json:"bucket"`
	Position     int           `json:"position"`
}

type RecommendationOptions struct {
	Count          int      `json:"count" validate:"min=0,max=100"`
	MinScore       float64  `json:"min_score" validate:"min=0,max=10"`
	ExcludeIDs     []string `json:"exclude_ids,omitempty"`
	IncludeBuckets []string `json:"include_buckets,omitempty"`
	ExcludeBuckets []string `json:"exclude_buckets,omitempty"`
	IncludeRated   bool     `json:"include_rated"`
	Mood           Mood     `json:"mood,omitempty" validate:"omitempty,oneof=any happy sad relaxed excited thoughtful adventurous romantic mysterious"`
}

// Mood biases a single request toward items with a matching tone. It never
// touches the stored profile.
type Mood string

const (
	MoodAny         Mood = "any"
	MoodHappy       Mood = "happy"
	MoodSad         Mood = "sad"
	MoodRelaxed     Mood = "relaxed"
	MoodExcited     Mood = "excited"
	MoodThoughtful  Mood = "thoughtful"
	MoodAdventurous Mood = "adventurous"
	MoodRomantic    Mood = "romantic"
	MoodMysterious  Mood = "mysterious"
)

type RecommendationResponse struct {
	ProfileID       uuid.UUID              `json:"profile_id"`
	Recommendations []RecommendationResult `json:"recommendations"`
	ColdStart       bool                   `json:"cold_start"`
	GeneratedAt     time.Time              `json:"generated_at"`
	CacheHit        bool                   `json:"cache_hit"`
}
