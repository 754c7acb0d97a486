package models

import "time"

// EvidenceKind distinguishes the two shapes of evidence a profile accepts.
type EvidenceKind string

const (
	EvidenceChoice   EvidenceKind = "choice"   // an answered question
	EvidenceFeedback EvidenceKind = "feedback" // a rating or reaction to an item
)

// Reaction is a categorical feedback value.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
	ReactionNeutral Reaction = "neutral"
)

// DimensionEffect asserts that a dimension should move toward Target with
// the given confidence.
type DimensionEffect struct {
	Dimension  string  `json:"dimension"`
	Target     float64 `json:"target"`
	Confidence float64 `json:"confidence"`
}

// EvidenceEvent is consumed immediately by the profile updater and never
// persisted by the engine.
type EvidenceEvent struct {
	ID        string       `json:"id"`
	Kind      EvidenceKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`

	// choice events
	QuestionID string            `json:"question_id,omitempty"`
	OptionID   string            `json:"option_id,omitempty"`
	Effects    []DimensionEffect `json:"effects,omitempty"`

	// feedback events
	ItemID         string             `json:"item_id,omitempty"`
	ItemAttributes map[string]float64 `json:"item_attributes,omitempty"`
	Rating         *float64           `json:"rating,omitempty"`
	Reaction       Reaction           `json:"reaction,omitempty"`
}

// FeedbackEvidenceID is the evidence id recorded for feedback on an item.
func FeedbackEvidenceID(itemID string) string {
	return "item:" + itemID
}

// ChoiceEvidenceID is the evidence id recorded for an answered question.
func ChoiceEvidenceID(questionID string) string {
	return "question:" + questionID
}

// Question is one entry of the question bank.
type Question struct {
	ID      string           `json:"id"`
	Text    string           `json:"text"`
	Options []QuestionOption `json:"options"`
}

type QuestionOption struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Effects []DimensionEffect `json:"effects"`
}
