package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// StringSet is a set of strings that marshals as a sorted JSON array.
type StringSet map[string]struct{}

func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// Profile is a user's current belief state across all dimensions.
type Profile struct {
	ID                  uuid.UUID          `json:"id" db:"id"`
	Values              map[string]float64 `json:"values" db:"dimension_values"`
	Confidences         map[string]float64 `json:"confidences" db:"confidences"`
	AnsweredEvidenceIDs StringSet          `json:"answered_evidence_ids" db:"answered_evidence_ids"`
	InteractionCount    int                `json:"interaction_count" db:"interaction_count"`
	LastUpdated         time.Time          `json:"last_updated" db:"last_updated"`
}

// Confidence returns the confidence for key, zero when unknown.
func (p *Profile) Confidence(key string) float64 {
	if p == nil {
		return 0
	}
	return p.Confidences[key]
}

// Clone returns a deep copy so updates never alias the caller's maps.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	clone := &Profile{
		ID:                  p.ID,
		Values:              make(map[string]float64, len(p.Values)),
		Confidences:         make(map[string]float64, len(p.Confidences)),
		AnsweredEvidenceIDs: make(StringSet, len(p.AnsweredEvidenceIDs)),
		InteractionCount:    p.InteractionCount,
		LastUpdated:         p.LastUpdated,
	}
	for k, v := range p.Values {
		clone.Values[k] = v
	}
	for k, v := range p.Confidences {
		clone.Confidences[k] = v
	}
	for k := range p.AnsweredEvidenceIDs {
		clone.AnsweredEvidenceIDs[k] = struct{}{}
	}
	return clone
}

type CreateProfileRequest struct {
	ID string `json:"id,omitempty" validate:"omitempty,uuid"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,min=1,max=128"`
	OptionID   string `json:"option_id" validate:"required,min=1,max=128"`
}

type FeedbackRequest struct {
	ItemID   string   `json:"item_id" validate:"required,min=1,max=255"`
	Rating   *float64 `json:"rating,omitempty" validate:"omitempty,min=1,max=10"`
	Reaction string   `json:"reaction,omitempty" validate:"omitempty,oneof=like dislike neutral"`
}

type ProfileResponse struct {
	Profile *Profile `json:"profile"`
	Queued  bool     `json:"queued,omitempty"`
}
