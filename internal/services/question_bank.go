package services

import (
	"fmt"
	"time"

	"github.com/temcen/psyrec/pkg/models"
)

// QuestionBank resolves answered questions into choice evidence.
type QuestionBank struct {
	questions map[string]models.Question
	order     []string
	now       func() time.Time
}

// NewQuestionBank indexes questions. Duplicate question or option ids are a
// configuration error.
func NewQuestionBank(questions []models.Question) (*QuestionBank, error) {
	qb := &QuestionBank{
		questions: make(map[string]models.Question, len(questions)),
		order:     make([]string, 0, len(questions)),
		now:       time.Now,
	}

	for _, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question with empty id")
		}
		if _, exists := qb.questions[q.ID]; exists {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := seen[opt.ID]; dup || opt.ID == "" {
				return nil, fmt.Errorf("question %q has an empty or duplicate option id %q", q.ID, opt.ID)
			}
			seen[opt.ID] = struct{}{}
		}
		qb.questions[q.ID] = q
		qb.order = append(qb.order, q.ID)
	}

	return qb, nil
}

// Questions returns the questions in load order.
func (qb *QuestionBank) Questions() []models.Question {
	out := make([]models.Question, 0, len(qb.order))
	for _, id := range qb.order {
		out = append(out, qb.questions[id])
	}
	return out
}

// Resolve turns an answer into a choice event. Unknown ids are contract
// violations and surface as ErrUnknownQuestion / ErrUnknownOption.
func (qb *QuestionBank) Resolve(questionID, optionID string) (models.EvidenceEvent, error) {
	q, ok := qb.questions[questionID]
	if !ok {
		return models.EvidenceEvent{}, fmt.Errorf("%w: %s", models.ErrUnknownQuestion, questionID)
	}

	for _, opt := range q.Options {
		if opt.ID != optionID {
			continue
		}
		effects := make([]models.DimensionEffect, len(opt.Effects))
		copy(effects, opt.Effects)
		return models.EvidenceEvent{
			ID:         models.ChoiceEvidenceID(questionID),
			Kind:       models.EvidenceChoice,
			Timestamp:  qb.now(),
			QuestionID: questionID,
			OptionID:   optionID,
			Effects:    effects,
		}, nil
	}

	return models.EvidenceEvent{}, fmt.Errorf("%w: %s/%s", models.ErrUnknownOption, questionID, optionID)
}

// Validate checks that every option effect names a registry dimension.
func (qb *QuestionBank) Validate(registry *DimensionRegistry) error {
	for _, id := range qb.order {
		for _, opt := range qb.questions[id].Options {
			for _, effect := range opt.Effects {
				if _, ok := registry.Get(effect.Dimension); !ok {
					return fmt.Errorf("question %q option %q: %w: %s", id, opt.ID, models.ErrInvalidDimension, effect.Dimension)
				}
			}
		}
	}
	return nil
}

// DefaultQuestions is the built-in onboarding question set.
func DefaultQuestions() []models.Question {
	return []models.Question{
		{
			ID:   "story-shape",
			Text: "You have a free evening. Which story do you reach for?",
			Options: []models.QuestionOption{
				{ID: "puzzle", Text: "A mystery that keeps rearranging itself", Effects: []models.DimensionEffect{
					{Dimension: DimNarrativeComplexity, Target: 9, Confidence: 0.7},
					{Dimension: DimIntellectualEngagement, Target: 8, Confidence: 0.5},
				}},
				{ID: "journey", Text: "A clear quest with a satisfying finish", Effects: []models.DimensionEffect{
					{Dimension: DimNarrativeComplexity, Target: 3, Confidence: 0.7},
					{Dimension: DimPacePreference, Target: 7, Confidence: 0.4},
				}},
				{ID: "slice", Text: "Quiet days in someone else's life", Effects: []models.DimensionEffect{
					{Dimension: DimPacePreference, Target: 2, Confidence: 0.7},
					{Dimension: DimEmotionalValence, Target: 3, Confidence: 0.5},
				}},
			},
		},
		{
			ID:   "hero-choice",
			Text: "Which protagonist interests you most?",
			Options: []models.QuestionOption{
				{ID: "antihero", Text: "Someone doing the wrong things for the right reasons", Effects: []models.DimensionEffect{
					{Dimension: DimMoralAmbiguity, Target: 9, Confidence: 0.7},
					{Dimension: DimCharacterComplexity, Target: 8, Confidence: 0.6},
				}},
				{ID: "paragon", Text: "A hero who never compromises", Effects: []models.DimensionEffect{
					{Dimension: DimMoralAmbiguity, Target: 2, Confidence: 0.7},
					{Dimension: DimEmotionalValence, Target: 3, Confidence: 0.4},
				}},
				{ID: "ensemble", Text: "A whole cast, each with their own arc", Effects: []models.DimensionEffect{
					{Dimension: DimCharacterComplexity, Target: 7, Confidence: 0.6},
					{Dimension: DimNarrativeComplexity, Target: 6, Confidence: 0.4},
				}},
			},
		},
		{
			ID:   "palette",
			Text: "Pick the frame you would hang on your wall.",
			Options: []models.QuestionOption{
				{ID: "baroque", Text: "Every corner packed with detail", Effects: []models.DimensionEffect{
					{Dimension: DimVisualComplexity, Target: 9, Confidence: 0.7},
				}},
				{ID: "minimal", Text: "Clean lines and a few flat colours", Effects: []models.DimensionEffect{
					{Dimension: DimVisualComplexity, Target: 2, Confidence: 0.7},
				}},
				{ID: "painterly", Text: "Soft watercolour backgrounds", Effects: []models.DimensionEffect{
					{Dimension: DimVisualComplexity, Target: 6, Confidence: 0.5},
					{Dimension: DimEmotionalValence, Target: 2, Confidence: 0.3},
				}},
			},
		},
		{
			ID:   "ending",
			Text: "How should a great story end?",
			Options: []models.QuestionOption{
				{ID: "bittersweet", Text: "Bittersweet, with a price paid", Effects: []models.DimensionEffect{
					{Dimension: DimEmotionalValence, Target: -2, Confidence: 0.5},
					{Dimension: DimEmotionalIntensity, Target: 8, Confidence: 0.6},
				}},
				{ID: "happy", Text: "Everyone gets the ending they deserve", Effects: []models.DimensionEffect{
					{Dimension: DimEmotionalValence, Target: 4, Confidence: 0.6},
					{Dimension: DimEmotionalIntensity, Target: 4, Confidence: 0.4},
				}},
				{ID: "bleak", Text: "Unflinching, even if it hurts", Effects: []models.DimensionEffect{
					{Dimension: DimEmotionalValence, Target: -4, Confidence: 0.7},
					{Dimension: DimMoralAmbiguity, Target: 7, Confidence: 0.4},
				}},
			},
		},
		{
			ID:   "world",
			Text: "Where would you rather spend a season?",
			Options: []models.QuestionOption{
				{ID: "otherworld", Text: "A world with its own magic and rules", Effects: []models.DimensionEffect{
					{Dimension: DimFantasyRealism, Target: 9, Confidence: 0.7},
				}},
				{ID: "hometown", Text: "A town that could exist down the road", Effects: []models.DimensionEffect{
					{Dimension: DimFantasyRealism, Target: 2, Confidence: 0.7},
				}},
			},
		},
		{
			ID:   "laugh",
			Text: "What makes you laugh?",
			Options: []models.QuestionOption{
				{ID: "slapstick", Text: "Big reactions and physical comedy", Effects: []models.DimensionEffect{
					{Dimension: DimHumorStyle, Target: 2, Confidence: 0.6},
				}},
				{ID: "deadpan", Text: "A perfectly timed deadpan line", Effects: []models.DimensionEffect{
					{Dimension: DimHumorStyle, Target: 8, Confidence: 0.6},
					{Dimension: DimIntellectualEngagement, Target: 6, Confidence: 0.3},
				}},
			},
		},
	}
}
