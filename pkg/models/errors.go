package models

import "errors"

// Contract violations. The engine degrades gracefully on missing data and only
// returns these when the caller hands it something it cannot interpret.
var (
	ErrInvalidDimension     = errors.New("invalid dimension")
	ErrUnknownQuestion      = errors.New("unknown question")
	ErrUnknownOption        = errors.New("unknown option")
	ErrUnknownEvidenceKind  = errors.New("unknown evidence kind")
	ErrMissingFeedbackValue = errors.New("feedback event has neither rating nor reaction")
	ErrNilProfile           = errors.New("profile is nil")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrItemNotFound         = errors.New("item not found")
)
