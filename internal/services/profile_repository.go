package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// ProfileRepository stores profile snapshots in PostgreSQL
type ProfileRepository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db DatabaseQuerier, logger *logrus.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Get loads the latest snapshot of a profile
func (r *ProfileRepository) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, dimension_values, confidences, answered_evidence_ids, interaction_count, last_updated
		FROM profiles
		WHERE id = $1
	`

	var (
		profile     models.Profile
		valuesJSON  []byte
		confJSON    []byte
		evidenceIDs []string
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&valuesJSON,
		&confJSON,
		&evidenceIDs,
		&profile.InteractionCount,
		&profile.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal(valuesJSON, &profile.Values); err != nil {
		return nil, fmt.Errorf("failed to decode profile values: %w", err)
	}
	if err := json.Unmarshal(confJSON, &profile.Confidences); err != nil {
		return nil, fmt.Errorf("failed to decode profile confidences: %w", err)
	}
	if profile.Values == nil {
		profile.Values = make(map[string]float64)
	}
	if profile.Confidences == nil {
		profile.Confidences = make(map[string]float64)
	}
	profile.AnsweredEvidenceIDs = models.NewStringSet(evidenceIDs...)

	return &profile, nil
}

// Save upserts the profile snapshot
func (r *ProfileRepository) Save(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return models.ErrNilProfile
	}

	valuesJSON, err := json.Marshal(profile.Values)
	if err != nil {
		return fmt.Errorf("failed to encode profile values: %w", err)
	}
	confJSON, err := json.Marshal(profile.Confidences)
	if err != nil {
		return fmt.Errorf("failed to encode profile confidences: %w", err)
	}

	lastUpdated := profile.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	query := `
		INSERT INTO profiles (id, dimension_values, confidences, answered_evidence_ids, interaction_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			dimension_values = EXCLUDED.dimension_values,
			confidences = EXCLUDED.confidences,
			answered_evidence_ids = EXCLUDED.answered_evidence_ids,
			interaction_count = EXCLUDED.interaction_count,
			last_updated = EXCLUDED.last_updated
	`

	_, err = r.db.Exec(ctx, query,
		profile.ID,
		valuesJSON,
		confJSON,
		profile.AnsweredEvidenceIDs.Sorted(),
		profile.InteractionCount,
		lastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"profile_id":        profile.ID,
		"interaction_count": profile.InteractionCount,
	}).Debug("Saved profile")

	return nil
}
