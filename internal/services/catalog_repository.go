package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/pkg/models"
)

// CatalogRepository reads media items and their attribute vectors from
// PostgreSQL
type CatalogRepository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db DatabaseQuerier, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// ListItems returns the whole catalog ordered by id
func (r *CatalogRepository) ListItems(ctx context.Context) ([]models.Item, error) {
	query := `
		SELECT id, title, attributes, popularity, rating, genres
		FROM media_items
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			r.logger.WithError(err).Warn("Skipping unreadable catalog item")
			continue
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog items: %w", err)
	}

	return items, nil
}

// GetItem returns one item or models.ErrItemNotFound
func (r *CatalogRepository) GetItem(ctx context.Context, id string) (*models.Item, error) {
	query := `
		SELECT id, title, attributes, popularity, rating, genres
		FROM media_items
		WHERE id = $1
	`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return item, nil
}

// SaveAttributes replaces the attribute vector of an item
func (r *CatalogRepository) SaveAttributes(ctx context.Context, id string, attributes map[string]float64) error {
	data, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE media_items SET attributes = $2 WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("failed to save attributes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrItemNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var (
		item      models.Item
		attrsJSON []byte
	)

	if err := row.Scan(&item.ID, &item.Title, &attrsJSON, &item.Popularity, &item.Rating, &item.Genres); err != nil {
		return nil, err
	}

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &item.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes for %s: %w", item.ID, err)
		}
	}
	if item.Attributes == nil {
		item.Attributes = make(map[string]float64)
	}
	return &item, nil
}
