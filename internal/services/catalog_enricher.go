package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

// CatalogEnricher fills in missing item attributes from an AttributeSource.
// Lookups run in batches with bounded concurrency; a failed lookup leaves the
// item unscored on the missing dimensions.
type CatalogEnricher struct {
	registry    *DimensionRegistry
	source      AttributeSource
	saver       AttributeSaver
	batchSize   int
	concurrency int
	timeout     time.Duration
	metrics     *EngineMetrics
	logger      *logrus.Logger
}

// NewCatalogEnricher creates a new catalog enricher. source, saver and
// metrics may be nil; without a source Enrich is a no-op.
func NewCatalogEnricher(
	registry *DimensionRegistry,
	source AttributeSource,
	saver AttributeSaver,
	cfg config.CatalogConfig,
	metrics *EngineMetrics,
	logger *logrus.Logger,
) *CatalogEnricher {
	e := &CatalogEnricher{
		registry:    registry,
		source:      source,
		saver:       saver,
		batchSize:   cfg.EnrichmentBatchSize,
		concurrency: cfg.EnrichmentConcurrency,
		timeout:     cfg.EnrichmentTimeout,
		metrics:     metrics,
		logger:      logger,
	}
	if e.batchSize <= 0 {
		e.batchSize = 50
	}
	if e.concurrency <= 0 {
		e.concurrency = 1
	}
	return e
}

// Enrich returns a copy of items with missing attributes filled in. Existing
// attributes are never overwritten. It stops early only when ctx is done.
func (e *CatalogEnricher) Enrich(ctx context.Context, items []models.Item) ([]models.Item, error) {
	out := make([]models.Item, len(items))
	copy(out, items)
	if e.source == nil {
		return out, nil
	}

	var pending []int
	for i := range out {
		if e.missing(out[i]) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	enriched, failed := 0, 0
	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		found := make([]map[string]float64, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for j, idx := range batch {
			j, item := j, out[idx]
			g.Go(func() error {
				lookupCtx := gctx
				if e.timeout > 0 {
					var cancel context.CancelFunc
					lookupCtx, cancel = context.WithTimeout(gctx, e.timeout)
					defer cancel()
				}
				attrs, err := e.source.Attributes(lookupCtx, item)
				if err != nil {
					e.logger.WithError(err).WithField("item_id", item.ID).Warn("Attribute lookup failed")
					e.metrics.IncEnrichmentFailure()
					return nil
				}
				found[j] = attrs
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return out, err
		}

		for j, idx := range batch {
			if found[j] == nil {
				failed++
				continue
			}
			if e.merge(&out[idx], found[j]) {
				enriched++
				e.persist(ctx, out[idx])
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"pending":  len(pending),
		"enriched": enriched,
		"failed":   failed,
	}).Info("Catalog enrichment finished")

	return out, nil
}

// missing reports whether the item lacks any registry dimension.
func (e *CatalogEnricher) missing(item models.Item) bool {
	for _, key := range e.registry.Keys() {
		if _, ok := item.Attributes[key]; !ok {
			return true
		}
	}
	return false
}

// merge copies unknown registry dimensions from found into item, clamped to
// bounds. It reports whether anything was added.
func (e *CatalogEnricher) merge(item *models.Item, found map[string]float64) bool {
	attrs := make(map[string]float64, len(item.Attributes)+len(found))
	for k, v := range item.Attributes {
		attrs[k] = v
	}

	added := false
	for key, value := range found {
		dim, ok := e.registry.Get(key)
		if !ok {
			continue
		}
		if _, exists := attrs[key]; exists {
			continue
		}
		attrs[key] = dim.Clamp(value)
		added = true
	}

	if added {
		item.Attributes = attrs
	}
	return added
}

func (e *CatalogEnricher) persist(ctx context.Context, item models.Item) {
	if e.saver == nil {
		return
	}
	if err := e.saver.SaveAttributes(ctx, item.ID, item.Attributes); err != nil {
		e.logger.WithError(err).WithField("item_id", item.ID).Warn("Failed to persist enriched attributes")
	}
}
