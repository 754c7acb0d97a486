package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/psyrec/internal/config"
	"github.com/temcen/psyrec/pkg/models"
)

func newTestRecommendationService(t *testing.T, catalog *memoryCatalog, source AttributeSource) (*RecommendationService, *memoryProfileStore, *DimensionRegistry) {
	t.Helper()

	rec, registry := newTestRecommender()
	store := newMemoryProfileStore()
	enricher := NewCatalogEnricher(registry, source, catalog, config.CatalogConfig{}, nil, newTestLogger())

	svc := NewRecommendationService(store, catalog, enricher, rec, nil, time.Minute, nil, newTestLogger())
	return svc, store, registry
}

func TestRecommendationService_GetRecommendations(t *testing.T) {
	catalog := &memoryCatalog{items: spreadCatalog()}
	svc, store, registry := newTestRecommendationService(t, catalog, nil)
	ctx := context.Background()

	profile := narrativeProfile(registry)
	require.NoError(t, store.Save(ctx, profile))

	resp, err := svc.GetRecommendations(ctx, profile.ID, models.RecommendationOptions{Count: 6})
	require.NoError(t, err)
	assert.Equal(t, profile.ID, resp.ProfileID)
	assert.False(t, resp.ColdStart)
	assert.False(t, resp.CacheHit)
	assert.Len(t, resp.Recommendations, 6)
	assert.False(t, resp.GeneratedAt.IsZero())

	for i, r := range resp.Recommendations {
		assert.Equal(t, i+1, r.Position)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 10.0)
	}
}

func TestRecommendationService_ColdStart(t *testing.T) {
	catalog := &memoryCatalog{items: spreadCatalog()}
	svc, store, registry := newTestRecommendationService(t, catalog, nil)
	ctx := context.Background()

	profile := registry.NewProfile(uuid.New())
	require.NoError(t, store.Save(ctx, profile))

	resp, err := svc.GetRecommendations(ctx, profile.ID, models.RecommendationOptions{Count: 5})
	require.NoError(t, err)
	assert.True(t, resp.ColdStart)
	require.Len(t, resp.Recommendations, 5)
	assert.GreaterOrEqual(t, resp.Recommendations[0].Item.Popularity, resp.Recommendations[4].Item.Popularity)
}

func TestRecommendationService_UnknownProfile(t *testing.T) {
	catalog := &memoryCatalog{items: spreadCatalog()}
	svc, _, _ := newTestRecommendationService(t, catalog, nil)

	_, err := svc.GetRecommendations(context.Background(), uuid.New(), models.RecommendationOptions{})
	assert.ErrorIs(t, err, models.ErrProfileNotFound)
	assert.Equal(t, 0, catalog.listHits)
}

func TestRecommendationService_EnrichesCatalog(t *testing.T) {
	items := spreadCatalog()
	source := &stubAttributeSource{values: map[string]map[string]float64{}}
	catalog := &memoryCatalog{items: items}
	svc, store, registry := newTestRecommendationService(t, catalog, source)
	ctx := context.Background()

	profile := narrativeProfile(registry)
	require.NoError(t, store.Save(ctx, profile))

	_, err := svc.GetRecommendations(ctx, profile.ID, models.RecommendationOptions{Count: 3})
	require.NoError(t, err)
	assert.Equal(t, len(items), source.calls, "every item lacks some dimension")
}

func TestRecommendationService_CacheKey(t *testing.T) {
	svc, _, registry := newTestRecommendationService(t, &memoryCatalog{}, nil)

	profile := registry.NewProfile(uuid.New())
	profile.LastUpdated = time.Unix(100, 0)

	a := svc.buildCacheKey(profile, models.RecommendationOptions{Count: 5, ExcludeIDs: []string{"b", "a"}})
	b := svc.buildCacheKey(profile, models.RecommendationOptions{Count: 5, ExcludeIDs: []string{"a", "b"}})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "recommendations:"+profile.ID.String()+":")

	withMood := svc.buildCacheKey(profile, models.RecommendationOptions{Count: 5, ExcludeIDs: []string{"a", "b"}, Mood: models.MoodHappy})
	assert.NotEqual(t, a, withMood, "mood changes the ranking so it must change the key")

	profile.LastUpdated = time.Unix(200, 0)
	assert.NotEqual(t, a, svc.buildCacheKey(profile, models.RecommendationOptions{Count: 5, ExcludeIDs: []string{"a", "b"}}))
}

func TestRecommendationService_InvalidateWithoutRedis(t *testing.T) {
	svc, _, _ := newTestRecommendationService(t, &memoryCatalog{}, nil)
	assert.NoError(t, svc.Invalidate(context.Background(), uuid.New()))
}
