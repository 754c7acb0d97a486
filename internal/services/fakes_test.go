package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/temcen/psyrec/pkg/models"
)

type memoryProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.Profile
	saves    int
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{profiles: make(map[uuid.UUID]*models.Profile)}
}

func (s *memoryProfileStore) Get(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *memoryProfileStore) Save(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile.Clone()
	s.saves++
	return nil
}

type memoryCatalog struct {
	items    []models.Item
	saved    map[string]map[string]float64
	listHits int
}

func (c *memoryCatalog) ListItems(context.Context) ([]models.Item, error) {
	c.listHits++
	out := make([]models.Item, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *memoryCatalog) GetItem(_ context.Context, id string) (*models.Item, error) {
	for i := range c.items {
		if c.items[i].ID == id {
			item := c.items[i]
			return &item, nil
		}
	}
	return nil, models.ErrItemNotFound
}

func (c *memoryCatalog) SaveAttributes(_ context.Context, id string, attributes map[string]float64) error {
	if c.saved == nil {
		c.saved = make(map[string]map[string]float64)
	}
	c.saved[id] = attributes
	return nil
}

type stubAttributeSource struct {
	mu      sync.Mutex
	values  map[string]map[string]float64
	calls   int
	failFor map[string]bool
}

func (s *stubAttributeSource) Attributes(_ context.Context, item models.Item) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failFor[item.ID] {
		return nil, errors.New("lookup unavailable")
	}
	return s.values[item.ID], nil
}

type recordingPublisher struct {
	events []models.EvidenceEvent
	err    error
}

func (p *recordingPublisher) PublishEvidence(_ context.Context, _ uuid.UUID, event models.EvidenceEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (i *countingInvalidator) Invalidate(context.Context, uuid.UUID) error {
	i.calls++
	return nil
}
