package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

// Compile-time interface check.
var _ domain.RecipeStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory recipe store. Safe for concurrent access.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*domain.Document
	newID func() string
	log   *logger.Logger
}

// NewMemoryStore creates an empty in-memory recipe store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*domain.Document),
		newID: newPersistedID,
		log:   log,
	}
}

// List returns summaries of every stored recipe, sorted by title.
func (s *MemoryStore) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecipeSummary, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Summary())
	}
	sortSummaries(out)
	s.log.Debug("listing recipes, count=%d", len(out))
	return out, nil
}

// Load returns a copy of a recipe document.
func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		s.log.Debug("recipe not found: %s", id)
		return nil, &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	return cloneDoc(d), nil
}

// Create stores doc, replacing any document with the same id.
func (s *MemoryStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := wire.Check(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = cloneDoc(doc)
	s.log.Debug("stored recipe %s (%d steps)", doc.ID, len(doc.Steps))
	return nil
}

// Save applies a change set. A change set for an unknown recipe creates it.
func (s *MemoryStore) Save(ctx context.Context, cs *domain.ChangeSet) (*domain.IDMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ids, err := wire.Apply(s.docs[cs.RecipeID], cs, s.newID)
	if err != nil {
		return nil, fmt.Errorf("saving recipe %s: %w", cs.RecipeID, err)
	}
	s.docs[cs.RecipeID] = next
	s.log.Debug("saved recipe %s (+%d steps, -%d steps)", cs.RecipeID, len(cs.Steps.Create), len(cs.Steps.Delete))
	return ids, nil
}

// Delete removes a recipe by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	delete(s.docs, id)
	s.log.Debug("deleted recipe %s", id)
	return nil
}
