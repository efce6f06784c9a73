// Package storage provides recipe document stores: in-memory, JSON files,
// Redis and MongoDB. Every backend applies change sets through wire.Apply.
package storage

import (
	"cmp"
	"slices"

	"github.com/google/uuid"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// newPersistedID assigns ids to entities created in a save.
func newPersistedID() string {
	return uuid.New().String()
}

// cloneDoc deep-copies a document so callers never share maps with a store.
func cloneDoc(d *domain.Document) *domain.Document {
	c := *d
	c.Steps = make(map[domain.StepID]domain.DocStep, len(d.Steps))
	for id, s := range d.Steps {
		if s.Extension != nil {
			ext := *s.Extension
			s.Extension = &ext
		}
		c.Steps[id] = s
	}
	c.Relations = make(map[string]domain.DocRelation, len(d.Relations))
	for id, r := range d.Relations {
		c.Relations[id] = r
	}
	return &c
}

func sortSummaries(out []domain.RecipeSummary) {
	slices.SortFunc(out, func(a, b domain.RecipeSummary) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
}
