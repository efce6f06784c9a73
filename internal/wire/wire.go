// Package wire converts between the persisted recipe document and the
// in-memory edit model, and applies change sets to documents. Stores share
// Apply so they agree on save semantics.
package wire

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// FromDocument builds an edit model from a document. All statuses start
// untouched and the cursor sits on the root.
func FromDocument(doc *domain.Document) *domain.Recipe {
	r := &domain.Recipe{
		ID:            doc.ID,
		Title:         doc.Title,
		Description:   doc.Description,
		Owner:         doc.Owner,
		RootStepID:    doc.RootStepID,
		CurrentStepID: doc.RootStepID,
		Steps:         make(map[domain.StepID]*domain.Step, len(doc.Steps)),
		Relations:     make(map[domain.RelationID]*domain.Relation, len(doc.Relations)),
	}
	for id, ds := range doc.Steps {
		s := &domain.Step{
			ID:          id,
			Title:       ds.Title,
			Instruction: ds.Instruction,
		}
		if ds.Extension != nil {
			s.Extension = &domain.Extension{Body: ds.Extension.Body, Duration: max(ds.Extension.Duration, 0)}
		}
		r.Steps[id] = s
	}
	for id, dr := range doc.Relations {
		rid := domain.RelationID(id)
		r.Relations[rid] = &domain.Relation{
			ID:       rid,
			ParentID: dr.ParentID,
			ChildID:  dr.ChildID,
		}
	}
	return r
}

// ToDocument renders the live part of a recipe as a document.
func ToDocument(r *domain.Recipe) *domain.Document {
	doc := &domain.Document{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Owner:       r.Owner,
		RootStepID:  r.RootStepID,
		Steps:       make(map[domain.StepID]domain.DocStep, len(r.Steps)),
		Relations:   make(map[string]domain.DocRelation, len(r.Relations)),
	}
	for id, s := range r.Steps {
		if s.Status.Live() {
			doc.Steps[id] = docStep(s)
		}
	}
	for id, rel := range r.Relations {
		if rel.Status.Live() {
			doc.Relations[string(id)] = domain.DocRelation{ParentID: rel.ParentID, ChildID: rel.ChildID}
		}
	}
	return doc
}

// ToChangeSet diffs a recipe against its persisted form using edit
// statuses. Entries are sorted by id.
func ToChangeSet(r *domain.Recipe) *domain.ChangeSet {
	cs := &domain.ChangeSet{
		RecipeID: r.ID,
		Header: domain.RecipeHeader{
			Title:       r.Title,
			Description: r.Description,
			Owner:       r.Owner,
			RootStepID:  r.RootStepID,
		},
		HeaderChanged: r.Status != domain.EditUntouched,
	}
	for _, s := range r.Steps {
		switch s.Status {
		case domain.EditCreated:
			cs.Steps.Create = append(cs.Steps.Create, docStep(s))
		case domain.EditModified:
			cs.Steps.Modified = append(cs.Steps.Modified, docStep(s))
		case domain.EditDeleted:
			cs.Steps.Delete = append(cs.Steps.Delete, s.ID)
		case domain.EditUntouched:
		}
	}
	for _, rel := range r.Relations {
		switch rel.Status {
		case domain.EditCreated:
			cs.Relations.Create = append(cs.Relations.Create, domain.RelationChange{
				ID:       rel.ID,
				ParentID: rel.ParentID,
				ChildID:  rel.ChildID,
			})
		case domain.EditDeleted:
			cs.Relations.Delete = append(cs.Relations.Delete, rel.ID)
		case domain.EditUntouched, domain.EditModified:
		}
	}

	byID := func(a, b domain.DocStep) int { return cmp.Compare(a.ID, b.ID) }
	slices.SortFunc(cs.Steps.Create, byID)
	slices.SortFunc(cs.Steps.Modified, byID)
	slices.Sort(cs.Steps.Delete)
	slices.SortFunc(cs.Relations.Create, func(a, b domain.RelationChange) int { return cmp.Compare(a.ID, b.ID) })
	slices.Sort(cs.Relations.Delete)
	return cs
}

// Apply produces the document that results from saving cs over doc. A nil
// doc starts from scratch. newID assigns persisted ids to created entities;
// nil keeps the temporary ids. doc is not modified.
func Apply(doc *domain.Document, cs *domain.ChangeSet, newID func() string) (*domain.Document, *domain.IDMap, error) {
	out := &domain.Document{
		ID:        cs.RecipeID,
		Steps:     make(map[domain.StepID]domain.DocStep),
		Relations: make(map[string]domain.DocRelation),
	}
	if doc != nil {
		for id, s := range doc.Steps {
			out.Steps[id] = s
		}
		for id, rel := range doc.Relations {
			out.Relations[id] = rel
		}
	}
	out.Title = cs.Header.Title
	out.Description = cs.Header.Description
	out.Owner = cs.Header.Owner

	ids := domain.NewIDMap()
	assign := func(tmp string) string {
		if newID == nil {
			return tmp
		}
		return newID()
	}

	for _, id := range cs.Relations.Delete {
		delete(out.Relations, string(id))
	}
	for _, id := range cs.Steps.Delete {
		delete(out.Steps, id)
	}
	for _, s := range cs.Steps.Modified {
		if _, ok := out.Steps[s.ID]; !ok {
			return nil, nil, domain.StepNotFound(s.ID)
		}
		out.Steps[s.ID] = s
	}
	for _, s := range cs.Steps.Create {
		id := domain.StepID(assign(string(s.ID)))
		ids.Steps[s.ID] = id
		s.ID = id
		out.Steps[id] = s
	}
	for _, rel := range cs.Relations.Create {
		id := domain.RelationID(assign(string(rel.ID)))
		ids.Relations[rel.ID] = id
		out.Relations[string(id)] = domain.DocRelation{
			ParentID: ids.Step(rel.ParentID),
			ChildID:  ids.Step(rel.ChildID),
		}
	}
	out.RootStepID = ids.Step(cs.Header.RootStepID)

	if err := Check(out); err != nil {
		return nil, nil, err
	}
	return out, ids, nil
}

// Check verifies that a document is self-consistent: the root exists and
// every relation references existing steps. Acyclicity is checked by
// graph.Validate on the edit model.
func Check(doc *domain.Document) error {
	if _, ok := doc.Steps[doc.RootStepID]; !ok {
		return fmt.Errorf("recipe %s: root %w", doc.ID, domain.StepNotFound(doc.RootStepID))
	}
	for id, rel := range doc.Relations {
		for _, end := range []domain.StepID{rel.ParentID, rel.ChildID} {
			if _, ok := doc.Steps[end]; !ok {
				return fmt.Errorf("%w: relation %s → step %s", domain.ErrDanglingRelation, id, end)
			}
		}
	}
	return nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *domain.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a JSON document and checks it.
func Decode(rd io.Reader) (*domain.Document, error) {
	var doc domain.Document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}
	if doc.Steps == nil {
		doc.Steps = make(map[domain.StepID]domain.DocStep)
	}
	if doc.Relations == nil {
		doc.Relations = make(map[string]domain.DocRelation)
	}
	for id, s := range doc.Steps {
		if s.ID == "" {
			s.ID = id
			doc.Steps[id] = s
		}
	}
	if err := Check(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func docStep(s *domain.Step) domain.DocStep {
	ds := domain.DocStep{ID: s.ID, Title: s.Title, Instruction: s.Instruction}
	if s.Extension != nil {
		ds.Extension = &domain.DocExtension{Body: s.Extension.Body, Duration: s.Extension.Duration}
	}
	return ds
}
