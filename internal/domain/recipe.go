// Package domain defines the core types and interfaces for dagchef.
// All other packages depend on domain; domain depends on nothing.
package domain

import (
	"maps"
	"time"
)

// StepID identifies a step within a recipe.
type StepID string

// RelationID identifies a relation within a recipe.
type RelationID string

// EditStatus tracks unsaved changes to a step or relation. It is unrelated
// to play-mode execution status.
type EditStatus int

const (
	// EditUntouched is the state after a load or a committed save.
	EditUntouched EditStatus = iota
	// EditCreated marks an entity that only exists in this editing session.
	EditCreated
	// EditModified marks a persisted entity with unsaved changes.
	EditModified
	// EditDeleted marks a persisted entity awaiting deletion on save.
	EditDeleted
)

// String returns a human-readable edit status.
func (s EditStatus) String() string {
	switch s {
	case EditUntouched:
		return "untouched"
	case EditCreated:
		return "created"
	case EditModified:
		return "modified"
	case EditDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Pending reports whether the entity was never persisted. Pending entities
// carry a temporary id and are purged instead of tombstoned.
func (s EditStatus) Pending() bool { return s == EditCreated }

// Live reports whether the entity takes part in the graph.
func (s EditStatus) Live() bool { return s != EditDeleted }

// Touch returns the status after a mutation.
func (s EditStatus) Touch() EditStatus {
	switch s {
	case EditCreated, EditDeleted:
		return s
	default:
		return EditModified
	}
}

// Deletion says how to remove an entity.
type Deletion int

const (
	// DeletionPurge removes the entity from the map outright.
	DeletionPurge Deletion = iota
	// DeletionTombstone keeps the entity with status deleted until save.
	DeletionTombstone
	// DeletionNone means the entity is already tombstoned.
	DeletionNone
)

// DeletionFor maps an edit status to the way the entity is deleted.
func DeletionFor(s EditStatus) Deletion {
	switch s {
	case EditCreated:
		return DeletionPurge
	case EditUntouched, EditModified:
		return DeletionTombstone
	case EditDeleted:
		return DeletionNone
	default:
		return DeletionTombstone
	}
}

// Extension marks a step as timed.
type Extension struct {
	Body     string
	Duration int // whole seconds, never negative
}

// DurationValue returns the extension length as a time.Duration.
func (e *Extension) DurationValue() time.Duration {
	if e == nil || e.Duration <= 0 {
		return 0
	}
	return time.Duration(e.Duration) * time.Second
}

// Step is a node in the recipe graph.
type Step struct {
	ID          StepID
	Title       string
	Instruction string
	Extension   *Extension // nil for untimed steps
	Status      EditStatus
}

// Timed reports whether the step carries a timer extension.
func (s *Step) Timed() bool { return s.Extension != nil }

// Clone returns a deep copy.
func (s *Step) Clone() *Step {
	c := *s
	if s.Extension != nil {
		ext := *s.Extension
		c.Extension = &ext
	}
	return &c
}

// Relation is a directed edge parent → child.
type Relation struct {
	ID       RelationID
	ParentID StepID
	ChildID  StepID
	Status   EditStatus
}

// Key returns the structured lookup key for the relation.
func (r *Relation) Key() RelationKey {
	return RelationKey{Parent: r.ParentID, Child: r.ChildID}
}

// RelationKey is a composite index over a relation's endpoints. It is a
// lookup key, not the relation's identity.
type RelationKey struct {
	Parent StepID
	Child  StepID
}

// Recipe is an editable step graph.
type Recipe struct {
	ID            string
	Title         string
	Description   string
	Owner         string
	RootStepID    StepID
	CurrentStepID StepID
	Steps         map[StepID]*Step
	Relations     map[RelationID]*Relation

	// Status tracks the header fields (title, description). Steps and
	// relations carry their own.
	Status EditStatus

	// Revision increments on every successful edit.
	Revision uint64
}

// RecipeSummary is a lightweight view of a recipe for listing.
type RecipeSummary struct {
	ID          string
	Title       string
	Description string
	Owner       string
	Steps       int
}

// Clone returns a deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.Steps = make(map[StepID]*Step, len(r.Steps))
	for id, s := range r.Steps {
		c.Steps[id] = s.Clone()
	}
	c.Relations = make(map[RelationID]*Relation, len(r.Relations))
	for id, rel := range r.Relations {
		cp := *rel
		c.Relations[id] = &cp
	}
	return &c
}

// LiveStep returns the step if it exists and is not deleted.
func (r *Recipe) LiveStep(id StepID) (*Step, bool) {
	s, ok := r.Steps[id]
	if !ok || !s.Status.Live() {
		return nil, false
	}
	return s, true
}

// Index builds the relation-key index over live relations.
func (r *Recipe) Index() map[RelationKey]RelationID {
	idx := make(map[RelationKey]RelationID, len(r.Relations))
	for id, rel := range r.Relations {
		if rel.Status.Live() {
			idx[rel.Key()] = id
		}
	}
	return idx
}

// Summary returns the listing view of the recipe.
func (r *Recipe) Summary() RecipeSummary {
	n := 0
	for _, s := range r.Steps {
		if s.Status.Live() {
			n++
		}
	}
	return RecipeSummary{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Owner:       r.Owner,
		Steps:       n,
	}
}

// StepPatch is a partial update to a step. Nil fields are left alone.
type StepPatch struct {
	Title          *string
	Instruction    *string
	Extension      *Extension
	ClearExtension bool
}

// Apply merges the patch into s.
func (p StepPatch) Apply(s *Step) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Instruction != nil {
		s.Instruction = *p.Instruction
	}
	if p.ClearExtension {
		s.Extension = nil
	}
	if p.Extension != nil {
		ext := *p.Extension
		if ext.Duration < 0 {
			ext.Duration = 0
		}
		s.Extension = &ext
	}
}

// RecipePatch is a partial update to a recipe header.
type RecipePatch struct {
	Title       *string
	Description *string
}

// Apply merges the patch into r.
func (p RecipePatch) Apply(r *Recipe) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }

// cloneSet copies a boolean set.
func cloneSet[K comparable](m map[K]bool) map[K]bool {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
