// Package editor implements the change-tracked recipe edit model. Every
// operation works on a clone of the current recipe and swaps it in only when
// the whole transform succeeds, so a rejected edit leaves the recipe exactly
// as it was.
package editor

import (
	"fmt"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/graph"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

// Default texts for new entities.
const (
	DefaultInstruction     = "New instruction"
	DefaultRecipeTitle     = "New recipe"
	DefaultRecipeDesc      = "Description of your recipe"
	DefaultRootTitle       = "Root step"
	DefaultRootInstruction = "Write your step instructions!"
)

// Option configures the model.
type Option func(*Model)

// WithIDSource replaces the temporary id generator. Tests use it for
// deterministic ids.
func WithIDSource(fn func() string) Option {
	return func(m *Model) {
		m.newID = fn
	}
}

// Model owns the recipe being edited. A nil recipe means nothing is loaded.
type Model struct {
	recipe *domain.Recipe
	newID  func() string
	log    *logger.Logger
}

// New creates an empty model.
func New(log *logger.Logger, opts ...Option) *Model {
	m := &Model{
		newID: generateID,
		log:   log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Recipe returns the current recipe snapshot, or nil. The snapshot is never
// mutated by later edits and must be treated as read-only.
func (m *Model) Recipe() *domain.Recipe { return m.recipe }

// Load installs a recipe, typically one built by wire.FromDocument.
func (m *Model) Load(r *domain.Recipe) {
	m.recipe = r
	if r != nil {
		m.log.Debug("loaded recipe %s (%d steps, %d relations)", r.ID, len(r.Steps), len(r.Relations))
	}
}

// Close drops the recipe.
func (m *Model) Close() { m.recipe = nil }

// CreateEmpty starts a new recipe owned by owner with a single root step.
func (m *Model) CreateEmpty(owner string) *domain.Recipe {
	rootID := domain.StepID(m.newID())
	m.recipe = &domain.Recipe{
		ID:            m.newID(),
		Title:         DefaultRecipeTitle,
		Description:   DefaultRecipeDesc,
		Owner:         owner,
		RootStepID:    rootID,
		CurrentStepID: rootID,
		Steps: map[domain.StepID]*domain.Step{
			rootID: {
				ID:          rootID,
				Title:       DefaultRootTitle,
				Instruction: DefaultRootInstruction,
				Status:      domain.EditCreated,
			},
		},
		Relations: make(map[domain.RelationID]*domain.Relation),
		Status:    domain.EditCreated,
	}
	m.log.Info("created empty recipe %s for %q", m.recipe.ID, owner)
	return m.recipe
}

// IsOwner reports whether login owns the loaded recipe.
func (m *Model) IsOwner(login string) bool {
	return m.recipe != nil && m.recipe.Owner == login
}

// mutate applies fn to a clone and swaps it in on success.
func (m *Model) mutate(op string, fn func(r *domain.Recipe) error) error {
	if m.recipe == nil {
		return domain.ErrNoRecipe
	}
	next := m.recipe.Clone()
	if err := fn(next); err != nil {
		m.log.Debug("%s rejected: %v", op, err)
		return err
	}
	next.Revision++
	m.recipe = next
	return nil
}

// CreateStep adds a disconnected step.
func (m *Model) CreateStep(title string) (domain.StepID, error) {
	id := domain.StepID(m.newID())
	err := m.mutate("create step", func(r *domain.Recipe) error {
		r.Steps[id] = &domain.Step{
			ID:          id,
			Title:       title,
			Instruction: DefaultInstruction,
			Status:      domain.EditCreated,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	m.log.Debug("created step %s %q", id, title)
	return id, nil
}

// DeleteStep removes a step and every relation touching it. Pending
// entities are purged; persisted ones are tombstoned. The root cannot be
// deleted.
func (m *Model) DeleteStep(id domain.StepID) error {
	return m.mutate("delete step", func(r *domain.Recipe) error {
		s, ok := r.LiveStep(id)
		if !ok {
			return domain.StepNotFound(id)
		}
		if id == r.RootStepID {
			return &domain.GraphInvariantError{Op: "delete step", Reason: "the root step cannot be deleted"}
		}

		for relID, rel := range r.Relations {
			if rel.ParentID == id || rel.ChildID == id {
				removeRelation(r, relID)
			}
		}
		switch domain.DeletionFor(s.Status) {
		case domain.DeletionPurge:
			delete(r.Steps, id)
		case domain.DeletionTombstone:
			s.Status = domain.EditDeleted
		case domain.DeletionNone:
		}

		if r.CurrentStepID == id {
			r.CurrentStepID = r.RootStepID
		}
		return nil
	})
}

// UpdateStep merges patch into a step.
func (m *Model) UpdateStep(id domain.StepID, patch domain.StepPatch) error {
	return m.mutate("update step", func(r *domain.Recipe) error {
		s, ok := r.LiveStep(id)
		if !ok {
			return domain.StepNotFound(id)
		}
		patch.Apply(s)
		s.Status = s.Status.Touch()
		return nil
	})
}

// AppendStep creates a step and a relation from the current step to it.
func (m *Model) AppendStep(title, instruction string) (domain.StepID, domain.RelationID, error) {
	stepID := domain.StepID(m.newID())
	relID := domain.RelationID(m.newID())
	err := m.mutate("append step", func(r *domain.Recipe) error {
		if _, ok := r.LiveStep(r.CurrentStepID); !ok {
			return domain.StepNotFound(r.CurrentStepID)
		}
		r.Steps[stepID] = &domain.Step{
			ID:          stepID,
			Title:       title,
			Instruction: instruction,
			Status:      domain.EditCreated,
		}
		r.Relations[relID] = &domain.Relation{
			ID:       relID,
			ParentID: r.CurrentStepID,
			ChildID:  stepID,
			Status:   domain.EditCreated,
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	m.log.Debug("appended step %s %q", stepID, title)
	return stepID, relID, nil
}

// CreateConn adds the relation parent → child. Acyclicity is the caller's
// job: gate with graph.HasCycle or selection.View.CanConnect first.
func (m *Model) CreateConn(parentID, childID domain.StepID) (domain.RelationID, error) {
	relID := domain.RelationID(m.newID())
	err := m.mutate("create connection", func(r *domain.Recipe) error {
		for _, id := range []domain.StepID{parentID, childID} {
			if _, ok := r.LiveStep(id); !ok {
				return domain.StepNotFound(id)
			}
		}
		key := domain.RelationKey{Parent: parentID, Child: childID}
		if existing, ok := r.Index()[key]; ok {
			return &domain.GraphInvariantError{
				Op:     "create connection",
				Reason: fmt.Sprintf("relation %s already connects %s → %s", existing, parentID, childID),
			}
		}
		r.Relations[relID] = &domain.Relation{
			ID:       relID,
			ParentID: parentID,
			ChildID:  childID,
			Status:   domain.EditCreated,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return relID, nil
}

// DeleteConn removes a relation if graph.CanDeleteConnection allows it.
func (m *Model) DeleteConn(id domain.RelationID) error {
	return m.mutate("delete connection", func(r *domain.Recipe) error {
		rel, ok := r.Relations[id]
		if !ok || !rel.Status.Live() {
			return domain.RelationNotFound(id)
		}
		if !graph.CanDeleteConnection(r.Steps, r.Relations, id, r.RootStepID) {
			return &domain.GraphInvariantError{
				Op:     "delete connection",
				Reason: fmt.Sprintf("removing %s → %s would disconnect the recipe", rel.ParentID, rel.ChildID),
			}
		}
		removeRelation(r, id)
		return nil
	})
}

// ShiftCurrent moves the edit cursor.
func (m *Model) ShiftCurrent(id domain.StepID) error {
	return m.mutate("shift current", func(r *domain.Recipe) error {
		if _, ok := r.LiveStep(id); !ok {
			return domain.StepNotFound(id)
		}
		r.CurrentStepID = id
		return nil
	})
}

// SetCurrent merges patch into the current step.
func (m *Model) SetCurrent(patch domain.StepPatch) error {
	if m.recipe == nil {
		return domain.ErrNoRecipe
	}
	return m.UpdateStep(m.recipe.CurrentStepID, patch)
}

// SetRecipe merges patch into the recipe header and marks it modified.
func (m *Model) SetRecipe(patch domain.RecipePatch) error {
	return m.mutate("set recipe", func(r *domain.Recipe) error {
		patch.Apply(r)
		r.Status = r.Status.Touch()
		return nil
	})
}

// ToggleExtension adds an empty timer extension to the current step, or
// removes the one it has.
func (m *Model) ToggleExtension() error {
	return m.mutate("toggle extension", func(r *domain.Recipe) error {
		s, ok := r.LiveStep(r.CurrentStepID)
		if !ok {
			return domain.StepNotFound(r.CurrentStepID)
		}
		if s.Extension == nil {
			s.Extension = &domain.Extension{}
		} else {
			s.Extension = nil
		}
		s.Status = s.Status.Touch()
		return nil
	})
}

// ChangeSet returns the save diff for the current recipe.
func (m *Model) ChangeSet() (*domain.ChangeSet, error) {
	if m.recipe == nil {
		return nil, domain.ErrNoRecipe
	}
	return wire.ToChangeSet(m.recipe), nil
}

// Commit records a successful save: temporary ids are replaced by the ones
// the store assigned, tombstones are purged and everything is untouched.
func (m *Model) Commit(ids *domain.IDMap) error {
	return m.mutate("commit", func(r *domain.Recipe) error {
		steps := make(map[domain.StepID]*domain.Step, len(r.Steps))
		for id, s := range r.Steps {
			if !s.Status.Live() {
				continue
			}
			s.ID = ids.Step(id)
			s.Status = domain.EditUntouched
			steps[s.ID] = s
		}
		rels := make(map[domain.RelationID]*domain.Relation, len(r.Relations))
		for id, rel := range r.Relations {
			if !rel.Status.Live() {
				continue
			}
			rel.ID = ids.Relation(id)
			rel.ParentID = ids.Step(rel.ParentID)
			rel.ChildID = ids.Step(rel.ChildID)
			rel.Status = domain.EditUntouched
			rels[rel.ID] = rel
		}
		r.Steps = steps
		r.Relations = rels
		r.Status = domain.EditUntouched
		r.RootStepID = ids.Step(r.RootStepID)
		r.CurrentStepID = ids.Step(r.CurrentStepID)
		return nil
	})
}

// removeRelation purges or tombstones a relation by its edit status.
func removeRelation(r *domain.Recipe, id domain.RelationID) {
	rel := r.Relations[id]
	switch domain.DeletionFor(rel.Status) {
	case domain.DeletionPurge:
		delete(r.Relations, id)
	case domain.DeletionTombstone:
		rel.Status = domain.EditDeleted
	case domain.DeletionNone:
	}
}
