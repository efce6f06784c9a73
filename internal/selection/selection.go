// Package selection derives read-only projections from a recipe for the
// REPL and display. Results are memoized per recipe revision.
package selection

import (
	"cmp"
	"slices"
	"sync"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/graph"
)

type memoKey struct {
	id       string
	revision uint64
	current  domain.StepID
}

// View answers edit-mode queries about a recipe snapshot. It recomputes
// only when the recipe identity, revision or cursor changes.
type View struct {
	mu    sync.Mutex
	key   memoKey
	valid bool

	current          *domain.Step
	children         []*domain.Step
	parents          []*domain.Step
	possibleChildren []*domain.Step
	deletableParents []*domain.Relation
	deletableKids    []*domain.Relation
}

// NewView returns an empty view.
func NewView() *View { return &View{} }

// Reset drops the cached projections. Call it when a recipe is reloaded,
// since a reload starts the revision over.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.valid = false
}

// refresh recomputes the projections if r differs from the cached key.
func (v *View) refresh(r *domain.Recipe) {
	key := memoKey{id: r.ID, revision: r.Revision, current: r.CurrentStepID}
	if v.valid && v.key == key {
		return
	}
	v.key = key
	v.valid = true

	cur, ok := r.LiveStep(r.CurrentStepID)
	if !ok {
		v.current = nil
		v.children, v.parents, v.possibleChildren = nil, nil, nil
		v.deletableParents, v.deletableKids = nil, nil
		return
	}
	v.current = cur
	v.children = stepsByID(r, graph.Children(r.Steps, r.Relations, cur.ID))
	v.parents = stepsByID(r, graph.Parents(r.Steps, r.Relations, cur.ID))

	v.possibleChildren = nil
	existing := make(map[domain.StepID]bool, len(v.children))
	for _, c := range v.children {
		existing[c.ID] = true
	}
	reach := graph.ReachableFrom(r.Steps, r.Relations, cur.ID)
	for _, s := range r.Steps {
		if !s.Status.Live() || reach[s.ID] || existing[s.ID] {
			continue
		}
		if graph.HasCycle(r.Steps, r.Relations, cur.ID, s.ID) {
			continue
		}
		v.possibleChildren = append(v.possibleChildren, s)
	}
	sortSteps(v.possibleChildren)

	v.deletableParents, v.deletableKids = nil, nil
	for _, id := range graph.DeletableConnections(r.Steps, r.Relations, cur.ID, r.RootStepID) {
		rel := r.Relations[id]
		if rel.ChildID == cur.ID {
			v.deletableParents = append(v.deletableParents, rel)
		} else {
			v.deletableKids = append(v.deletableKids, rel)
		}
	}
}

// Current returns the step under the cursor, or nil.
func (v *View) Current(r *domain.Recipe) *domain.Step {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.current
}

// ChildrenOfCurrent returns the children of the current step.
func (v *View) ChildrenOfCurrent(r *domain.Recipe) []*domain.Step {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.children
}

// ParentsOfCurrent returns the parents of the current step.
func (v *View) ParentsOfCurrent(r *domain.Recipe) []*domain.Step {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.parents
}

// PossibleChildren returns the steps that may become children of the
// current step without creating a cycle or a redundant edge.
func (v *View) PossibleChildren(r *domain.Recipe) []*domain.Step {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.possibleChildren
}

// DeletableParentConnections returns the relations into the current step
// that can be removed.
func (v *View) DeletableParentConnections(r *domain.Recipe) []*domain.Relation {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.deletableParents
}

// DeletableChildConnections returns the relations out of the current step
// that can be removed.
func (v *View) DeletableChildConnections(r *domain.Recipe) []*domain.Relation {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh(r)
	return v.deletableKids
}

// CanConnect reports whether parent → child may be added.
func CanConnect(r *domain.Recipe, parentID, childID domain.StepID) bool {
	if _, ok := r.LiveStep(parentID); !ok {
		return false
	}
	if _, ok := r.LiveStep(childID); !ok {
		return false
	}
	if _, dup := r.Index()[domain.RelationKey{Parent: parentID, Child: childID}]; dup {
		return false
	}
	return !graph.HasCycle(r.Steps, r.Relations, parentID, childID)
}

// IsOwner reports whether login owns r.
func IsOwner(r *domain.Recipe, login string) bool {
	return r != nil && r.Owner == login
}

// LiveSteps returns every step that is not deleted, sorted by title then id.
// The REPL numbers steps in this order.
func LiveSteps(r *domain.Recipe) []*domain.Step {
	out := make([]*domain.Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Status.Live() {
			out = append(out, s)
		}
	}
	sortSteps(out)
	return out
}

// ActiveSteps returns the active steps of a run, sorted by title then id.
func ActiveSteps(r *domain.Recipe, st domain.PlayState) []*domain.Step {
	return byExec(r, st, func(s domain.ExecStatus) bool { return s == domain.ExecActive })
}

// CompletedSteps returns the completed or skipped steps of a run.
func CompletedSteps(r *domain.Recipe, st domain.PlayState) []*domain.Step {
	return byExec(r, st, domain.ExecStatus.Done)
}

func byExec(r *domain.Recipe, st domain.PlayState, keep func(domain.ExecStatus) bool) []*domain.Step {
	var out []*domain.Step
	for id, es := range st.Steps {
		if !keep(es) {
			continue
		}
		if s, ok := r.Steps[id]; ok {
			out = append(out, s)
		}
	}
	sortSteps(out)
	return out
}

func stepsByID(r *domain.Recipe, ids []domain.StepID) []*domain.Step {
	out := make([]*domain.Step, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Steps[id])
	}
	sortSteps(out)
	return out
}

func sortSteps(steps []*domain.Step) {
	slices.SortFunc(steps, func(a, b *domain.Step) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
}
