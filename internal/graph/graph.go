// Package graph analyses recipe step graphs: cycle detection, reachability,
// and deletion safety. Every function is pure and rebuilds its adjacency from
// the given snapshot, so results are never stale after an edit.
//
// Deleted steps, deleted relations and relations whose endpoints are missing
// are ignored.
package graph

import (
	"slices"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// Steps is a step snapshot keyed by id.
type Steps = map[domain.StepID]*domain.Step

// Relations is a relation snapshot keyed by id.
type Relations = map[domain.RelationID]*domain.Relation

// adjacency holds live edges in both directions, by step and by relation.
type adjacency struct {
	children map[domain.StepID][]domain.StepID
	parents  map[domain.StepID][]domain.StepID
	outRels  map[domain.StepID][]domain.RelationID
	inRels   map[domain.StepID][]domain.RelationID
	nodes    []domain.StepID
}

func (a *adjacency) has(id domain.StepID) bool {
	_, ok := a.children[id]
	return ok
}

// build indexes live edges. A relation whose id equals skip is left out,
// which is how a removal is simulated.
func build(steps Steps, rels Relations, skip domain.RelationID) *adjacency {
	a := &adjacency{
		children: make(map[domain.StepID][]domain.StepID, len(steps)),
		parents:  make(map[domain.StepID][]domain.StepID, len(steps)),
		outRels:  make(map[domain.StepID][]domain.RelationID),
		inRels:   make(map[domain.StepID][]domain.RelationID),
	}
	for id, s := range steps {
		if s.Status.Live() {
			a.children[id] = nil
			a.nodes = append(a.nodes, id)
		}
	}
	slices.Sort(a.nodes)

	ids := make([]domain.RelationID, 0, len(rels))
	for id := range rels {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		rel := rels[id]
		if id == skip || !rel.Status.Live() || !a.has(rel.ParentID) || !a.has(rel.ChildID) {
			continue
		}
		a.children[rel.ParentID] = append(a.children[rel.ParentID], rel.ChildID)
		a.parents[rel.ChildID] = append(a.parents[rel.ChildID], rel.ParentID)
		a.outRels[rel.ParentID] = append(a.outRels[rel.ParentID], id)
		a.inRels[rel.ChildID] = append(a.inRels[rel.ChildID], id)
	}
	return a
}

// reach returns every step reachable from start by following parent →
// child edges, start included. The visited set guards against cycles that
// already exist in the snapshot.
func (a *adjacency) reach(start domain.StepID) map[domain.StepID]bool {
	visited := make(map[domain.StepID]bool)
	if !a.has(start) {
		return visited
	}
	stack := []domain.StepID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, next := range a.children[cur] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited
}

// HasCycle reports whether adding the edge parentID → childID would create
// a cycle, i.e. whether parentID is already reachable from childID.
func HasCycle(steps Steps, rels Relations, parentID, childID domain.StepID) bool {
	if parentID == childID {
		return true
	}
	return build(steps, rels, "").reach(childID)[parentID]
}

// IsDescendant reports whether candidateID is reachable from ancestorID.
// A step is its own descendant.
func IsDescendant(steps Steps, rels Relations, ancestorID, candidateID domain.StepID) bool {
	return build(steps, rels, "").reach(ancestorID)[candidateID]
}

// Descendants returns every step reachable from stepID, stepID included.
func Descendants(steps Steps, rels Relations, stepID domain.StepID) map[domain.StepID]*domain.Step {
	out := make(map[domain.StepID]*domain.Step)
	for id := range build(steps, rels, "").reach(stepID) {
		out[id] = steps[id]
	}
	return out
}

// ReachableFrom returns the set of step ids reachable from root.
func ReachableFrom(steps Steps, rels Relations, root domain.StepID) map[domain.StepID]bool {
	return build(steps, rels, "").reach(root)
}

// Roots returns the live steps with no incoming live relation, sorted.
func Roots(steps Steps, rels Relations) []domain.StepID {
	a := build(steps, rels, "")
	var out []domain.StepID
	for _, id := range a.nodes {
		if len(a.parents[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Parents returns the parents of id over live relations, sorted.
func Parents(steps Steps, rels Relations, id domain.StepID) []domain.StepID {
	out := slices.Clone(build(steps, rels, "").parents[id])
	slices.Sort(out)
	return slices.Compact(out)
}

// Children returns the children of id over live relations, sorted.
func Children(steps Steps, rels Relations, id domain.StepID) []domain.StepID {
	out := slices.Clone(build(steps, rels, "").children[id])
	slices.Sort(out)
	return slices.Compact(out)
}

// Isolated returns the live steps with neither parents nor children.
func Isolated(steps Steps, rels Relations) []domain.StepID {
	a := build(steps, rels, "")
	var out []domain.StepID
	for _, id := range a.nodes {
		if len(a.parents[id]) == 0 && len(a.children[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}
