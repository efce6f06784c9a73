package graph

import (
	"slices"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// CanDeleteConnection decides whether removing relationID keeps the graph
// connected. Checks run in order:
//
//  1. the root keeps at least one incoming edge if it has any;
//  2. a non-root parent is not left isolated;
//  3. a child with another parent is always safe;
//  4. a child without children would be isolated;
//  5. every descendant of the child stays reachable from the root.
func CanDeleteConnection(steps Steps, rels Relations, relationID domain.RelationID, rootID domain.StepID) bool {
	rel, ok := rels[relationID]
	if !ok || !rel.Status.Live() {
		return false
	}

	a := build(steps, rels, "")
	parent, child := rel.ParentID, rel.ChildID
	if !a.has(parent) || !a.has(child) || !a.has(rootID) {
		return false
	}

	if child == rootID && len(a.inRels[child]) == 1 {
		return false
	}

	if parent != rootID && len(a.inRels[parent]) == 0 && len(a.outRels[parent]) == 1 {
		return false
	}

	if len(a.inRels[child]) > 1 {
		return true
	}

	if len(a.outRels[child]) == 0 {
		return false
	}

	after := build(steps, rels, relationID)
	reachable := after.reach(rootID)
	for id := range after.reach(child) {
		if !reachable[id] {
			return false
		}
	}
	return true
}

// DeletableConnections returns the relations incident to stepID, as parent
// or child, that CanDeleteConnection accepts. The result is sorted.
func DeletableConnections(steps Steps, rels Relations, stepID, rootID domain.StepID) []domain.RelationID {
	var out []domain.RelationID
	for id, rel := range rels {
		if rel.ParentID != stepID && rel.ChildID != stepID {
			continue
		}
		if CanDeleteConnection(steps, rels, id, rootID) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
