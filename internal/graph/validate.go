package graph

import (
	"fmt"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// Validate checks a snapshot independently of the edit-time gates: every
// live relation must reference live steps, the root must exist, and the
// graph must be acyclic. Cycles are found with white/gray/black DFS.
func Validate(steps Steps, rels Relations, rootID domain.StepID) error {
	for id, rel := range rels {
		if !rel.Status.Live() {
			continue
		}
		for _, end := range []domain.StepID{rel.ParentID, rel.ChildID} {
			s, ok := steps[end]
			if !ok || !s.Status.Live() {
				return fmt.Errorf("%w: relation %s → step %s", domain.ErrDanglingRelation, id, end)
			}
		}
	}

	if s, ok := steps[rootID]; !ok || !s.Status.Live() {
		return domain.StepNotFound(rootID)
	}

	if cyc := FindCycle(steps, rels); cyc != nil {
		return fmt.Errorf("%w: %v", domain.ErrGraphHasCycle, cyc)
	}
	return nil
}

// FindCycle returns one cycle as a list of step ids, or nil if the graph is
// acyclic.
func FindCycle(steps Steps, rels Relations) []domain.StepID {
	const (
		white = iota
		gray
		black
	)

	a := build(steps, rels, "")
	color := make(map[domain.StepID]int, len(a.nodes))
	var path []domain.StepID
	var found []domain.StepID

	var visit func(id domain.StepID) bool
	visit = func(id domain.StepID) bool {
		color[id] = gray
		path = append(path, id)
		for _, next := range a.children[id] {
			switch color[next] {
			case gray:
				for i, p := range path {
					if p == next {
						found = append(append([]domain.StepID{}, path[i:]...), next)
						break
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range a.nodes {
		if color[id] == white && visit(id) {
			return found
		}
	}
	return nil
}
