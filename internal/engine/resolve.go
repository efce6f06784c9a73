package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/graph"
)

// Resolve picks one of candidates by 1-based number, exact id, exact title
// or unique case-insensitive title prefix, in that order.
func Resolve(candidates []*domain.Step, ref string) (*domain.Step, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.StepNotFound("")
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1], nil
		}
		return nil, domain.StepNotFound(domain.StepID(ref))
	}

	for _, s := range candidates {
		if string(s.ID) == ref {
			return s, nil
		}
	}

	lower := strings.ToLower(ref)
	var prefixed []*domain.Step
	for _, s := range candidates {
		title := strings.ToLower(s.Title)
		if title == lower {
			return s, nil
		}
		if strings.HasPrefix(title, lower) {
			prefixed = append(prefixed, s)
		}
	}
	switch len(prefixed) {
	case 0:
		return nil, domain.StepNotFound(domain.StepID(ref))
	case 1:
		return prefixed[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d steps: %w", ref, len(prefixed), domain.ErrAmbiguous)
	}
}

// ConnectionBlocker explains why parent → child may not be added, or
// returns "" when the edge is fine.
func ConnectionBlocker(r *domain.Recipe, parentID, childID domain.StepID) string {
	switch {
	case parentID == childID:
		return "a step cannot depend on itself"
	case graph.HasCycle(r.Steps, r.Relations, parentID, childID):
		return fmt.Sprintf("%s already comes after %s", title(r, parentID), title(r, childID))
	case graph.IsDescendant(r.Steps, r.Relations, parentID, childID):
		return fmt.Sprintf("%s already comes after %s", title(r, childID), title(r, parentID))
	}
	return ""
}

func title(r *domain.Recipe, id domain.StepID) string {
	if s, ok := r.Steps[id]; ok {
		return strconv.Quote(s.Title)
	}
	return string(id)
}
