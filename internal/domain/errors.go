package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrNoRecipe          = errors.New("no recipe loaded")
	ErrGraphInvariant    = errors.New("graph invariant violated")
	ErrInvalidTransition = errors.New("invalid play-mode transition")
	ErrNotOwner          = errors.New("recipe is owned by someone else")
	ErrAlreadyExists     = errors.New("already exists")
	ErrGraphHasCycle     = errors.New("graph contains a cycle")
	ErrDanglingRelation  = errors.New("relation references an unknown step")
	ErrAmbiguous         = errors.New("ambiguous reference")
)

// NotFoundError reports a stale or unknown id. It wraps ErrNotFound.
type NotFoundError struct {
	Kind string // "step", "relation", "recipe"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StepNotFound builds a NotFoundError for a step id.
func StepNotFound(id StepID) error {
	return &NotFoundError{Kind: "step", ID: string(id)}
}

// RelationNotFound builds a NotFoundError for a relation id.
func RelationNotFound(id RelationID) error {
	return &NotFoundError{Kind: "relation", ID: string(id)}
}

// GraphInvariantError reports an edit that would break the DAG (cycle,
// orphaned step, deleted root). It wraps ErrGraphInvariant.
type GraphInvariantError struct {
	Op     string
	Reason string
}

func (e *GraphInvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *GraphInvariantError) Unwrap() error { return ErrGraphInvariant }
