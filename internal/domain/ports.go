package domain

import "context"

// RecipeStore persists recipe documents. Implementations can be in-memory,
// file-based, Redis, or Mongo.
type RecipeStore interface {
	List(ctx context.Context) ([]RecipeSummary, error)
	Load(ctx context.Context, id string) (*Document, error)
	// Create stores a brand-new document, replacing any with the same id.
	Create(ctx context.Context, doc *Document) error
	// Save applies a change set and returns the temp → persisted id mapping
	// for created steps and relations.
	Save(ctx context.Context, cs *ChangeSet) (*IDMap, error)
	Delete(ctx context.Context, id string) error
}

// CommandParser converts raw user input into structured commands.
type CommandParser interface {
	Parse(ctx context.Context, input string) (*Command, error)
}

// Notifier delivers messages to the user. Implementations can write to
// stdout or ring a bell.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
