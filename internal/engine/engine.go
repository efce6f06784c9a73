// Package engine ties the recipe store to the edit model and to play
// sessions. The REPLs talk to an Engine; the engine talks to the store.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/editor"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/selection"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

// Option configures the engine.
type Option func(*Engine)

// WithLogin sets the user that edits are attributed to.
func WithLogin(login string) Option {
	return func(e *Engine) {
		e.login = login
	}
}

// WithPlayOptions configures every play session the engine creates.
func WithPlayOptions(opts ...playmode.Option) Option {
	return func(e *Engine) {
		e.playOpts = append(e.playOpts, opts...)
	}
}

// WithEditorOptions configures the edit model.
func WithEditorOptions(opts ...editor.Option) Option {
	return func(e *Engine) {
		e.editorOpts = append(e.editorOpts, opts...)
	}
}

// Engine manages the recipe being edited and the runs being played. It
// depends only on interfaces and is fully testable with the memory store.
// Methods are safe for concurrent use so a status bar can poll the recipe
// while the REPL edits it.
type Engine struct {
	mu         sync.RWMutex
	store      domain.RecipeStore
	log        *logger.Logger
	login      string
	editor     *editor.Model
	view       *selection.View
	playOpts   []playmode.Option
	editorOpts []editor.Option
}

// New creates an engine over store.
func New(store domain.RecipeStore, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   log,
		view:  selection.NewView(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.editor = editor.New(log, e.editorOpts...)
	return e
}

// Login returns the current user.
func (e *Engine) Login() string { return e.login }

// ListRecipes returns all stored recipes.
func (e *Engine) ListRecipes(ctx context.Context) ([]domain.RecipeSummary, error) {
	return e.store.List(ctx)
}

// GetRecipe loads a recipe without touching the edit model.
func (e *Engine) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	doc, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	return wire.FromDocument(doc), nil
}

// Open loads a recipe into the edit model, discarding unsaved changes.
func (e *Engine) Open(ctx context.Context, id string) (*domain.Recipe, error) {
	r, err := e.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editor.Load(r)
	e.view.Reset()
	e.log.Info("opened recipe %s %q (owner %q)", r.ID, r.Title, r.Owner)
	return e.editor.Recipe(), nil
}

// Recipe returns the snapshot being edited, or nil.
func (e *Engine) Recipe() *domain.Recipe {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.editor.Recipe()
}

// View returns the memoized projections of the edited recipe.
func (e *Engine) View() *selection.View { return e.view }

// CanEdit reports whether the current user owns the open recipe.
func (e *Engine) CanEdit() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.editor.IsOwner(e.login)
}

// Dirty reports whether the open recipe has unsaved changes.
func (e *Engine) Dirty() bool {
	cs, err := e.Changes()
	return err == nil && !cs.Empty()
}

// Changes returns the pending save diff.
func (e *Engine) Changes() (*domain.ChangeSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.editor.ChangeSet()
}

// Shift moves the edit cursor. Browsing needs no ownership.
func (e *Engine) Shift(id domain.StepID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editor.ShiftCurrent(id)
}

// Edit runs fn against the edit model once ownership is checked.
func (e *Engine) Edit(op string, fn func(m *editor.Model) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edit(op, fn)
}

func (e *Engine) edit(op string, fn func(m *editor.Model) error) error {
	r := e.editor.Recipe()
	if r == nil {
		return domain.ErrNoRecipe
	}
	if !e.editor.IsOwner(e.login) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotOwner)
	}
	if err := fn(e.editor); err != nil {
		return err
	}
	e.log.Debug("%s applied (revision %d)", op, e.editor.Recipe().Revision)
	return nil
}

// Connect adds parent → child after checking that the edge is legal.
// The edit model itself does not re-check acyclicity.
func (e *Engine) Connect(parentID, childID domain.StepID) (domain.RelationID, error) {
	var relID domain.RelationID
	err := e.Edit("connect", func(m *editor.Model) error {
		if reason := ConnectionBlocker(m.Recipe(), parentID, childID); reason != "" {
			return &domain.GraphInvariantError{Op: "create connection", Reason: reason}
		}
		id, err := m.CreateConn(parentID, childID)
		relID = id
		return err
	})
	return relID, err
}

// Save sends the change set to the store and commits the store's ids.
// Returns a nil map when there was nothing to save.
func (e *Engine) Save(ctx context.Context) (*domain.IDMap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.editor.Recipe()
	if r == nil {
		return nil, domain.ErrNoRecipe
	}
	if !e.editor.IsOwner(e.login) {
		return nil, fmt.Errorf("save: %w", domain.ErrNotOwner)
	}

	cs, err := e.editor.ChangeSet()
	if err != nil {
		return nil, err
	}
	if cs.Empty() {
		if _, err := e.store.Load(ctx, r.ID); err == nil {
			e.log.Debug("nothing to save for %s", r.ID)
			return nil, nil
		}
	}

	ids, err := e.store.Save(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("saving recipe: %w", err)
	}
	if err := e.editor.Commit(ids); err != nil {
		return nil, fmt.Errorf("committing save: %w", err)
	}
	e.log.Info("saved recipe %s (+%d/~%d/-%d steps, +%d/-%d relations)", r.ID,
		len(cs.Steps.Create), len(cs.Steps.Modified), len(cs.Steps.Delete),
		len(cs.Relations.Create), len(cs.Relations.Delete))
	return ids, nil
}

// NewPlay creates an idle play session over a stored recipe.
func (e *Engine) NewPlay(ctx context.Context, id string) (*playmode.Session, error) {
	r, err := e.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.play(r), nil
}

// PlayOpen creates an idle play session over the edited recipe, unsaved
// changes included. The session keeps the snapshot it started with.
func (e *Engine) PlayOpen() (*playmode.Session, error) {
	r := e.Recipe()
	if r == nil {
		return nil, domain.ErrNoRecipe
	}
	return e.play(r), nil
}

func (e *Engine) play(r *domain.Recipe) *playmode.Session {
	runID := generateRunID()
	e.log.Info("new play run %s for recipe %s %q", runID, r.ID, r.Title)
	return playmode.NewSession(r, e.log.With("run "+runID), e.playOpts...)
}
