package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/editor"
	"github.com/hammamikhairi/dagchef/internal/graph"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/storage"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}

// pasta is boil → cook, chop → sauce, cook+sauce → serve, owned by alice.
func pasta() *domain.Document {
	return &domain.Document{
		ID:         "pasta",
		Title:      "Pasta",
		Owner:      "alice",
		RootStepID: "boil",
		Steps: map[domain.StepID]domain.DocStep{
			"boil":  {ID: "boil", Title: "Boil water", Extension: &domain.DocExtension{Duration: 600}},
			"cook":  {ID: "cook", Title: "Cook pasta", Extension: &domain.DocExtension{Duration: 540}},
			"chop":  {ID: "chop", Title: "Chop tomatoes"},
			"sauce": {ID: "sauce", Title: "Make sauce"},
			"serve": {ID: "serve", Title: "Serve"},
		},
		Relations: map[string]domain.DocRelation{
			"r1": {ParentID: "boil", ChildID: "cook"},
			"r2": {ParentID: "chop", ChildID: "sauce"},
			"r3": {ParentID: "cook", ChildID: "serve"},
			"r4": {ParentID: "sauce", ChildID: "serve"},
		},
	}
}

func setupEngine(t *testing.T, login string) (*Engine, *storage.MemoryStore, context.Context) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := storage.NewMemoryStore(log)
	ctx := context.Background()
	if err := store.Create(ctx, pasta()); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	eng := New(store, log, WithLogin(login), WithEditorOptions(editor.WithIDSource(seqIDs())))
	return eng, store, ctx
}

func TestOpen(t *testing.T) {
	eng, _, ctx := setupEngine(t, "alice")

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"stored recipe", "pasta", nil},
		{"unknown recipe", "nonexistent", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := eng.Open(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.CurrentStepID != "boil" {
				t.Fatalf("expected cursor on the root, got %s", r.CurrentStepID)
			}
			if eng.Dirty() {
				t.Fatal("freshly opened recipe should not be dirty")
			}
		})
	}
}

func TestEditRequiresOwner(t *testing.T) {
	eng, _, ctx := setupEngine(t, "bob")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if eng.CanEdit() {
		t.Fatal("bob does not own the recipe")
	}

	err := eng.Edit("rename", func(m *editor.Model) error {
		return m.SetCurrent(domain.StepPatch{Title: domain.Ptr("x")})
	})
	if !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := eng.Save(ctx); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on save, got %v", err)
	}
}

func TestEditWithoutRecipe(t *testing.T) {
	eng, _, _ := setupEngine(t, "alice")
	err := eng.Edit("anything", func(*editor.Model) error { return nil })
	if !errors.Is(err, domain.ErrNoRecipe) {
		t.Fatalf("expected ErrNoRecipe, got %v", err)
	}
	if _, err := eng.PlayOpen(); !errors.Is(err, domain.ErrNoRecipe) {
		t.Fatalf("expected ErrNoRecipe, got %v", err)
	}
}

func TestConnectGate(t *testing.T) {
	eng, _, ctx := setupEngine(t, "alice")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}

	tests := []struct {
		name          string
		parent, child domain.StepID
		wantErr       error
	}{
		{"back edge", "serve", "boil", domain.ErrGraphInvariant},
		{"self loop", "cook", "cook", domain.ErrGraphInvariant},
		{"already reachable", "boil", "serve", domain.ErrGraphInvariant},
		{"existing edge", "boil", "cook", domain.ErrGraphInvariant},
		{"unknown step", "boil", "ghost", domain.ErrNotFound},
		{"across branches", "boil", "sauce", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := eng.Recipe()
			_, err := eng.Connect(tt.parent, tt.child)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if eng.Recipe() != before {
					t.Fatal("rejected connection changed the recipe")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r := eng.Recipe()
			if cyc := graph.FindCycle(r.Steps, r.Relations); cyc != nil {
				t.Fatalf("connection created a cycle: %v", cyc)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	eng, store, ctx := setupEngine(t, "alice")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}

	err := eng.Edit("append", func(m *editor.Model) error {
		if err := m.ShiftCurrent("serve"); err != nil {
			return err
		}
		_, _, err := m.AppendStep("Garnish", "Basil on top.")
		return err
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !eng.Dirty() {
		t.Fatal("expected unsaved changes")
	}

	ids, err := eng.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ids == nil || len(ids.Steps) != 1 || len(ids.Relations) != 1 {
		t.Fatalf("expected one step and one relation mapped, got %+v", ids)
	}
	if eng.Dirty() {
		t.Fatal("expected a clean recipe after save")
	}

	doc, err := store.Load(ctx, "pasta")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(doc.Steps) != 6 || len(doc.Relations) != 5 {
		t.Fatalf("expected 6 steps and 5 relations stored, got %d and %d", len(doc.Steps), len(doc.Relations))
	}
	garnish := ids.Step("t1")
	if _, ok := doc.Steps[garnish]; !ok {
		t.Fatalf("stored document lacks the appended step %s", garnish)
	}
	if _, ok := eng.Recipe().Steps[garnish]; !ok {
		t.Fatal("edit model should use the persisted id after save")
	}

	ids, err = eng.Save(ctx)
	if err != nil || ids != nil {
		t.Fatalf("second save should be a no-op, got %+v, %v", ids, err)
	}
}

func TestSaveRecipeHeader(t *testing.T) {
	eng, store, ctx := setupEngine(t, "alice")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}

	err := eng.Edit("set recipe", func(m *editor.Model) error {
		return m.SetRecipe(domain.RecipePatch{Title: domain.Ptr("Better pasta")})
	})
	if err != nil {
		t.Fatalf("set recipe: %v", err)
	}
	if !eng.Dirty() {
		t.Fatal("a title change should count as unsaved")
	}

	ids, err := eng.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ids == nil {
		t.Fatal("save skipped a header-only change")
	}
	if eng.Dirty() {
		t.Fatal("expected a clean recipe after save")
	}

	doc, err := store.Load(ctx, "pasta")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if doc.Title != "Better pasta" || len(doc.Steps) != 5 {
		t.Fatalf("expected the new title over the same steps, got %q with %d steps", doc.Title, len(doc.Steps))
	}
}

func TestReopenSeesStoreChanges(t *testing.T) {
	eng, store, ctx := setupEngine(t, "alice")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	r := eng.Recipe()
	if got := eng.View().ChildrenOfCurrent(r); len(got) != 1 {
		t.Fatalf("expected boil to lead only to cook, got %d children", len(got))
	}

	cs := &domain.ChangeSet{
		RecipeID: "pasta",
		Header:   domain.RecipeHeader{Title: "Pasta", Owner: "alice", RootStepID: "boil"},
		Relations: domain.RelationChanges{
			Create: []domain.RelationChange{{ID: "tmp", ParentID: "boil", ChildID: "sauce"}},
		},
	}
	if _, err := store.Save(ctx, cs); err != nil {
		t.Fatalf("saving behind the engine: %v", err)
	}

	r, err := eng.Open(ctx, "pasta")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := eng.View().ChildrenOfCurrent(r); len(got) != 2 {
		t.Fatalf("reopened view should show the stored edge, got %d children", len(got))
	}
}

func TestPlayOpenUsesUnsavedEdits(t *testing.T) {
	eng, _, ctx := setupEngine(t, "alice")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := eng.Connect("boil", "sauce"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	session, err := eng.PlayOpen()
	if err != nil {
		t.Fatalf("play open: %v", err)
	}
	if _, err := session.Dispatch(playmode.Start{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, st := session.Snapshot()
	if st.Steps["boil"] != domain.ExecActive || st.Steps["chop"] != domain.ExecActive {
		t.Fatalf("expected both roots active, got %v", st.Steps)
	}
	if _, err := session.Dispatch(playmode.Complete{StepID: "chop"}); err != nil {
		t.Fatalf("complete chop: %v", err)
	}
	_, st = session.Snapshot()
	if st.Steps["sauce"] != domain.ExecWaiting {
		t.Fatalf("sauce now also waits on boil, got %s", st.Steps["sauce"])
	}
}

func TestNewPlay(t *testing.T) {
	eng, _, ctx := setupEngine(t, "bob")

	session, err := eng.NewPlay(ctx, "pasta")
	if err != nil {
		t.Fatalf("new play: %v", err)
	}
	if session.Status() != domain.PlayIdle {
		t.Fatalf("expected an idle session, got %s", session.Status())
	}
	if _, err := eng.NewPlay(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShiftWithoutOwnership(t *testing.T) {
	eng, _, ctx := setupEngine(t, "bob")
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := eng.Shift("sauce"); err != nil {
		t.Fatalf("browsing should not need ownership: %v", err)
	}
	if got := eng.Recipe().CurrentStepID; got != "sauce" {
		t.Fatalf("expected cursor on sauce, got %s", got)
	}
	if err := eng.Shift("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	steps := []*domain.Step{
		{ID: "s1", Title: "Boil water"},
		{ID: "s2", Title: "Chop onions"},
		{ID: "s3", Title: "Chop garlic"},
		{ID: "s4", Title: "Chop"},
	}

	tests := []struct {
		ref     string
		want    domain.StepID
		wantErr error
	}{
		{"1", "s1", nil},
		{"4", "s4", nil},
		{"5", "", domain.ErrNotFound},
		{"0", "", domain.ErrNotFound},
		{"s3", "s3", nil},
		{"boil", "s1", nil},
		{"CHOP", "s4", nil}, // exact title beats prefix
		{"chop o", "s2", nil},
		{"cho", "", domain.ErrAmbiguous},
		{"fry", "", domain.ErrNotFound},
		{"  ", "", domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := Resolve(steps, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.want {
				t.Fatalf("Resolve(%q) = %s, want %s", tt.ref, got.ID, tt.want)
			}
		})
	}
}
