package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/editor"
	"github.com/hammamikhairi/dagchef/internal/engine"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/storage"
)

func setupEdit(t *testing.T, login string) (*editApp, *storage.MemoryStore, *recorder) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := storage.NewMemoryStore(log)
	ctx := context.Background()
	if err := store.Create(ctx, pastaDoc()); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	eng := engine.New(store, log, engine.WithLogin(login))
	if _, err := eng.Open(ctx, "pasta"); err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := &recorder{}
	return newEditApp(eng, rec, log), store, rec
}

func TestEditWelcomeReadOnly(t *testing.T) {
	app, _, rec := setupEdit(t, "bob")
	app.welcome(context.Background())
	lines := rec.take()
	requireLine(t, lines, lineWelcomeEdit("Pasta"))
	requireLine(t, lines, lineReadOnly("alice"))

	feed(t, app, "goto sauce", "rename Salsa", "quit")
	lines = rec.take()
	requireLine(t, lines, lineMovedTo("Make sauce"))
	requireLine(t, lines, "You don't own this recipe.")
	requireLine(t, lines, lineBye())
}

func TestEditShow(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	feed(t, app, "goto cook", "show")
	lines := rec.take()
	requireLine(t, lines, "Cook pasta")
	requireLine(t, lines, "Timer: 9m, then Drain it")
	requireLine(t, lines, "After:  Boil water")
	requireLine(t, lines, "Before: Serve")
	requireLine(t, lines, "Can come next:")
	requireLine(t, lines, "[1] Chop tomatoes")
	requireLine(t, lines, "[2] Make sauce")
}

func TestEditConnect(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	tests := []struct {
		name  string
		input []string
		want  string
	}{
		{"already downstream", []string{"goto chop", "connect serve"}, `Can't do that: "Serve" already comes after "Chop tomatoes".`},
		{"back edge", []string{"goto serve", "connect boil"}, `Can't do that: "Serve" already comes after "Boil water".`},
		{"self", []string{"goto cook", "connect cook"}, "Can't do that: a step cannot depend on itself."},
		{"unknown", []string{"goto cook", "connect fry"}, `No step matches "fry".`},
		{"new edge", []string{"goto chop", "connect cook"}, lineConnected("Chop tomatoes", "Cook pasta")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed(t, app, tt.input...)
			requireLine(t, rec.take(), tt.want)
		})
	}

	r := app.eng.Recipe()
	if _, ok := r.Index()[domain.RelationKey{Parent: "chop", Child: "cook"}]; !ok {
		t.Fatal("expected chop → cook to be added")
	}
}

func TestEditDisconnect(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	feed(t, app, "goto sauce", "disconnect serve")
	requireLine(t, rec.take(), lineDisconnected("Make sauce", "Serve"))

	feed(t, app, "goto cook", "disconnect boil")
	lines := rec.take()
	refused := false
	for _, l := range lines {
		refused = refused || strings.HasPrefix(l, "Can't do that: removing")
	}
	if !refused {
		t.Fatalf("removing the only way to cook pasta should be refused, got %q", lines)
	}
	if _, ok := app.eng.Recipe().Relations["r1"]; !ok {
		t.Fatal("refused disconnect changed the recipe")
	}
}

func TestEditAppendSaveQuit(t *testing.T) {
	app, store, rec := setupEdit(t, "alice")
	ctx := context.Background()

	feed(t, app, "goto serve", "append Garnish: Basil on top.", "duration 90")
	lines := rec.take()
	requireLine(t, lines, lineAppended("Garnish", "Serve"))
	requireLine(t, lines, lineUpdated("Garnish"))

	cur := app.current()
	if cur.Title != "Garnish" || cur.Instruction != "Basil on top." {
		t.Fatalf("expected the cursor on the new step, got %+v", cur)
	}
	if got := cur.Extension.DurationValue(); got != 90*time.Second {
		t.Fatalf("expected a 90s timer, got %s", got)
	}

	if !app.handle(ctx, &domain.Command{Type: domain.CommandQuit}) {
		t.Fatal("first quit with unsaved changes should be refused")
	}
	requireLine(t, rec.take(), lineUnsavedQuit())

	feed(t, app, "save")
	requireLine(t, rec.take(), lineSaved(2, 0, 0))

	doc, err := store.Load(ctx, "pasta")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(doc.Steps) != 6 || len(doc.Relations) != 5 {
		t.Fatalf("expected 6 steps and 5 relations stored, got %d and %d", len(doc.Steps), len(doc.Relations))
	}

	feed(t, app, "save")
	requireLine(t, rec.take(), lineNothingToSave())

	if app.handle(ctx, &domain.Command{Type: domain.CommandQuit}) {
		t.Fatal("quit after saving should end the session")
	}
}

func TestEditDeleteAndToggle(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	feed(t, app, "delete")
	requireLine(t, rec.take(), "Can't do that: the root step cannot be deleted.")

	feed(t, app, "goto chop", "extend")
	requireLine(t, rec.take(), lineTimerAdded("Chop tomatoes"))
	feed(t, app, "extend")
	requireLine(t, rec.take(), lineTimerRemoved("Chop tomatoes"))

	feed(t, app, "duration soon")
	requireLine(t, rec.take(), `"soon" isn't a duration. Try 90, 90s or 1m30s.`)

	feed(t, app, "goto sauce", "delete")
	lines := rec.take()
	requireLine(t, lines, lineDeleted("Make sauce"))
	requireLine(t, lines, lineMovedTo("Boil water"))
	if _, ok := app.eng.Recipe().LiveStep("sauce"); ok {
		t.Fatal("sauce should be gone")
	}

	feed(t, app, "start")
	requireLine(t, rec.take(), lineWrongMode("start", "edit"))
}

func TestEditDeleteWarnsAboutDetachedSteps(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	feed(t, app, "goto chop", "delete")
	lines := rec.take()
	requireLine(t, lines, lineDeleted("Chop tomatoes"))
	for _, l := range lines {
		if strings.Contains(l, "no longer follow") {
			t.Fatalf("deleting a step off the main line detached nothing, got %q", l)
		}
	}

	feed(t, app, "goto cook", "delete")
	lines = rec.take()
	requireLine(t, lines, lineDeleted("Cook pasta"))
	requireLine(t, lines, lineDetached([]string{"Serve"}))
}

func TestEditHelpNamesNumberSources(t *testing.T) {
	app, _, rec := setupEdit(t, "alice")

	feed(t, app, "help")
	requireLine(t, rec.take(), lineNamingSteps())

	// Numbers given to connect come from the 'Can come next' list.
	feed(t, app, "goto cook", "show", "connect 2")
	lines := rec.take()
	requireLine(t, lines, "[2] Make sauce")
	requireLine(t, lines, lineConnected("Cook pasta", "Make sauce"))
}

func TestEditSaveCountsHeaderChange(t *testing.T) {
	app, store, rec := setupEdit(t, "alice")
	ctx := context.Background()

	err := app.eng.Edit("set recipe", func(m *editor.Model) error {
		return m.SetRecipe(domain.RecipePatch{Title: domain.Ptr("Better pasta")})
	})
	if err != nil {
		t.Fatalf("set recipe: %v", err)
	}
	if !app.handle(ctx, &domain.Command{Type: domain.CommandQuit}) {
		t.Fatal("quit with an unsaved title should be refused")
	}
	requireLine(t, rec.take(), lineUnsavedQuit())

	feed(t, app, "save")
	requireLine(t, rec.take(), lineSaved(0, 1, 0))
	doc, err := store.Load(ctx, "pasta")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if doc.Title != "Better pasta" {
		t.Fatalf("expected the new title stored, got %q", doc.Title)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90", 90 * time.Second, false},
		{"0", 0, false},
		{"1m30s", 90 * time.Second, false},
		{" 2h ", 2 * time.Hour, false},
		{"-5", 0, true},
		{"-1m", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseDuration(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
