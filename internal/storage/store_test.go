package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

func sampleDoc(id string) *domain.Document {
	return &domain.Document{
		ID:         id,
		Title:      "Toast",
		Owner:      "alice",
		RootStepID: "slice",
		Steps: map[domain.StepID]domain.DocStep{
			"slice": {ID: "slice", Title: "Slice bread"},
			"toast": {ID: "toast", Title: "Toast", Extension: &domain.DocExtension{Body: "toast", Duration: 120}},
		},
		Relations: map[string]domain.DocRelation{
			"r1": {ParentID: "slice", ChildID: "toast"},
		},
	}
}

// exerciseStore runs the shared contract against any RecipeStore.
func exerciseStore(t *testing.T, store domain.RecipeStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Create(ctx, sampleDoc("toast")); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, err := store.Load(ctx, "toast")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Steps["toast"].Extension == nil || doc.Steps["toast"].Extension.Duration != 120 {
		t.Fatalf("extension lost: %+v", doc.Steps["toast"])
	}

	if _, err := store.Load(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Append a step through the edit model's change set.
	r := wire.FromDocument(doc)
	r.Steps["tmp-butter"] = &domain.Step{ID: "tmp-butter", Title: "Butter", Status: domain.EditCreated}
	r.Relations["tmp-rel"] = &domain.Relation{ID: "tmp-rel", ParentID: "toast", ChildID: "tmp-butter", Status: domain.EditCreated}
	r.Title = "Buttered toast"

	ids, err := store.Save(ctx, wire.ToChangeSet(r))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	butter := ids.Step("tmp-butter")
	if butter == "tmp-butter" {
		t.Fatal("expected a persisted id for the new step")
	}

	doc, err = store.Load(ctx, "toast")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if doc.Title != "Buttered toast" || len(doc.Steps) != 3 {
		t.Fatalf("save not applied: %q with %d steps", doc.Title, len(doc.Steps))
	}
	rel, ok := doc.Relations[string(ids.Relation("tmp-rel"))]
	if !ok || rel.ChildID != butter {
		t.Fatalf("relation not remapped: %+v", rel)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Steps != 3 {
		t.Fatalf("unexpected listing %+v", list)
	}

	if err := store.Delete(ctx, "toast"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "toast"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(logger.New(logger.LevelOff, nil)))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(logger.New(logger.LevelOff, nil))
	ctx := context.Background()
	if err := store.Create(ctx, sampleDoc("toast")); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, _ := store.Load(ctx, "toast")
	doc.Steps["toast"].Extension.Duration = 1
	delete(doc.Steps, "slice")

	again, _ := store.Load(ctx, "toast")
	if len(again.Steps) != 2 || again.Steps["toast"].Extension.Duration != 120 {
		t.Fatal("store shares state with callers")
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	store := NewMemoryStore(logger.New(logger.LevelOff, nil))
	doc := sampleDoc("bad")
	doc.Relations["r2"] = domain.DocRelation{ParentID: "toast", ChildID: "ghost"}
	if err := store.Create(context.Background(), doc); !errors.Is(err, domain.ErrDanglingRelation) {
		t.Fatalf("expected ErrDanglingRelation, got %v", err)
	}
}

func TestMemoryStoreSaveCreatesNewRecipe(t *testing.T) {
	store := NewMemoryStore(logger.New(logger.LevelOff, nil))
	ctx := context.Background()
	r := &domain.Recipe{
		ID:         "fresh",
		Title:      "Fresh",
		RootStepID: "tmp-root",
		Steps: map[domain.StepID]*domain.Step{
			"tmp-root": {ID: "tmp-root", Title: "Root step", Status: domain.EditCreated},
		},
		Relations: map[domain.RelationID]*domain.Relation{},
	}
	ids, err := store.Save(ctx, wire.ToChangeSet(r))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, err := store.Load(ctx, "fresh")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.RootStepID != ids.Step("tmp-root") {
		t.Fatalf("root not remapped: %s", doc.RootStepID)
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, store)
}

func TestFileStoreSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(context.Background(), sampleDoc("toast")); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "toast" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"../escape", ".hidden", "a/b", ""} {
		if _, err := store.Load(context.Background(), id); err == nil || !strings.Contains(err.Error(), "invalid recipe id") {
			t.Fatalf("id %q: expected invalid id error, got %v", id, err)
		}
	}
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)
	store, err := NewFileStore(dir, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := store.Create(ctx, sampleDoc("toast")); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each writer has its own lock handle, like a separate process.
			other, err := NewFileStore(dir, log)
			if err != nil {
				errs <- err
				return
			}
			doc, err := other.Load(ctx, "toast")
			if err != nil {
				errs <- err
				return
			}
			r := wire.FromDocument(doc)
			r.Steps["tmp"] = &domain.Step{ID: "tmp", Title: "Extra", Status: domain.EditCreated}
			r.Relations["tmp-r"] = &domain.Relation{ID: "tmp-r", ParentID: "slice", ChildID: "tmp", Status: domain.EditCreated}
			if _, err := other.Save(ctx, wire.ToChangeSet(r)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent save: %v", err)
	}

	doc, err := store.Load(ctx, "toast")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Steps) != 6 {
		t.Fatalf("expected 6 steps after 4 appends, got %d", len(doc.Steps))
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("DAGCHEF_TEST_REDIS")
	if url == "" {
		t.Skip("DAGCHEF_TEST_REDIS not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, url, logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	_ = store.Delete(ctx, "toast")
	exerciseStore(t, store)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("DAGCHEF_TEST_MONGO")
	if uri == "" {
		t.Skip("DAGCHEF_TEST_MONGO not set")
	}
	ctx := context.Background()
	store, err := NewMongoStore(ctx, uri, "dagchef_test", logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close(ctx)
	_ = store.Delete(ctx, "toast")
	exerciseStore(t, store)
}
