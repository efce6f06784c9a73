package recipe

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

//go:embed builtin/*.hcl
var builtinFS embed.FS

// Builtins decodes the recipes shipped with the binary.
func Builtins() ([]*domain.Document, error) {
	names, err := fs.Glob(builtinFS, "builtin/*.hcl")
	if err != nil {
		return nil, err
	}
	var docs []*domain.Document
	for _, name := range names {
		src, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		parsed, err := ParseHCL(src, path.Base(name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

// Seed stores the built-in recipes that are not in store yet.
func Seed(ctx context.Context, store domain.RecipeStore, log *logger.Logger) error {
	docs, err := Builtins()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := store.Load(ctx, doc.ID); err == nil {
			continue
		}
		if err := store.Create(ctx, doc); err != nil {
			return fmt.Errorf("seeding %s: %w", doc.ID, err)
		}
		log.Debug("seeded built-in recipe %s (%d steps)", doc.ID, len(doc.Steps))
	}
	return nil
}
