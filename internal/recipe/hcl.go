// Package recipe loads recipe documents from HCL and ships a few built-in
// recipes.
//
// A file holds one or more recipe blocks:
//
//	recipe "tea" {
//	  title = "Cup of tea"
//	  root  = "kettle"
//
//	  step "kettle" {
//	    title = "Boil the kettle"
//	    timer {
//	      duration = 2 * min
//	    }
//	  }
//
//	  step "steep" {
//	    title = "Steep"
//	    after = ["kettle"]
//	  }
//	}
//
// Durations are whole seconds; the variables sec, min and hour are in scope.
// A recipe without root uses its only parentless step.
package recipe

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/graph"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

type hclFile struct {
	Recipes []*hclRecipe `hcl:"recipe,block"`
}

type hclRecipe struct {
	ID          string     `hcl:"id,label"`
	Title       string     `hcl:"title"`
	Description string     `hcl:"description,optional"`
	Owner       string     `hcl:"owner,optional"`
	Root        string     `hcl:"root,optional"`
	Steps       []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	ID          string    `hcl:"id,label"`
	Title       string    `hcl:"title"`
	Instruction string    `hcl:"instruction,optional"`
	After       []string  `hcl:"after,optional"`
	Timer       *hclTimer `hcl:"timer,block"`
}

type hclTimer struct {
	Body     string `hcl:"body,optional"`
	Duration int    `hcl:"duration"`
}

// evalContext exposes duration units to expressions.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"sec":  cty.NumberIntVal(1),
			"min":  cty.NumberIntVal(60),
			"hour": cty.NumberIntVal(3600),
		},
	}
}

// relationNamespace seeds deterministic relation ids for imported recipes.
var relationNamespace = uuid.MustParse("6f1c1d3e-9a56-4c1b-a7a4-2f3d76b0c9e1")

// ParseHCL decodes every recipe in src. filename is used in diagnostics.
func ParseHCL(src []byte, filename string) ([]*domain.Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	docs := make([]*domain.Document, 0, len(parsed.Recipes))
	for _, r := range parsed.Recipes {
		doc, err := toDocument(r)
		if err != nil {
			return nil, fmt.Errorf("%s: recipe %q: %w", filename, r.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads and decodes an HCL recipe file.
func LoadFile(path string) ([]*domain.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseHCL(src, path)
}

func toDocument(r *hclRecipe) (*domain.Document, error) {
	doc := &domain.Document{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Owner:       r.Owner,
		RootStepID:  domain.StepID(r.Root),
		Steps:       make(map[domain.StepID]domain.DocStep, len(r.Steps)),
		Relations:   make(map[string]domain.DocRelation),
	}

	var parentless []domain.StepID
	for _, s := range r.Steps {
		id := domain.StepID(s.ID)
		if _, dup := doc.Steps[id]; dup {
			return nil, fmt.Errorf("step %q: %w", s.ID, domain.ErrAlreadyExists)
		}
		ds := domain.DocStep{ID: id, Title: s.Title, Instruction: s.Instruction}
		if s.Timer != nil {
			if s.Timer.Duration < 0 {
				return nil, fmt.Errorf("step %q: negative timer duration", s.ID)
			}
			ds.Extension = &domain.DocExtension{Body: s.Timer.Body, Duration: s.Timer.Duration}
		}
		doc.Steps[id] = ds
		if len(s.After) == 0 {
			parentless = append(parentless, id)
		}
	}

	for _, s := range r.Steps {
		for _, parent := range s.After {
			key := r.ID + "\x00" + parent + "\x00" + s.ID
			relID := uuid.NewSHA1(relationNamespace, []byte(key)).String()
			doc.Relations[relID] = domain.DocRelation{ParentID: domain.StepID(parent), ChildID: domain.StepID(s.ID)}
		}
	}

	if doc.RootStepID == "" {
		if len(parentless) != 1 {
			return nil, fmt.Errorf("%d steps have no parent; set root explicitly", len(parentless))
		}
		doc.RootStepID = parentless[0]
	}

	if err := wire.Check(doc); err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks that doc is a DAG whose steps are all reachable from the
// root.
func Validate(doc *domain.Document) error {
	r := wire.FromDocument(doc)
	if err := graph.Validate(r.Steps, r.Relations, r.RootStepID); err != nil {
		return err
	}
	reach := graph.ReachableFrom(r.Steps, r.Relations, r.RootStepID)
	for id := range r.Steps {
		if !reach[id] {
			return &domain.GraphInvariantError{
				Op:     "validate",
				Reason: fmt.Sprintf("step %s is not reachable from root %s", id, r.RootStepID),
			}
		}
	}
	return nil
}

// Import parses path and stores every recipe it holds.
func Import(ctx context.Context, store domain.RecipeStore, path string) ([]*domain.Document, error) {
	docs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := store.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("storing %s: %w", doc.ID, err)
		}
	}
	return docs, nil
}
