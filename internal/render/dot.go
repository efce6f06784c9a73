// Package render draws recipe graphs as Graphviz DOT and renders them to
// SVG or PNG.
package render

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/playmode"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds instructions and timer lengths to node labels.
	Detailed bool
	// Play colours nodes by execution status when set.
	Play *domain.PlayState
}

var execFill = map[domain.ExecStatus]string{
	domain.ExecWaiting:   "white",
	domain.ExecActive:    "gold",
	domain.ExecCompleted: "palegreen",
	domain.ExecSkipped:   "lightgrey",
}

// ToDOT converts the live part of a recipe to DOT. Output is deterministic.
func ToDOT(r *domain.Recipe, opts Options) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", r.Title)
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	steps := make([]*domain.Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Status.Live() {
			steps = append(steps, s)
		}
	}
	slices.SortFunc(steps, func(a, b *domain.Step) int { return cmp.Compare(a.ID, b.ID) })

	for _, s := range steps {
		fmt.Fprintf(&buf, "  %q [%s];\n", s.ID, strings.Join(fmtAttrs(r, s, opts), ", "))
	}

	rels := make([]*domain.Relation, 0, len(r.Relations))
	for _, rel := range r.Relations {
		if !rel.Status.Live() {
			continue
		}
		if _, ok := r.LiveStep(rel.ParentID); !ok {
			continue
		}
		if _, ok := r.LiveStep(rel.ChildID); !ok {
			continue
		}
		rels = append(rels, rel)
	}
	slices.SortFunc(rels, func(a, b *domain.Relation) int {
		return cmp.Or(cmp.Compare(a.ParentID, b.ParentID), cmp.Compare(a.ChildID, b.ChildID))
	})

	buf.WriteString("\n")
	for _, rel := range rels {
		fmt.Fprintf(&buf, "  %q -> %q;\n", rel.ParentID, rel.ChildID)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(s *domain.Step, detailed bool) string {
	label := s.Title
	if s.Timed() {
		label += " (" + playmode.FormatTime(s.Extension.DurationValue()) + ")"
	}
	if detailed && s.Instruction != "" {
		label += "\n" + s.Instruction
	}
	return label
}

func fmtAttrs(r *domain.Recipe, s *domain.Step, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(s, opts.Detailed))}
	if s.ID == r.RootStepID {
		attrs = append(attrs, "penwidth=2")
	}
	if opts.Play != nil {
		if es, ok := opts.Play.Steps[s.ID]; ok {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%s", execFill[es]))
		}
	}
	return attrs
}

// Format is an output format supported by Render.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// Render lays out a DOT graph with Graphviz.
func Render(ctx context.Context, dot string, format Format) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case FormatSVG:
		gvFormat = graphviz.SVG
	case FormatPNG:
		gvFormat = graphviz.PNG
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
