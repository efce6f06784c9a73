package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/editor"
	"github.com/hammamikhairi/dagchef/internal/recipe"
	"github.com/hammamikhairi/dagchef/internal/render"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(a.out, "No recipes yet. Try: dagchef import FILE.hcl")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tOWNER\tSTEPS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Title, s.Owner, s.Steps)
			}
			return w.Flush()
		},
	}
}

func (a *App) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.hcl...",
		Short: "Parse, validate and store recipes from HCL files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				docs, err := recipe.Import(cmd.Context(), a.store, path)
				if err != nil {
					return err
				}
				for _, doc := range docs {
					fmt.Fprintf(a.out, "imported %s: %s (%d steps)\n", doc.ID, doc.Title, len(doc.Steps))
				}
			}
			return nil
		},
	}
}

type exportOpts struct {
	format   string
	output   string
	detailed bool
}

func (a *App) exportCommand() *cobra.Command {
	opts := exportOpts{format: "dot"}
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a recipe graph as DOT, SVG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dot := render.ToDOT(wire.FromDocument(doc), render.Options{Detailed: opts.detailed})

			var data []byte
			switch strings.ToLower(opts.format) {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.Render(cmd.Context(), dot, render.FormatSVG)
			case "png":
				data, err = render.Render(cmd.Context(), dot, render.FormatPNG)
			default:
				return fmt.Errorf("unsupported format %q (want dot, svg or png)", opts.format)
			}
			if err != nil {
				return err
			}

			if opts.output == "" || opts.output == "-" {
				_, err = a.out.Write(data)
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", opts.output, err)
			}
			a.log.Info("wrote %s", opts.output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg or png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include instructions in node labels")
	return cmd
}

func (a *App) newCommand() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty recipe owned by the configured login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := editor.New(a.log)
			m.CreateEmpty(a.cfg.Login)
			patch := domain.RecipePatch{}
			if title != "" {
				patch.Title = domain.Ptr(title)
			}
			if description != "" {
				patch.Description = domain.Ptr(description)
			}
			if err := m.SetRecipe(patch); err != nil {
				return err
			}
			doc := wire.ToDocument(m.Recipe())
			if err := a.store.Create(cmd.Context(), doc); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %s: %s\n", doc.ID, doc.Title)
			fmt.Fprintf(a.out, "edit it with: %s edit %s\n", appName, doc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "recipe title")
	cmd.Flags().StringVar(&description, "description", "", "recipe description")
	return cmd
}

func (a *App) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recipe you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if doc.Owner != a.cfg.Login {
				return fmt.Errorf("recipe %s is owned by %q: %w", doc.ID, doc.Owner, domain.ErrNotOwner)
			}
			if err := a.store.Delete(cmd.Context(), doc.ID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("recipe %s vanished while deleting: %w", doc.ID, err)
				}
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", doc.ID)
			return nil
		},
	}
}
