package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/dagchef/internal/display"
	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/editor"
	"github.com/hammamikhairi/dagchef/internal/engine"
	"github.com/hammamikhairi/dagchef/internal/graph"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/selection"
)

func (a *App) editCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a recipe graph interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng := engine.New(a.store, a.log, engine.WithLogin(a.cfg.Login))
			if _, err := eng.Open(ctx, args[0]); err != nil {
				return err
			}
			ui := display.NewUI(display.EditBar(eng.Recipe, eng.Dirty))
			return a.runUI(ctx, ui, newEditApp(eng, ui, a.log))
		},
	}
}

// editApp is the edit-mode REPL. Every command acts on the step under the
// cursor.
type editApp struct {
	eng *engine.Engine
	ui  printer
	log *logger.Logger

	// quitArmed is set by a quit refused for unsaved changes.
	quitArmed bool
}

func newEditApp(eng *engine.Engine, ui printer, log *logger.Logger) *editApp {
	return &editApp{eng: eng, ui: ui, log: log}
}

func (a *editApp) welcome(ctx context.Context) {
	r := a.eng.Recipe()
	a.ui.PrintStep(fmt.Sprintf("=== %s ===", r.Title))
	if r.Description != "" {
		a.ui.PrintInstruction(r.Description)
	}
	a.ui.Println("")
	a.ui.PrintChat(lineWelcomeEdit(r.Title))
	if !a.eng.CanEdit() {
		a.ui.PrintHint(lineReadOnly(r.Owner))
	}
}

func (a *editApp) handle(ctx context.Context, cmd *domain.Command) bool {
	if cmd.Type == domain.CommandQuit {
		return a.quit()
	}
	a.quitArmed = false

	switch cmd.Type {
	case domain.CommandHelp:
		a.showHelp()
	case domain.CommandShow:
		a.show()
	case domain.CommandStatus:
		a.status()
	case domain.CommandGoto:
		a.gotoStep(cmd.Arg)
	case domain.CommandAdd:
		a.add(cmd.Arg, cmd.Rest)
	case domain.CommandAppend:
		a.appendStep(cmd.Arg, cmd.Rest)
	case domain.CommandConnect:
		a.connect(cmd.Arg)
	case domain.CommandDisconnect:
		a.disconnect(cmd.Arg)
	case domain.CommandDelete:
		a.deleteCurrent()
	case domain.CommandRename:
		a.update(domain.StepPatch{Title: domain.Ptr(cmd.Arg)})
	case domain.CommandInstruct:
		a.update(domain.StepPatch{Instruction: domain.Ptr(cmd.Arg)})
	case domain.CommandDuration:
		a.setDuration(cmd.Arg)
	case domain.CommandExtend:
		a.toggleTimer()
	case domain.CommandSave:
		a.save(ctx)
	case domain.CommandUnknown:
		a.ui.PrintChat(lineUnknown(cmd.Arg))
	default:
		a.ui.PrintHint(lineWrongMode(cmd.Type.String(), "edit"))
	}
	return true
}

func (a *editApp) quit() bool {
	if a.eng.CanEdit() && a.eng.Dirty() && !a.quitArmed {
		a.quitArmed = true
		a.ui.PrintUrgent(lineUnsavedQuit())
		return true
	}
	a.ui.PrintChat(lineBye())
	return false
}

func (a *editApp) current() *domain.Step {
	return a.eng.View().Current(a.eng.Recipe())
}

func (a *editApp) show() {
	r := a.eng.Recipe()
	view := a.eng.View()
	cur := view.Current(r)
	if cur == nil {
		a.ui.PrintHint("No step selected.")
		return
	}

	header := cur.Title
	if cur.ID == r.RootStepID {
		header += " (first step)"
	}
	a.ui.PrintStep(header)
	if cur.Instruction != "" {
		a.ui.PrintInstruction(cur.Instruction)
	}
	if cur.Timed() {
		line := "Timer: " + formatDuration(cur.Extension.DurationValue())
		if cur.Extension.Body != "" {
			line += ", then " + cur.Extension.Body
		}
		a.ui.PrintHint(line)
	}

	if parents := view.ParentsOfCurrent(r); len(parents) > 0 {
		a.ui.PrintInstruction("After:  " + joinTitles(titles(parents)))
	}
	if kids := view.ChildrenOfCurrent(r); len(kids) > 0 {
		a.ui.PrintInstruction("Before: " + joinTitles(titles(kids)))
	}

	var loose []string
	for _, rel := range view.DeletableParentConnections(r) {
		loose = append(loose, a.stepTitle(r, rel.ParentID))
	}
	for _, rel := range view.DeletableChildConnections(r) {
		loose = append(loose, a.stepTitle(r, rel.ChildID))
	}
	if len(loose) > 0 {
		a.ui.PrintHint("Can disconnect from: " + joinTitles(loose))
	}

	if a.eng.CanEdit() {
		if possible := view.PossibleChildren(r); len(possible) > 0 {
			a.ui.PrintStep("Can come next:")
			numbered(a.ui, possible)
		}
	}
}

func (a *editApp) status() {
	r := a.eng.Recipe()
	a.ui.PrintStep(fmt.Sprintf("%s (by %s)", r.Title, r.Owner))
	steps := selection.LiveSteps(r)
	numbered(a.ui, steps)
	if cur := a.current(); cur != nil {
		a.ui.PrintHint("On: " + cur.Title)
	}
	if cs, err := a.eng.Changes(); err == nil && !cs.Empty() {
		a.ui.PrintHint("Unsaved changes.")
	}
}

func (a *editApp) gotoStep(ref string) {
	step, err := engine.Resolve(selection.LiveSteps(a.eng.Recipe()), ref)
	if err != nil {
		report(a.ui, err)
		return
	}
	if err := a.eng.Shift(step.ID); err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineMovedTo(step.Title))
}

func (a *editApp) add(title, instruction string) {
	err := a.eng.Edit("add", func(m *editor.Model) error {
		id, err := m.CreateStep(title)
		if err != nil || instruction == "" {
			return err
		}
		return m.UpdateStep(id, domain.StepPatch{Instruction: domain.Ptr(instruction)})
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineAdded(title))
}

func (a *editApp) appendStep(title, instruction string) {
	if instruction == "" {
		instruction = editor.DefaultInstruction
	}
	var after string
	err := a.eng.Edit("append", func(m *editor.Model) error {
		r := m.Recipe()
		if s, ok := r.LiveStep(r.CurrentStepID); ok {
			after = s.Title
		}
		id, _, err := m.AppendStep(title, instruction)
		if err != nil {
			return err
		}
		return m.ShiftCurrent(id)
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineAppended(title, after))
}

// connect makes the step ref names come after the current one.
func (a *editApp) connect(ref string) {
	r := a.eng.Recipe()
	cur := a.current()
	if cur == nil {
		report(a.ui, domain.ErrNoRecipe)
		return
	}
	child, err := engine.Resolve(a.eng.View().PossibleChildren(r), ref)
	if errors.Is(err, domain.ErrNotFound) {
		// Resolve again among every step so the refusal can say why.
		child, err = engine.Resolve(selection.LiveSteps(r), ref)
	}
	if err != nil {
		report(a.ui, err)
		return
	}
	if _, err := a.eng.Connect(cur.ID, child.ID); err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineConnected(cur.Title, child.Title))
}

// disconnect removes the relation between the current step and the
// neighbour ref names.
func (a *editApp) disconnect(ref string) {
	r := a.eng.Recipe()
	view := a.eng.View()
	cur := view.Current(r)
	if cur == nil {
		report(a.ui, domain.ErrNoRecipe)
		return
	}
	neighbours := append(append([]*domain.Step{}, view.ParentsOfCurrent(r)...), view.ChildrenOfCurrent(r)...)
	other, err := engine.Resolve(neighbours, ref)
	if err != nil {
		report(a.ui, err)
		return
	}

	parent, child := cur, other
	relID, ok := r.Index()[domain.RelationKey{Parent: cur.ID, Child: other.ID}]
	if !ok {
		parent, child = other, cur
		relID = r.Index()[domain.RelationKey{Parent: other.ID, Child: cur.ID}]
	}
	err = a.eng.Edit("disconnect", func(m *editor.Model) error {
		return m.DeleteConn(relID)
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineDisconnected(parent.Title, child.Title))
}

func (a *editApp) deleteCurrent() {
	cur := a.current()
	if cur == nil {
		report(a.ui, domain.ErrNoRecipe)
		return
	}
	before := a.eng.Recipe()
	err := a.eng.Edit("delete", func(m *editor.Model) error {
		return m.DeleteStep(cur.ID)
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineDeleted(cur.Title))
	if cut := detached(before, a.eng.Recipe()); len(cut) > 0 {
		a.ui.PrintUrgent(lineDetached(titles(cut)))
	}
	if now := a.current(); now != nil {
		a.ui.PrintHint(lineMovedTo(now.Title))
	}
}

// detached returns the live steps of after that followed from the first
// step in before but no longer do.
func detached(before, after *domain.Recipe) []*domain.Step {
	was := graph.ReachableFrom(before.Steps, before.Relations, before.RootStepID)
	now := graph.ReachableFrom(after.Steps, after.Relations, after.RootStepID)
	var out []*domain.Step
	for _, s := range selection.LiveSteps(after) {
		if was[s.ID] && !now[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (a *editApp) update(patch domain.StepPatch) {
	err := a.eng.Edit("update", func(m *editor.Model) error {
		return m.SetCurrent(patch)
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	a.ui.PrintChat(lineUpdated(a.current().Title))
}

// setDuration times the current step. A bare number is seconds.
func (a *editApp) setDuration(arg string) {
	d, err := parseDuration(arg)
	if err != nil {
		a.ui.PrintHint(fmt.Sprintf("%q isn't a duration. Try 90, 90s or 1m30s.", arg))
		return
	}
	ext := domain.Extension{Duration: int(d / time.Second)}
	if cur := a.current(); cur != nil && cur.Extension != nil {
		ext.Body = cur.Extension.Body
	}
	a.update(domain.StepPatch{Extension: &ext})
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

func (a *editApp) toggleTimer() {
	err := a.eng.Edit("extend", func(m *editor.Model) error {
		return m.ToggleExtension()
	})
	if err != nil {
		report(a.ui, err)
		return
	}
	cur := a.current()
	if cur.Timed() {
		a.ui.PrintChat(lineTimerAdded(cur.Title))
	} else {
		a.ui.PrintChat(lineTimerRemoved(cur.Title))
	}
}

func (a *editApp) save(ctx context.Context) {
	cs, err := a.eng.Changes()
	if err != nil {
		report(a.ui, err)
		return
	}
	ids, err := a.eng.Save(ctx)
	if err != nil {
		report(a.ui, err)
		return
	}
	if ids == nil {
		a.ui.PrintHint(lineNothingToSave())
		return
	}
	creates := len(cs.Steps.Create) + len(cs.Relations.Create)
	updates := len(cs.Steps.Modified)
	if cs.HeaderChanged {
		updates++
	}
	deletes := len(cs.Steps.Delete) + len(cs.Relations.Delete)
	a.ui.PrintChat(lineSaved(creates, updates, deletes))
}

func (a *editApp) stepTitle(r *domain.Recipe, id domain.StepID) string {
	if s, ok := r.Steps[id]; ok {
		return s.Title
	}
	return string(id)
}

func (a *editApp) showHelp() {
	a.ui.PrintStep("Commands:")
	a.ui.PrintInstruction("  show / ls               Show the current step and its neighbours")
	a.ui.PrintInstruction("  status                  List every step")
	a.ui.PrintInstruction("  goto <step>             Move to a step (numbers from 'status')")
	a.ui.PrintInstruction("  add <title>[: text]     Add a loose step")
	a.ui.PrintInstruction("  append <title>[: text]  Add a step after this one and move to it")
	a.ui.PrintInstruction("  connect <step>          Make a step come after this one (numbers from 'show')")
	a.ui.PrintInstruction("  disconnect <step>       Remove a link to a neighbour")
	a.ui.PrintInstruction("  delete                  Delete this step")
	a.ui.PrintInstruction("  rename <title>          Rename this step")
	a.ui.PrintInstruction("  instruct <text>         Replace this step's instruction")
	a.ui.PrintInstruction("  extend                  Toggle this step's timer")
	a.ui.PrintInstruction("  duration <length>       Set the timer length (90, 1m30s)")
	a.ui.PrintInstruction("  save                    Store your changes")
	a.ui.PrintInstruction("  quit                    Leave")
	a.ui.PrintHint(lineNamingSteps())
}
