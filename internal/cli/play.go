package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/dagchef/internal/display"
	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/engine"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/selection"
	"github.com/hammamikhairi/dagchef/internal/timer"
)

func (a *App) playCommand() *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "play ID",
		Short: "Play a recipe with live timers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var opts []playmode.Option
			if manual || a.cfg.ManualTimers {
				opts = append(opts, playmode.WithManualTimers())
			}
			eng := engine.New(a.store, a.log, engine.WithLogin(a.cfg.Login), engine.WithPlayOptions(opts...))
			session, err := eng.NewPlay(ctx, args[0])
			if err != nil {
				return err
			}

			ui := display.NewUI(display.PlayBar(session.Snapshot))
			app := newPlayApp(session, ui, a.log)

			// The supervisor follows the run: it ticks only while playing.
			sup := timer.New(session, a.notifier(ui), a.log, a.supervisorOptions()...)
			sup.Attach(ctx)
			defer sup.Stop()

			return a.runUI(ctx, ui, app)
		},
	}
	cmd.Flags().BoolVar(&manual, "manual-timers", false, "wait for 'timer' before a step's countdown starts")
	return cmd
}

// playApp is the play-mode REPL. It turns commands into session events and
// narrates the transitions the session reports, whoever caused them.
type playApp struct {
	session *playmode.Session
	ui      printer
	log     *logger.Logger
	clock   func() time.Time
}

func newPlayApp(session *playmode.Session, ui printer, log *logger.Logger) *playApp {
	a := &playApp{session: session, ui: ui, log: log, clock: time.Now}
	session.Listen(a.narrate)
	return a
}

func (a *playApp) welcome(ctx context.Context) {
	r, _ := a.session.Snapshot()
	a.ui.PrintStep(fmt.Sprintf("=== %s ===", r.Title))
	if r.Description != "" {
		a.ui.PrintInstruction(r.Description)
	}
	a.ui.PrintHint(fmt.Sprintf("Steps: %d", len(selection.LiveSteps(r))))
	a.ui.Println("")
	a.ui.PrintChat(lineWelcomePlay(r.Title))
}

func (a *playApp) handle(ctx context.Context, cmd *domain.Command) bool {
	switch cmd.Type {
	case domain.CommandHelp:
		a.showHelp()
	case domain.CommandStatus, domain.CommandShow:
		a.status()
	case domain.CommandStart:
		a.start()
	case domain.CommandPause:
		a.dispatch(playmode.Pause{Now: a.clock()})
	case domain.CommandResume:
		a.dispatch(playmode.Resume{Now: a.clock()})
	case domain.CommandStop:
		a.dispatch(playmode.Stop{})
	case domain.CommandComplete:
		a.finish(cmd.Arg, false)
	case domain.CommandSkip:
		a.finish(cmd.Arg, true)
	case domain.CommandStartTimer:
		a.startTimer(cmd.Arg)
	case domain.CommandQuit:
		if st := a.session.Status(); st == domain.PlayPlaying || st == domain.PlayPaused {
			a.dispatch(playmode.Stop{})
		}
		a.ui.PrintChat(lineBye())
		return false
	case domain.CommandUnknown:
		a.ui.PrintChat(lineUnknown(cmd.Arg))
	default:
		a.ui.PrintHint(lineWrongMode(cmd.Type.String(), "play"))
	}
	return true
}

func (a *playApp) start() {
	if st := a.session.Status(); st == domain.PlayPlaying || st == domain.PlayPaused {
		a.ui.PrintHint(lineRestarted())
	}
	a.dispatch(playmode.Start{Now: a.clock()})
}

// dispatch sends ev and explains a rejection.
func (a *playApp) dispatch(ev playmode.Event) bool {
	_, err := a.session.Dispatch(ev)
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		report(a.ui, err)
		return false
	}
	switch st := a.session.Status(); {
	case st == domain.PlayPaused:
		if _, ok := ev.(playmode.Pause); ok {
			a.ui.PrintHint(linePaused())
		} else {
			a.ui.PrintHint(lineIsPaused())
		}
	case st == domain.PlayPlaying:
		if _, ok := ev.(playmode.Resume); ok {
			a.ui.PrintHint(lineNotPaused())
		} else {
			report(a.ui, err)
		}
	default:
		a.ui.PrintHint(lineNotPlaying())
	}
	return false
}

// finish completes or skips the step ref names among the active ones.
// Without ref, the only active step is meant.
func (a *playApp) finish(ref string, skip bool) {
	verb := "complete"
	if skip {
		verb = "skip"
	}
	step, ok := a.pickActive(ref, verb, func(*domain.Step, domain.PlayState) bool { return true })
	if !ok {
		return
	}
	now := a.clock()
	if skip {
		a.dispatch(playmode.Skip{StepID: step.ID, Now: now})
	} else {
		a.dispatch(playmode.Complete{StepID: step.ID, Now: now})
	}
}

// startTimer arms the pending timer ref names, or every pending timer.
func (a *playApp) startTimer(ref string) {
	pending := func(s *domain.Step, st domain.PlayState) bool {
		t, ok := st.Timers[s.ID]
		return ok && !t.Armed
	}
	if ref != "" {
		if step, ok := a.pickActive(ref, "start", pending); ok {
			a.dispatch(playmode.StartTimer{StepID: step.ID, Now: a.clock()})
		}
		return
	}

	if !a.playing() {
		return
	}
	r, st := a.session.Snapshot()
	n := 0
	for _, s := range selection.ActiveSteps(r, st) {
		if pending(s, st) && a.dispatch(playmode.StartTimer{StepID: s.ID, Now: a.clock()}) {
			n++
		}
	}
	if n == 0 {
		a.ui.PrintHint(lineNoPendingTimers())
	}
}

// pickActive resolves ref among the active steps that keep accepts.
func (a *playApp) pickActive(ref, verb string, keep func(*domain.Step, domain.PlayState) bool) (*domain.Step, bool) {
	if !a.playing() {
		return nil, false
	}
	r, st := a.session.Snapshot()
	var candidates []*domain.Step
	for _, s := range selection.ActiveSteps(r, st) {
		if keep(s, st) {
			candidates = append(candidates, s)
		}
	}

	if ref == "" {
		switch len(candidates) {
		case 0:
			a.ui.PrintHint(lineNothingActive())
			return nil, false
		case 1:
			return candidates[0], true
		default:
			a.ui.PrintChat(lineWhichStep(verb))
			numbered(a.ui, candidates)
			return nil, false
		}
	}

	step, err := engine.Resolve(candidates, ref)
	if err != nil {
		report(a.ui, err)
		return nil, false
	}
	return step, true
}

// playing reports whether step commands are accepted, explaining why not.
func (a *playApp) playing() bool {
	switch a.session.Status() {
	case domain.PlayPlaying:
		return true
	case domain.PlayPaused:
		a.ui.PrintHint(lineIsPaused())
	default:
		a.ui.PrintHint(lineNotPlaying())
	}
	return false
}

// narrate prints what a dispatch changed. Timer alarms are left to the
// supervisor's notifier.
func (a *playApp) narrate(out []playmode.Transition) {
	r, st := a.session.Snapshot()

	roots := 0
	for _, tr := range out {
		if tr.Kind == playmode.StepActivated {
			roots++
		}
	}

	for _, tr := range out {
		switch tr.Kind {
		case playmode.PlayStarted:
			a.ui.PrintChat(lineStarted(r.Title, roots))
		case playmode.PlayPaused:
			a.ui.PrintChat(linePaused())
		case playmode.PlayResumed:
			a.ui.PrintChat(lineResumed())
		case playmode.PlayStopped:
			a.ui.PrintChat(lineStopped())
		case playmode.PlayCompleted:
			a.ui.PrintStep(lineDone(r.Title))
		case playmode.StepCompleted:
			a.ui.PrintChat(lineCompleted(tr.Title))
		case playmode.StepSkipped:
			a.ui.PrintChat(lineSkipped(tr.Title))
		case playmode.StepActivated:
			a.showStep(r, st, tr.StepID)
		case playmode.TimerStarted:
			if t, ok := st.Timers[tr.StepID]; ok {
				a.ui.PrintChat(lineTimerStarted(tr.Title, t.Duration))
			}
		case playmode.TimerFinished:
		}
	}
}

func (a *playApp) showStep(r *domain.Recipe, st domain.PlayState, id domain.StepID) {
	s, ok := r.Steps[id]
	if !ok {
		return
	}
	a.ui.PrintStep(lineNowActive(s.Title))
	if s.Instruction != "" {
		a.ui.PrintInstruction(s.Instruction)
	}
	if t, ok := st.Timers[id]; ok {
		if t.Armed {
			a.ui.PrintHint(lineTimerSet(t.Duration))
		} else {
			a.ui.PrintHint(lineTimerReady(t.Duration))
		}
		if s.Extension.Body != "" {
			a.ui.PrintHint("when it rings: " + s.Extension.Body)
		}
	}
}

func (a *playApp) status() {
	r, st := a.session.Snapshot()
	now := a.clock()

	a.ui.PrintStep(fmt.Sprintf("%s: %s", r.Title, st.Status))
	if st.Status == domain.PlayIdle {
		a.ui.PrintHint(lineNotPlaying())
		return
	}
	a.ui.PrintInstruction(fmt.Sprintf("Done:    %d/%d", len(st.Completed), len(st.Steps)))
	if done := selection.CompletedSteps(r, st); len(done) > 0 {
		a.ui.PrintHint("Finished: " + truncateStr(joinTitles(titles(done)), 120))
	}
	if !st.StartedAt.IsZero() {
		a.ui.PrintHint(fmt.Sprintf("Started: %s ago", formatDuration(now.Sub(st.StartedAt))))
	}

	active := selection.ActiveSteps(r, st)
	if len(active) == 0 {
		return
	}
	a.ui.PrintStep("On now:")
	for i, s := range active {
		line := fmt.Sprintf("[%d] %s", i+1, s.Title)
		t, ok := st.Timers[s.ID]
		switch {
		case !ok:
			a.ui.PrintInstruction(line)
		case t.Finished:
			a.ui.PrintUrgent(line + " -- timer DONE")
		case !t.Armed:
			a.ui.PrintInstruction(line + " -- timer waiting")
		default:
			a.ui.PrintInstruction(fmt.Sprintf("%s -- %s left", line, playmode.FormatTime(playmode.TimeLeft(t, now))))
		}
	}

	var waiting []string
	for _, s := range selection.LiveSteps(r) {
		if st.Steps[s.ID] == domain.ExecWaiting {
			waiting = append(waiting, s.Title)
		}
	}
	if len(waiting) > 0 {
		a.ui.PrintHint("Coming up: " + truncateStr(joinTitles(waiting), 120))
	}
}

func (a *playApp) showHelp() {
	a.ui.PrintStep("Commands:")
	a.ui.PrintInstruction("  start / go          Start (or restart) the recipe")
	a.ui.PrintInstruction("  done [step]         Complete an active step")
	a.ui.PrintInstruction("  skip [step]         Skip an active step; what follows still unlocks")
	a.ui.PrintInstruction("  timer [step]        Start a timer that is waiting")
	a.ui.PrintInstruction("  pause / brb         Pause every timer")
	a.ui.PrintInstruction("  resume / back       Resume after a pause")
	a.ui.PrintInstruction("  status / where      Show progress and timers")
	a.ui.PrintInstruction("  stop                Abandon the run")
	a.ui.PrintInstruction("  help                Show this message")
	a.ui.PrintInstruction("  quit / exit         Leave")
	a.ui.PrintHint("Steps are named by number (from 'status') or by the start of their title.")
}
