package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hammamikhairi/dagchef/internal/conversation"
	"github.com/hammamikhairi/dagchef/internal/display"
	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/sound"
	"github.com/hammamikhairi/dagchef/internal/timer"
)

// printer is the part of display.UI the REPLs write to.
type printer interface {
	Println(a ...any)
	PrintChat(text string)
	PrintStep(text string)
	PrintInstruction(text string)
	PrintHint(text string)
	PrintUrgent(text string)
}

var _ printer = (*display.UI)(nil)

// handler is one REPL mode.
type handler interface {
	welcome(ctx context.Context)
	// handle reacts to a command and returns false to end the session.
	handle(ctx context.Context, cmd *domain.Command) bool
}

// runLoop feeds input lines to h until ctx ends, input closes or h quits.
func runLoop(ctx context.Context, input <-chan string, parser domain.CommandParser, h handler, log *logger.Logger) {
	h.welcome(ctx)
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return
		case line, ok = <-input:
			if !ok {
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, err := parser.Parse(ctx, line)
		if err != nil {
			log.Error("parsing input: %v", err)
			continue
		}
		log.Debug("command: %s (arg=%q rest=%q)", cmd.Type, cmd.Arg, cmd.Rest)
		if !h.handle(ctx, cmd) {
			return
		}
	}
}

// runUI hands the terminal to Bubble Tea and runs h beside it. Returns
// when the user quits or ctx is cancelled.
func (a *App) runUI(ctx context.Context, ui *display.UI, h handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, display.RenderBanner())
	fmt.Fprintln(a.out, display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
	fmt.Fprintln(a.out)

	parser := conversation.NewKeywordParser(a.log)
	go func() {
		ui.WaitReady()
		runLoop(ctx, ui.InputChan(), parser, h, a.log)
		ui.Quit()
	}()

	err := ui.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

// notifier prints through ui and, when configured, rings a bell on urgent
// messages.
func (a *App) notifier(ui *display.UI) domain.Notifier {
	text := conversation.NewCLINotifier(a.log, ui.Printf)
	if !a.cfg.Bell {
		return text
	}
	return sound.NewRingingNotifier(text, sound.NewRinger(a.errOut, a.log), a.log)
}

func (a *App) supervisorOptions() []timer.Option {
	opts := []timer.Option{
		timer.WithTickInterval(a.cfg.TickInterval.Duration),
		timer.WithNotifyCooldown(a.cfg.NotifyCooldown.Duration),
		timer.WithReminderInterval(a.cfg.ReminderInterval.Duration),
		timer.WithAlmostDoneThreshold(a.cfg.AlmostDoneThreshold.Duration),
		timer.WithMaxEscalation(a.cfg.MaxEscalation),
	}
	if a.cfg.Watch {
		opts = append(opts, timer.WithWatcher())
	}
	return opts
}

// report prints err in terms the cook understands.
func report(ui printer, err error) {
	var inv *domain.GraphInvariantError
	var nf *domain.NotFoundError
	switch {
	case errors.As(err, &inv):
		ui.PrintUrgent("Can't do that: " + inv.Reason + ".")
	case errors.As(err, &nf):
		if nf.ID == "" {
			ui.PrintHint(fmt.Sprintf("Which %s?", nf.Kind))
		} else {
			ui.PrintHint(fmt.Sprintf("No %s matches %q.", nf.Kind, nf.ID))
		}
	case errors.Is(err, domain.ErrAmbiguous):
		ui.PrintHint(err.Error() + ". Be more specific, or use its number.")
	case errors.Is(err, domain.ErrNotOwner):
		ui.PrintUrgent("You don't own this recipe.")
	default:
		ui.PrintUrgent(fmt.Sprintf("Error: %v", err))
	}
}

// numbered prints steps as a 1-based list.
func numbered(ui printer, steps []*domain.Step) {
	for i, s := range steps {
		line := fmt.Sprintf("[%d] %s", i+1, s.Title)
		if s.Timed() {
			line += fmt.Sprintf(" (%s)", formatDuration(s.Extension.DurationValue()))
		}
		ui.PrintInstruction(line)
	}
}

func titles(steps []*domain.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Title
	}
	return out
}
