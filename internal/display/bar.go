package display

import (
	"strings"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/selection"
)

// TimerInfo is one entry of the status bar.
type TimerInfo struct {
	Label     string
	Remaining time.Duration
	Fired     bool
	Pending   bool // waiting for a manual start
}

// Bar is what the status line shows.
type Bar struct {
	Title  string
	Chip   string
	Timers []TimerInfo
}

// BarFunc produces the bar for the given moment.
type BarFunc func(now time.Time) Bar

// Empty reports whether there is nothing to draw.
func (b Bar) Empty() bool { return b.Title == "" && b.Chip == "" && len(b.Timers) == 0 }

func (t TimerInfo) text() string {
	switch {
	case t.Fired:
		return t.Label + ": DONE!"
	case t.Pending:
		return t.Label + ": waiting"
	default:
		return t.Label + ": " + playmode.FormatTime(t.Remaining)
	}
}

// WindowTitle is the terminal title for the bar.
func (b Bar) WindowTitle() string {
	if len(b.Timers) == 0 {
		if b.Title == "" {
			return "dagchef"
		}
		return "dagchef: " + b.Title
	}
	p := make([]string, len(b.Timers))
	for i, t := range b.Timers {
		p[i] = t.text()
	}
	return "dagchef: " + strings.Join(p, " | ")
}

// Render draws the bar at width columns.
func (b Bar) Render(width int) string {
	var parts []string
	if b.Chip != "" {
		parts = append(parts, chipStyle.Render(b.Chip))
	}
	if b.Title != "" {
		parts = append(parts, labelStyle.Render(b.Title))
	}
	for _, t := range b.Timers {
		switch {
		case t.Fired:
			parts = append(parts, timerDoneStyle.Render(t.text()))
		case t.Pending:
			parts = append(parts, timerPendingStyle.Render(t.text()))
		default:
			parts = append(parts, labelStyle.Render(t.Label+": ")+timerRunStyle.Render(playmode.FormatTime(t.Remaining)))
		}
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}

// PlayBar shows the run status and one entry per active timed step,
// ordered like the active-step list.
func PlayBar(snapshot func() (*domain.Recipe, domain.PlayState)) BarFunc {
	return func(now time.Time) Bar {
		r, st := snapshot()
		b := Bar{Title: r.Title, Chip: st.Status.String()}
		for _, s := range selection.ActiveSteps(r, st) {
			t, ok := st.Timers[s.ID]
			if !ok {
				continue
			}
			b.Timers = append(b.Timers, TimerInfo{
				Label:     s.Title,
				Remaining: playmode.TimeLeft(t, now),
				Fired:     t.Finished,
				Pending:   !t.Armed,
			})
		}
		return b
	}
}

// EditBar shows the recipe being edited and the cursor. The chip reads
// "unsaved" while dirty reports pending changes.
func EditBar(recipe func() *domain.Recipe, dirty func() bool) BarFunc {
	return func(time.Time) Bar {
		r := recipe()
		if r == nil {
			return Bar{Chip: "no recipe"}
		}
		b := Bar{Title: r.Title, Chip: "edit"}
		if s, ok := r.LiveStep(r.CurrentStepID); ok {
			b.Title += " › " + s.Title
		}
		if dirty != nil && dirty() {
			b.Chip = "unsaved"
		}
		return b
	}
}
