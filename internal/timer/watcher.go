package timer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/selection"
)

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets how often the watcher checks session state.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithIdleAfter sets how long an untimed step may stay active before the
// watcher mentions it.
func WithIdleAfter(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.idleAfter = d
	}
}

// WithWatchClock replaces time.Now.
func WithWatchClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		w.clock = now
	}
}

// Watcher periodically looks at the whole run and nudges the cook about
// long pauses, finished timers nobody has acted on, and untimed steps that
// have been open for a while. It runs on a slower cycle than the
// supervisor (default: 1 minute).
type Watcher struct {
	session   *playmode.Session
	notifier  domain.Notifier
	log       *logger.Logger
	interval  time.Duration
	idleAfter time.Duration
	clock     func() time.Time
}

// NewWatcher creates a watcher for session.
func NewWatcher(session *playmode.Session, notifier domain.Notifier, log *logger.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		session:   session,
		notifier:  notifier,
		log:       log,
		interval:  1 * time.Minute,
		idleAfter: 3 * time.Minute,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the watcher loop. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("watcher started (interval=%s)", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	recipe, st := w.session.Snapshot()
	msg := w.buildMessage(recipe, st, w.clock())
	if msg == "" {
		return
	}
	if err := w.notifier.Notify(ctx, msg); err != nil {
		w.log.Error("watcher: notify: %v", err)
	}
}

// buildMessage decides what to tell the cook, if anything.
func (w *Watcher) buildMessage(recipe *domain.Recipe, st domain.PlayState, now time.Time) string {
	switch st.Status {
	case domain.PlayPaused:
		if st.PausedAt.IsZero() {
			return ""
		}
		return fmt.Sprintf("[Watcher] Paused for %s. Your food isn't cooking itself.", now.Sub(st.PausedAt).Round(time.Second))
	case domain.PlayPlaying:
	default:
		return ""
	}

	var finished, idle []string
	for _, s := range selection.ActiveSteps(recipe, st) {
		t, timed := st.Timers[s.ID]
		if timed && t.Finished {
			finished = append(finished, s.Title)
			continue
		}
		if timed {
			w.log.Debug("watcher: %s has %s left", s.Title, playmode.FormatTime(playmode.TimeLeft(t, now)))
			continue
		}
		if at, ok := st.ActivatedAt[s.ID]; ok && now.Sub(at) > w.idleAfter {
			idle = append(idle, s.Title)
		}
	}

	// Finished timers take priority; something needs attention.
	if len(finished) > 0 {
		return fmt.Sprintf("[Watcher] Heads up: %s finished and waiting on you.", joinNames(finished))
	}
	if len(idle) > 0 {
		return fmt.Sprintf("[Watcher] Still on %s. Take your time, but don't forget about it.", joinNames(idle))
	}

	w.log.Debug("watcher: %s, %d/%d steps done, nothing to report",
		recipe.Title, len(st.Completed), len(st.Steps))
	return ""
}

// joinNames joins names as "a", "a and b" or "a, b and c".
func joinNames(names []string) string {
	if len(names) <= 1 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
