// Package timer drives the clock of a play session and turns timer
// progress into notifications.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
)

// Option configures the supervisor.
type Option func(*Supervisor)

// WithTickInterval sets how often the supervisor ticks the session.
func WithTickInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.tickInterval = d
	}
}

// WithNotifyCooldown sets the minimum time between repeated notifications.
func WithNotifyCooldown(d time.Duration) Option {
	return func(s *Supervisor) {
		s.notifyCooldown = d
	}
}

// WithMaxEscalation sets the escalation level after which the supervisor stops nagging.
func WithMaxEscalation(level int) Option {
	return func(s *Supervisor) {
		s.maxEscalation = level
	}
}

// WithReminderInterval sets how often running timers send periodic reminders.
// Zero disables reminders.
func WithReminderInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.reminderInterval = d
	}
}

// WithAlmostDoneThreshold sets how close to expiry a timer must be to
// trigger the "almost done" warning.
func WithAlmostDoneThreshold(d time.Duration) Option {
	return func(s *Supervisor) {
		s.almostDoneThreshold = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.clock = now
	}
}

// WithWatcher runs a Watcher alongside the tick loop.
func WithWatcher(opts ...WatcherOption) Option {
	return func(s *Supervisor) {
		s.watch = true
		s.watcherOpts = opts
	}
}

// alert is the notification bookkeeping for one step's timer.
type alert struct {
	level        int
	lastNotified time.Time
	lastReminded time.Time
	warned       bool
}

// Supervisor ticks a play session at a fixed interval and reports timer
// progress through a Notifier. The session stays the source of truth; the
// supervisor only remembers what it has already said.
type Supervisor struct {
	session             *playmode.Session
	notifier            domain.Notifier
	log                 *logger.Logger
	tickInterval        time.Duration
	notifyCooldown      time.Duration
	maxEscalation       int
	reminderInterval    time.Duration
	almostDoneThreshold time.Duration
	clock               func() time.Time

	watch       bool
	watcherOpts []WatcherOption

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	attached context.Context

	amu    sync.Mutex
	alerts map[domain.StepID]*alert
}

// New creates a supervisor for session. It subscribes to the session's
// transitions immediately.
func New(session *playmode.Session, notifier domain.Notifier, log *logger.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		session:             session,
		notifier:            notifier,
		log:                 log,
		tickInterval:        1 * time.Second,
		notifyCooldown:      15 * time.Second,
		maxEscalation:       3,
		reminderInterval:    2 * time.Minute,
		almostDoneThreshold: 30 * time.Second,
		clock:               time.Now,
		alerts:              make(map[domain.StepID]*alert),
	}
	for _, opt := range opts {
		opt(s)
	}
	session.Listen(s.onTransitions)
	return s
}

// Start begins the background tick loop. Non-blocking.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("timer supervisor already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go s.loop(childCtx)

	if s.watch {
		w := NewWatcher(s.session, s.notifier, s.log, append([]WatcherOption{WithWatchClock(s.clock)}, s.watcherOpts...)...)
		go w.Run(childCtx)
	}

	s.log.Info("timer supervisor started (tick=%s, cooldown=%s)", s.tickInterval, s.notifyCooldown)
}

// Stop shuts down the tick loop.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.running = false
	s.log.Info("timer supervisor stopped")
}

// Attach makes the tick loop follow the run: it starts on PlayStarted and
// PlayResumed and stops on pause, stop and completion. ctx bounds every
// loop started this way.
func (s *Supervisor) Attach(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = ctx
}

func (s *Supervisor) follow(kind playmode.TransitionKind) {
	s.mu.Lock()
	ctx, running := s.attached, s.running
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	switch kind {
	case playmode.PlayStarted, playmode.PlayResumed:
		if !running {
			s.Start(ctx)
		}
	case playmode.PlayPaused, playmode.PlayStopped, playmode.PlayCompleted:
		s.Stop()
	}
}

// Running reports whether the tick loop is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// onTransitions reacts to session changes made by anyone, including tick.
func (s *Supervisor) onTransitions(out []playmode.Transition) {
	ctx := context.Background()
	now := s.clock()

	var urgent []string
	s.amu.Lock()
	for _, tr := range out {
		switch tr.Kind {
		case playmode.PlayStarted, playmode.PlayStopped:
			clear(s.alerts)
		case playmode.StepCompleted, playmode.StepSkipped:
			delete(s.alerts, tr.StepID)
		case playmode.TimerFinished:
			a := s.alertFor(tr.StepID)
			urgent = append(urgent, escalationMessage(tr.Title, a.level))
			a.level = 1
			a.lastNotified = now
		}
	}
	s.amu.Unlock()

	for _, msg := range urgent {
		if err := s.notifier.NotifyUrgent(ctx, msg); err != nil {
			s.log.Error("supervisor: notifying timer fire: %v", err)
		}
	}
	for _, tr := range out {
		s.follow(tr.Kind)
	}
}

func (s *Supervisor) alertFor(id domain.StepID) *alert {
	a, ok := s.alerts[id]
	if !ok {
		a = &alert{}
		s.alerts[id] = a
	}
	return a
}

// tick runs one cycle: advance the session clock, then follow up on
// running and finished timers.
func (s *Supervisor) tick(ctx context.Context) {
	now := s.clock()
	if _, err := s.session.Dispatch(playmode.Tick{Now: now}); err != nil {
		s.log.Error("supervisor: ticking session: %v", err)
		return
	}

	recipe, st := s.session.Snapshot()
	if st.Status != domain.PlayPlaying {
		return
	}

	var msgs []string
	s.amu.Lock()
	for _, id := range playmode.SortedTimerIDs(st.Timers) {
		t := st.Timers[id]
		if !t.Armed {
			continue
		}
		label := string(id)
		if step, ok := recipe.Steps[id]; ok {
			label = step.Title
		}
		a := s.alertFor(id)

		if t.Finished {
			if a.level == 0 || a.level > s.maxEscalation {
				// Not yet announced by the transition, or done nagging.
				continue
			}
			if !a.lastNotified.IsZero() && now.Sub(a.lastNotified) < s.notifyCooldown {
				continue
			}
			msgs = append(msgs, escalationMessage(label, a.level))
			a.lastNotified = now
			a.level++
			continue
		}

		left := playmode.TimeLeft(t, now)

		// "Almost done" warning, once, when remaining crosses the threshold.
		if !a.warned && left <= s.almostDoneThreshold && t.Duration > s.almostDoneThreshold*2 {
			a.warned = true
			a.lastReminded = now
			msgs = append(msgs, fmt.Sprintf("[Timer] %s: almost done, %s left.", label, formatRemaining(left)))
			continue
		}

		if s.reminderInterval <= 0 || t.Duration <= s.reminderInterval {
			continue
		}
		var due bool
		if a.lastReminded.IsZero() {
			due = playmode.Elapsed(t, now) >= s.reminderInterval
		} else {
			due = now.Sub(a.lastReminded) >= s.reminderInterval
		}
		if due {
			a.lastReminded = now
			msgs = append(msgs, fmt.Sprintf("[Timer] %s: %s remaining.", label, formatRemaining(left)))
		}
	}
	s.amu.Unlock()

	for _, msg := range msgs {
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.Error("supervisor: timer notify: %v", err)
		}
	}
}

// escalationMessage returns a message based on how often a timer has
// already been announced.
func escalationMessage(label string, level int) string {
	switch level {
	case 0:
		return fmt.Sprintf("[Timer] %s is up.", label)
	case 1:
		return fmt.Sprintf("[Timer] %s -- check it now.", label)
	case 2:
		return fmt.Sprintf("[Timer] %s. Now.", label)
	default:
		return fmt.Sprintf("[Timer] %s.", label)
	}
}

// formatRemaining returns a human-friendly duration for timer reminders.
// Rounds to the nearest minute once there's at least 1 minute left.
func formatRemaining(d time.Duration) string {
	totalSec := int(d.Round(time.Second).Seconds())
	if totalSec < 60 {
		if totalSec == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", totalSec)
	}
	m := (totalSec + 30) / 60
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
