package domain

import "time"

// PlayStatus tracks the lifecycle of a play-mode run.
type PlayStatus int

const (
	PlayIdle PlayStatus = iota
	PlayPlaying
	PlayPaused
	PlayCompleted
)

// String returns a human-readable play status.
func (s PlayStatus) String() string {
	switch s {
	case PlayIdle:
		return "idle"
	case PlayPlaying:
		return "playing"
	case PlayPaused:
		return "paused"
	case PlayCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ExecStatus tracks a single step within a run.
type ExecStatus int

const (
	ExecWaiting ExecStatus = iota
	ExecActive
	ExecCompleted
	ExecSkipped
)

// String returns a human-readable execution status.
func (s ExecStatus) String() string {
	switch s {
	case ExecWaiting:
		return "waiting"
	case ExecActive:
		return "active"
	case ExecCompleted:
		return "completed"
	case ExecSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Done reports whether the step counts as finished for its dependents.
// Skipped and completed are treated alike.
func (s ExecStatus) Done() bool { return s == ExecCompleted || s == ExecSkipped }

// StepTimer is the countdown attached to an active timed step.
type StepTimer struct {
	StartTime        time.Time
	Duration         time.Duration
	AccumulatedPause time.Duration
	PauseStart       time.Time // zero when no pause interval is open
	Armed            bool      // false while waiting for a manual start
	Finished         bool
}

// Paused reports whether a pause interval is open.
func (t *StepTimer) Paused() bool { return !t.PauseStart.IsZero() }

// PlayState is the ephemeral execution state of a recipe run. It is reset
// whenever play mode starts.
type PlayState struct {
	Status      PlayStatus
	Steps       map[StepID]ExecStatus
	Completed   map[StepID]bool
	Timers      map[StepID]*StepTimer
	ActivatedAt map[StepID]time.Time
	StartedAt   time.Time
	PausedAt    time.Time // zero unless paused
}

// NewPlayState returns an idle state with empty maps.
func NewPlayState() PlayState {
	return PlayState{
		Status:      PlayIdle,
		Steps:       make(map[StepID]ExecStatus),
		Completed:   make(map[StepID]bool),
		Timers:      make(map[StepID]*StepTimer),
		ActivatedAt: make(map[StepID]time.Time),
	}
}

// Clone returns a deep copy of the state.
func (p PlayState) Clone() PlayState {
	c := p
	c.Steps = make(map[StepID]ExecStatus, len(p.Steps))
	for id, st := range p.Steps {
		c.Steps[id] = st
	}
	c.Completed = cloneSet(p.Completed)
	if c.Completed == nil {
		c.Completed = make(map[StepID]bool)
	}
	c.Timers = make(map[StepID]*StepTimer, len(p.Timers))
	for id, t := range p.Timers {
		cp := *t
		c.Timers[id] = &cp
	}
	c.ActivatedAt = make(map[StepID]time.Time, len(p.ActivatedAt))
	for id, at := range p.ActivatedAt {
		c.ActivatedAt[id] = at
	}
	return c
}
