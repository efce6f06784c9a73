package playmode

import (
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// Event is an input to the reducer.
type Event interface {
	event()
}

// Start resets the run and activates every step without parents.
type Start struct{ Now time.Time }

// Pause freezes every running timer.
type Pause struct{ Now time.Time }

// Resume unfreezes the timers paused by Pause.
type Resume struct{ Now time.Time }

// Stop returns to idle and clears the run.
type Stop struct{}

// Complete marks an active step finished. Timers of steps it unlocks
// start at Now.
type Complete struct {
	StepID domain.StepID
	Now    time.Time
}

// Skip marks an active step skipped. Dependents unlock exactly as for
// Complete.
type Skip struct {
	StepID domain.StepID
	Now    time.Time
}

// Tick advances timers to Now.
type Tick struct{ Now time.Time }

// StartTimer arms the timer of an active step that is waiting for a manual
// start.
type StartTimer struct {
	StepID domain.StepID
	Now    time.Time
}

func (Start) event()      {}
func (Pause) event()      {}
func (Resume) event()     {}
func (Stop) event()       {}
func (Complete) event()   {}
func (Skip) event()       {}
func (Tick) event()       {}
func (StartTimer) event() {}

// TransitionKind classifies an observable change produced by the reducer.
type TransitionKind int

const (
	PlayStarted TransitionKind = iota
	PlayPaused
	PlayResumed
	PlayStopped
	PlayCompleted
	StepActivated
	StepCompleted
	StepSkipped
	TimerStarted
	TimerFinished
)

var transitionNames = map[TransitionKind]string{
	PlayStarted:   "play started",
	PlayPaused:    "play paused",
	PlayResumed:   "play resumed",
	PlayStopped:   "play stopped",
	PlayCompleted: "play completed",
	StepActivated: "step activated",
	StepCompleted: "step completed",
	StepSkipped:   "step skipped",
	TimerStarted:  "timer started",
	TimerFinished: "timer finished",
}

// String returns a human-readable transition kind.
func (k TransitionKind) String() string {
	if s, ok := transitionNames[k]; ok {
		return s
	}
	return "unknown"
}

// Transition reports one change. StepID and Title are empty for run-level
// transitions.
type Transition struct {
	Kind   TransitionKind
	StepID domain.StepID
	Title  string
}
