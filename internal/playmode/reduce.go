// Package playmode implements the recipe execution state machine. Steps
// become active once all their parents are done; timed steps carry a
// countdown that advances on Tick events. The reducer is pure: it never
// reads the clock and never mutates its inputs.
package playmode

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/graph"
)

// Option configures a Reducer.
type Option func(*Reducer)

// WithManualTimers makes activated timers wait for a StartTimer event
// instead of starting on activation.
func WithManualTimers() Option {
	return func(r *Reducer) {
		r.manualTimers = true
	}
}

// Reducer applies events to play states.
type Reducer struct {
	manualTimers bool
}

// NewReducer creates a reducer with the given options.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reduce applies ev with default options.
func Reduce(recipe *domain.Recipe, st domain.PlayState, ev Event) (domain.PlayState, []Transition, error) {
	return NewReducer().Reduce(recipe, st, ev)
}

// Reduce returns the state after ev and the transitions it caused. On error
// the input state is returned unchanged.
func (r *Reducer) Reduce(recipe *domain.Recipe, st domain.PlayState, ev Event) (domain.PlayState, []Transition, error) {
	if recipe == nil {
		return st, nil, domain.ErrNoRecipe
	}

	next := st.Clone()
	var out []Transition
	var err error

	switch e := ev.(type) {
	case Start:
		next, out = r.start(recipe, e)
	case Pause:
		out, err = pause(&next, e)
	case Resume:
		out, err = resume(&next, e)
	case Stop:
		next = domain.NewPlayState()
		out = []Transition{{Kind: PlayStopped}}
	case Complete:
		out, err = r.finish(recipe, &next, e.StepID, domain.ExecCompleted, e.Now)
	case Skip:
		out, err = r.finish(recipe, &next, e.StepID, domain.ExecSkipped, e.Now)
	case Tick:
		out = tick(recipe, &next, e)
	case StartTimer:
		out, err = startTimer(recipe, &next, e)
	default:
		err = fmt.Errorf("%w: unknown event %T", domain.ErrInvalidTransition, ev)
	}

	if err != nil {
		return st, nil, err
	}
	return next, out, nil
}

func (r *Reducer) start(recipe *domain.Recipe, e Start) (domain.PlayState, []Transition) {
	st := domain.NewPlayState()
	st.StartedAt = e.Now
	for id, s := range recipe.Steps {
		if s.Status.Live() {
			st.Steps[id] = domain.ExecWaiting
		}
	}

	if len(st.Steps) == 0 {
		st.Status = domain.PlayCompleted
		return st, []Transition{{Kind: PlayStarted}, {Kind: PlayCompleted}}
	}

	st.Status = domain.PlayPlaying
	out := []Transition{{Kind: PlayStarted}}
	for _, id := range graph.Roots(recipe.Steps, recipe.Relations) {
		out = append(out, r.activate(recipe, &st, id, e.Now))
	}
	return st, out
}

// activate turns a waiting step active and attaches its timer.
func (r *Reducer) activate(recipe *domain.Recipe, st *domain.PlayState, id domain.StepID, now time.Time) Transition {
	s := recipe.Steps[id]
	st.Steps[id] = domain.ExecActive
	st.ActivatedAt[id] = now
	if s.Timed() {
		t := &domain.StepTimer{Duration: s.Extension.DurationValue()}
		if !r.manualTimers {
			t.Armed = true
			t.StartTime = now
		}
		st.Timers[id] = t
	}
	return Transition{Kind: StepActivated, StepID: id, Title: s.Title}
}

func pause(st *domain.PlayState, e Pause) ([]Transition, error) {
	if st.Status != domain.PlayPlaying {
		return nil, fmt.Errorf("%w: pause while %s", domain.ErrInvalidTransition, st.Status)
	}
	for _, t := range st.Timers {
		if t.Armed && !t.Finished && !t.Paused() {
			t.PauseStart = e.Now
		}
	}
	st.Status = domain.PlayPaused
	st.PausedAt = e.Now
	return []Transition{{Kind: PlayPaused}}, nil
}

func resume(st *domain.PlayState, e Resume) ([]Transition, error) {
	if st.Status != domain.PlayPaused {
		return nil, fmt.Errorf("%w: resume while %s", domain.ErrInvalidTransition, st.Status)
	}
	for _, t := range st.Timers {
		if t.Paused() {
			if d := e.Now.Sub(t.PauseStart); d > 0 {
				t.AccumulatedPause += d
			}
			t.PauseStart = time.Time{}
		}
	}
	st.Status = domain.PlayPlaying
	st.PausedAt = time.Time{}
	return []Transition{{Kind: PlayResumed}}, nil
}

// finish completes or skips an active step and unlocks its children.
func (r *Reducer) finish(recipe *domain.Recipe, st *domain.PlayState, id domain.StepID, as domain.ExecStatus, now time.Time) ([]Transition, error) {
	if st.Status != domain.PlayPlaying {
		return nil, fmt.Errorf("%w: %s while %s", domain.ErrInvalidTransition, as, st.Status)
	}
	cur, ok := st.Steps[id]
	if !ok {
		return nil, domain.StepNotFound(id)
	}
	if cur != domain.ExecActive {
		return nil, fmt.Errorf("%w: step %s is %s", domain.ErrInvalidTransition, id, cur)
	}

	st.Steps[id] = as
	st.Completed[id] = true
	delete(st.Timers, id)

	kind := StepCompleted
	if as == domain.ExecSkipped {
		kind = StepSkipped
	}
	out := []Transition{{Kind: kind, StepID: id, Title: recipe.Steps[id].Title}}

	for _, child := range graph.Children(recipe.Steps, recipe.Relations, id) {
		if cur, ok := st.Steps[child]; !ok || cur != domain.ExecWaiting {
			continue
		}
		ready := true
		for _, p := range graph.Parents(recipe.Steps, recipe.Relations, child) {
			if !st.Completed[p] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, r.activate(recipe, st, child, now))
		}
	}

	if len(st.Completed) == len(st.Steps) {
		st.Status = domain.PlayCompleted
		out = append(out, Transition{Kind: PlayCompleted})
	}
	return out, nil
}

func tick(recipe *domain.Recipe, st *domain.PlayState, e Tick) []Transition {
	if st.Status != domain.PlayPlaying {
		return nil
	}
	var out []Transition
	for _, id := range SortedTimerIDs(st.Timers) {
		t := st.Timers[id]
		if !t.Armed || t.Finished || t.Paused() {
			continue
		}
		if TimeLeft(t, e.Now) == 0 {
			t.Finished = true
			out = append(out, Transition{Kind: TimerFinished, StepID: id, Title: recipe.Steps[id].Title})
		}
	}
	return out
}

func startTimer(recipe *domain.Recipe, st *domain.PlayState, e StartTimer) ([]Transition, error) {
	if st.Status != domain.PlayPlaying {
		return nil, fmt.Errorf("%w: start timer while %s", domain.ErrInvalidTransition, st.Status)
	}
	if cur, ok := st.Steps[e.StepID]; !ok || cur != domain.ExecActive {
		return nil, fmt.Errorf("%w: step %s is not active", domain.ErrInvalidTransition, e.StepID)
	}
	t, ok := st.Timers[e.StepID]
	if !ok || t.Armed {
		return nil, fmt.Errorf("%w: step %s has no pending timer", domain.ErrInvalidTransition, e.StepID)
	}
	t.Armed = true
	t.StartTime = e.Now
	return []Transition{{Kind: TimerStarted, StepID: e.StepID, Title: recipe.Steps[e.StepID].Title}}, nil
}
