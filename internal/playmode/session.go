package playmode

import (
	"slices"
	"sync"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

// Listener receives the transitions of every successful dispatch. It is
// called after the session lock is released, in dispatch order for a single
// caller.
type Listener func([]Transition)

// Session owns one play run over a fixed recipe snapshot. Dispatch is safe
// for concurrent use; each call reads the whole state, reduces it and
// replaces it under the lock.
type Session struct {
	mu        sync.Mutex
	reducer   *Reducer
	recipe    *domain.Recipe
	state     domain.PlayState
	listeners []Listener
	log       *logger.Logger
}

// NewSession creates an idle session for recipe.
func NewSession(recipe *domain.Recipe, log *logger.Logger, opts ...Option) *Session {
	return &Session{
		reducer: NewReducer(opts...),
		recipe:  recipe,
		state:   domain.NewPlayState(),
		log:     log,
	}
}

// Listen registers fn for future transitions.
func (s *Session) Listen(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Dispatch applies ev.
func (s *Session) Dispatch(ev Event) ([]Transition, error) {
	s.mu.Lock()
	next, out, err := s.reducer.Reduce(s.recipe, s.state, ev)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug("play event %T rejected: %v", ev, err)
		return nil, err
	}
	s.state = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, tr := range out {
		if tr.StepID != "" {
			s.log.Debug("%s: %s (%s)", tr.Kind, tr.Title, tr.StepID)
		} else {
			s.log.Info("%s", tr.Kind)
		}
	}
	if len(out) > 0 {
		for _, fn := range listeners {
			fn(out)
		}
	}
	return out, nil
}

// Snapshot returns the recipe and a deep copy of the current state.
func (s *Session) Snapshot() (*domain.Recipe, domain.PlayState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipe, s.state.Clone()
}

// Status returns the current run status.
func (s *Session) Status() domain.PlayStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// SortedTimerIDs returns the keys of timers in ascending order.
func SortedTimerIDs(timers map[domain.StepID]*domain.StepTimer) []domain.StepID {
	ids := make([]domain.StepID, 0, len(timers))
	for id := range timers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
