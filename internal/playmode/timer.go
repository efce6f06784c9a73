package playmode

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

// Elapsed returns the whole seconds a timer has run at now, excluding
// pauses. An open pause freezes the value at the moment it began.
func Elapsed(t *domain.StepTimer, now time.Time) time.Duration {
	if t == nil || !t.Armed {
		return 0
	}
	ref := now
	if t.Paused() {
		ref = t.PauseStart
	}
	d := ref.Sub(t.StartTime) - t.AccumulatedPause
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// TimeLeft returns the remaining time at now, never negative. Unarmed
// timers report their full duration.
func TimeLeft(t *domain.StepTimer, now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	if t.Finished {
		return 0
	}
	return max(t.Duration-Elapsed(t, now), 0)
}

// FormatTime renders d as m:ss. Negative values render as 0:00.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
