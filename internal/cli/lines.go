package cli

import (
	"fmt"
	"strings"
	"time"
)

// lines.go centralises every conversational string of the REPLs. Keep
// lines short and direct.

// ── Global ───────────────────────────────────────────────────────

func lineWelcomePlay(title string) string {
	return fmt.Sprintf("%s is loaded. Type 'start' when you're ready.", title)
}

func lineWelcomeEdit(title string) string {
	return fmt.Sprintf("Editing %s. Type 'show' to look around, 'help' for commands.", title)
}

func lineReadOnly(owner string) string {
	return fmt.Sprintf("This recipe belongs to %s. You can look, but not touch.", owner)
}

func lineBye() string {
	return "Bye."
}

func lineUnknown(input string) string {
	return fmt.Sprintf("Didn't catch that: %s. Type 'help' for commands.", input)
}

func lineWrongMode(cmd string, mode string) string {
	return fmt.Sprintf("'%s' isn't available in %s mode.", cmd, mode)
}

// ── Play mode ────────────────────────────────────────────────────

func lineStarted(title string, roots int) string {
	if roots == 1 {
		return fmt.Sprintf("Cooking %s. Here we go.", title)
	}
	return fmt.Sprintf("Cooking %s. %d things to get going at once.", title, roots)
}

func lineRestarted() string {
	return "Starting over from the top."
}

func lineNotPlaying() string {
	return "Not cooking right now. Type 'start' first."
}

func lineIsPaused() string {
	return "Paused. Type 'resume' first."
}

func lineNotPaused() string {
	return "Nothing is paused."
}

func linePaused() string {
	return "Paused. Timers are on hold. Type 'resume' when ready."
}

func lineResumed() string {
	return "Resumed."
}

func lineStopped() string {
	return "Stopped. Everything is reset."
}

func lineDone(title string) string {
	return fmt.Sprintf("%s is done. Enjoy.", title)
}

func lineNowActive(title string) string {
	return fmt.Sprintf("Now: %s", title)
}

func lineCompleted(title string) string {
	return fmt.Sprintf("%s done.", title)
}

func lineSkipped(title string) string {
	return fmt.Sprintf("Skipped %s.", title)
}

func lineWhichStep(verb string) string {
	return fmt.Sprintf("Several steps are on. Which one to %s? Use its number or name.", verb)
}

func lineNothingActive() string {
	return "Nothing is active right now."
}

func lineTimerStarted(title string, d time.Duration) string {
	return fmt.Sprintf("Timer started for %s: %s.", title, formatDuration(d))
}

func lineNoPendingTimers() string {
	return "No timers waiting to start."
}

func lineTimerReady(d time.Duration) string {
	return fmt.Sprintf("Timer ready: %s. Type 'timer' when you're ready to start it.", formatDuration(d))
}

func lineTimerSet(d time.Duration) string {
	return fmt.Sprintf("Timer: %s.", formatDuration(d))
}

// ── Edit mode ────────────────────────────────────────────────────

func lineMovedTo(title string) string {
	return fmt.Sprintf("On %s.", title)
}

func lineAdded(title string) string {
	return fmt.Sprintf("Added %s. It isn't connected yet; 'goto' it and connect it, or connect to it.", title)
}

func lineAppended(title, after string) string {
	return fmt.Sprintf("Added %s after %s.", title, after)
}

func lineConnected(parent, child string) string {
	return fmt.Sprintf("%s now comes before %s.", parent, child)
}

func lineDisconnected(parent, child string) string {
	return fmt.Sprintf("%s no longer comes before %s.", parent, child)
}

func lineDeleted(title string) string {
	return fmt.Sprintf("Deleted %s.", title)
}

func lineDetached(names []string) string {
	if len(names) == 1 {
		return fmt.Sprintf("%s no longer follows from the first step. Connect it again or it starts right away in play.", names[0])
	}
	return fmt.Sprintf("%s no longer follow from the first step. Connect them again or they start right away in play.", joinTitles(names))
}

func lineNamingSteps() string {
	return "Name a step by the start of its title, or by its number: 'goto' counts from the 'status' list, 'connect' from 'Can come next' in 'show'."
}

func lineUpdated(title string) string {
	return fmt.Sprintf("Updated %s.", title)
}

func lineTimerRemoved(title string) string {
	return fmt.Sprintf("%s is no longer timed.", title)
}

func lineTimerAdded(title string) string {
	return fmt.Sprintf("%s is now timed. Set its length with 'duration'.", title)
}

func lineSaved(creates, modifies, deletes int) string {
	return fmt.Sprintf("Saved: %d new, %d changed, %d removed.", creates, modifies, deletes)
}

func lineNothingToSave() string {
	return "Nothing to save."
}

func lineUnsavedQuit() string {
	return "You have unsaved changes. Type 'save', or 'quit' again to drop them."
}

// ── Helpers ──────────────────────────────────────────────────────

// joinTitles joins names as "a", "a and b" or "a, b and c".
func joinTitles(names []string) string {
	if len(names) <= 1 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
