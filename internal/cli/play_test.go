package cli

import (
	"context"
	"testing"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/playmode"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

func setupPlay(t *testing.T, opts ...playmode.Option) (*playApp, *playmode.Session, *recorder) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	session := playmode.NewSession(wire.FromDocument(pastaDoc()), log, opts...)
	rec := &recorder{}
	app := newPlayApp(session, rec, log)
	start := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	app.clock = func() time.Time { return start }
	return app, session, rec
}

func TestPlayWelcome(t *testing.T) {
	app, _, rec := setupPlay(t)
	app.welcome(context.Background())
	lines := rec.take()
	requireLine(t, lines, "=== Pasta ===")
	requireLine(t, lines, "Steps: 5")
	requireLine(t, lines, lineWelcomePlay("Pasta"))
}

func TestPlayRun(t *testing.T) {
	app, session, rec := setupPlay(t)

	feed(t, app, "start")
	lines := rec.take()
	requireLine(t, lines, lineStarted("Pasta", 2))
	requireLine(t, lines, lineNowActive("Boil water"))
	requireLine(t, lines, "Big pot, lots of salt.")
	requireLine(t, lines, lineTimerSet(10*time.Minute))
	requireLine(t, lines, lineNowActive("Chop tomatoes"))

	feed(t, app, "done")
	lines = rec.take()
	requireLine(t, lines, lineWhichStep("complete"))
	requireLine(t, lines, "[1] Boil water (10m)")
	requireLine(t, lines, "[2] Chop tomatoes")

	feed(t, app, "done chop")
	lines = rec.take()
	requireLine(t, lines, lineCompleted("Chop tomatoes"))
	requireLine(t, lines, lineNowActive("Make sauce"))

	feed(t, app, "skip 1")
	lines = rec.take()
	requireLine(t, lines, lineSkipped("Boil water"))
	requireLine(t, lines, lineNowActive("Cook pasta"))
	requireLine(t, lines, "when it rings: Drain it")

	feed(t, app, "done cook", "done sauce")
	lines = rec.take()
	requireLine(t, lines, lineNowActive("Serve"))

	feed(t, app, "done")
	lines = rec.take()
	requireLine(t, lines, lineCompleted("Serve"))
	requireLine(t, lines, lineDone("Pasta"))
	if session.Status() != domain.PlayCompleted {
		t.Fatalf("expected a completed run, got %s", session.Status())
	}
}

func TestPlayPauseResume(t *testing.T) {
	app, session, rec := setupPlay(t)

	feed(t, app, "pause")
	requireLine(t, rec.take(), lineNotPlaying())

	feed(t, app, "start", "pause")
	requireLine(t, rec.take(), linePaused())
	if session.Status() != domain.PlayPaused {
		t.Fatalf("expected paused, got %s", session.Status())
	}

	feed(t, app, "done chop")
	requireLine(t, rec.take(), lineIsPaused())

	feed(t, app, "resume")
	requireLine(t, rec.take(), lineResumed())

	feed(t, app, "resume")
	requireLine(t, rec.take(), lineNotPaused())

	feed(t, app, "start")
	lines := rec.take()
	requireLine(t, lines, lineRestarted())
	requireLine(t, lines, lineStarted("Pasta", 2))
}

func TestPlayManualTimers(t *testing.T) {
	app, session, rec := setupPlay(t, playmode.WithManualTimers())

	feed(t, app, "start")
	requireLine(t, rec.take(), lineTimerReady(10*time.Minute))

	feed(t, app, "timer")
	requireLine(t, rec.take(), lineTimerStarted("Boil water", 10*time.Minute))
	_, st := session.Snapshot()
	if !st.Timers["boil"].Armed {
		t.Fatal("expected the boil timer to be armed")
	}

	feed(t, app, "timer")
	requireLine(t, rec.take(), lineNoPendingTimers())

	feed(t, app, "timer chop")
	requireLine(t, rec.take(), `No step matches "chop".`)
}

func TestPlayStatus(t *testing.T) {
	app, _, rec := setupPlay(t)

	feed(t, app, "status")
	requireLine(t, rec.take(), lineNotPlaying())

	feed(t, app, "start", "done chop")
	rec.take()
	feed(t, app, "status")
	lines := rec.take()
	requireLine(t, lines, "Pasta: playing")
	requireLine(t, lines, "Done:    1/5")
	requireLine(t, lines, "Finished: Chop tomatoes")
	requireLine(t, lines, "[1] Boil water -- 10:00 left")
	requireLine(t, lines, "[2] Make sauce")
	requireLine(t, lines, "Coming up: Cook pasta and Serve")
}

func TestPlayQuitStopsRun(t *testing.T) {
	app, session, rec := setupPlay(t)

	feed(t, app, "start", "connect serve", "quit", "status")
	lines := rec.take()
	requireLine(t, lines, lineWrongMode("connect", "play"))
	requireLine(t, lines, lineStopped())
	requireLine(t, lines, lineBye())
	requireNoLine(t, lines, "Pasta: idle")
	if session.Status() != domain.PlayIdle {
		t.Fatalf("expected quit to stop the run, got %s", session.Status())
	}
}
