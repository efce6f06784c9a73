package sound

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*RingingNotifier)(nil)

// ringTimeout bounds a single chime.
const ringTimeout = 5 * time.Second

// RingingNotifier wraps a text notifier and rings on urgent messages.
// Messages are printed immediately; the ring happens in the background and
// overlapping rings are dropped.
type RingingNotifier struct {
	text   domain.Notifier
	ringer Ringer
	log    *logger.Logger

	mu      sync.Mutex
	ringing bool
	wg      sync.WaitGroup
}

// NewRingingNotifier creates a notifier that prints and rings.
func NewRingingNotifier(text domain.Notifier, ringer Ringer, log *logger.Logger) *RingingNotifier {
	return &RingingNotifier{text: text, ringer: ringer, log: log}
}

// Notify prints the message.
func (n *RingingNotifier) Notify(ctx context.Context, message string) error {
	return n.text.Notify(ctx, message)
}

// NotifyUrgent prints the message and starts the chime.
func (n *RingingNotifier) NotifyUrgent(ctx context.Context, message string) error {
	if err := n.text.NotifyUrgent(ctx, message); err != nil {
		return err
	}

	n.mu.Lock()
	if n.ringing {
		n.mu.Unlock()
		n.log.Debug("bell already ringing, skipping")
		return nil
	}
	n.ringing = true
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ringTimeout)
		defer cancel()
		if err := n.ringer.Ring(rctx); err != nil {
			n.log.Warn("ringing bell: %v", err)
		}
		n.mu.Lock()
		n.ringing = false
		n.mu.Unlock()
	}()
	return nil
}

// Wait blocks until any ring in progress is done.
func (n *RingingNotifier) Wait() { n.wg.Wait() }

// TerminalBell rings by writing BEL to a terminal. It stands in for Player
// when no audio device is available.
type TerminalBell struct {
	w io.Writer
}

// NewTerminalBell returns a bell that writes to w.
func NewTerminalBell(w io.Writer) *TerminalBell { return &TerminalBell{w: w} }

// Ring writes a single BEL character.
func (b *TerminalBell) Ring(context.Context) error {
	_, err := io.WriteString(b.w, "\a")
	return err
}

// NewRinger opens the audio device and falls back to a terminal bell on w.
func NewRinger(w io.Writer, log *logger.Logger) Ringer {
	p, err := NewPlayer(log)
	if err != nil {
		log.Warn("audio unavailable, using terminal bell: %v", err)
		return NewTerminalBell(w)
	}
	return p
}
