package conversation

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	cyan  = "\033[36m"
)

// PrintFunc prints one formatted line. display.UI.Printf satisfies it.
type PrintFunc func(format string, a ...any)

// CLINotifier writes notifications to the terminal with ANSI formatting.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc
	plain   bool
}

// NotifierOption configures a CLINotifier.
type NotifierOption func(*CLINotifier)

// WithPlainText drops ANSI codes, for pipes and log files.
func WithPlainText() NotifierOption {
	return func(n *CLINotifier) { n.plain = true }
}

// NewCLINotifier creates a terminal notifier.
// If printFn is nil, lines go to stdout.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc, opts ...NotifierOption) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...any) {
			fmt.Printf(format+"\n", a...)
		}
	}
	n := &CLINotifier{log: log, printFn: printFn}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *CLINotifier) print(color, message string) {
	if n.plain {
		n.printFn("%s", message)
		return
	}
	n.printFn("%s%s%s%s", color, bold, message, reset)
}

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.print(cyan, message)
	return nil
}

// NotifyUrgent prints an urgent notification in bold red.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.print(red, message)
	return nil
}
