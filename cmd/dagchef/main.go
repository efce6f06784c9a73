// dagchef edits recipes shaped as step graphs and plays them with parallel
// timers.
//
// Usage:
//
//	dagchef [--config FILE] [-v|-q] <list|import|export|new|delete|edit|play> ...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hammamikhairi/dagchef/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
