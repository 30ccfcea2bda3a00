// Command bytehot-diag replays ByteHot event logs into diagnostics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rydnr/bytehot-observe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bytehot-diag: %v\n", err)
		stop()
		os.Exit(1)
	}
}
