// File: cmd/tabpilot/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvoss9k/tabpilot/cmd"
	"github.com/mvoss9k/tabpilot/internal/observability"
)

func main() {
	// Interrupts cancel the run context so an in-flight step can finish and
	// the terminal run record still gets printed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
