package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"calibration-engine/internal/cli"
)

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
