package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andy/timeledger/internal/app"
	"github.com/andy/timeledger/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	// Avoid initializing the full app (which may prompt) for help and config
	if cli.NeedsApp(os.Args[1:]) {
		a, err := app.New(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
			return 1
		}
		defer a.Close()
		cli.SetApp(a)
	}

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
