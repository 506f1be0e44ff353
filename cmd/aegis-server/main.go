package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldwatch/aegis/internal/app"
	"github.com/fieldwatch/aegis/internal/config"
)

const (
	exitOK            = 0
	exitConfigError   = 1
	exitStoreFailure  = 2
	exitSignalShutdown = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "aegis-server: config: %v\n", err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aegis-server: startup: %v\n", err)
		return exitStoreFailure
	}
	defer a.Stop()

	if err := a.Run(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return exitSignalShutdown
		}
		fmt.Fprintf(os.Stderr, "aegis-server: %v\n", err)
		return exitStoreFailure
	}
	if ctx.Err() != nil {
		return exitSignalShutdown
	}
	return exitOK
}
