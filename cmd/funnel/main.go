package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	internalcmd "github.com/kbukum/funnel/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	if err := internalcmd.RootCmd().ExecuteContext(ctx); err != nil {
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}
