package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecairns22/seqkernel/cmd/seqkernel/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
