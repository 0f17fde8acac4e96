package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// handleSignals cancels the context on SIGINT or SIGTERM.
func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	cancel()
}
