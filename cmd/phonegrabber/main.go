// Package main provides the phonegrabber command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)

	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
