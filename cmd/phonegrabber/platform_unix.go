//go:build !windows

package main

import (
	"os"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// enableANSI reports whether the terminal renders ANSI colors.
// Unix terminals do natively.
func enableANSI() bool {
	return true
}
