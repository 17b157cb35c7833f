// itemkeeper serves an owner-scoped item API behind signed bearer tokens.
//
// Usage:
//
//	itemkeeper [serve] [--config path]
//	itemkeeper migrate up|down|status
//	itemkeeper hash-password [password]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Cancelled on Ctrl+C or SIGTERM; every command shuts down from it.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
