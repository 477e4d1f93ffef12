// cmd/fieldstack/main.go
//
// This is the entry point for the Fieldstack CLI. Every command works on the
// project in the current directory (or --dir): it reads .fieldstack/config.yaml,
// scans the modules directory and reports on or serves what it finds.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
