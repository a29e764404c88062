package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrSnakeDoc/uptimer/internal/app"
	"github.com/MrSnakeDoc/uptimer/internal/config"
	"github.com/MrSnakeDoc/uptimer/internal/monitor"
)

// By default one cycle per invocation; cron (or a systemd timer) provides
// the schedule. -every keeps the process running instead.
func main() {
	every := flag.Duration("every", 0, "repeat the cycle at this interval instead of exiting (e.g. 1m)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, config.Load())
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "❌ FATAL ERROR: %v\n", err)
		os.Exit(monitor.ExitFatal)
	}

	code := monitor.ExitAllUp
	if *every > 0 {
		a.Loop(ctx, *every)
	} else {
		code = a.RunCycle(ctx)
	}
	a.Close()
	stop()
	os.Exit(code)
}
