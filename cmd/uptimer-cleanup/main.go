package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/MrSnakeDoc/uptimer/internal/app"
	"github.com/MrSnakeDoc/uptimer/internal/config"
	"github.com/MrSnakeDoc/uptimer/internal/retention"
)

func main() {
	force := flag.Bool("force", false, "run even if cleanup already ran today")
	dryRun := flag.Bool("dry-run", false, "print what would be cleaned up without changing anything")
	flag.Parse()

	os.Exit(run(*force, *dryRun))
}

func run(force, dryRun bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config.Load())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ FATAL ERROR: %v\n", err)
		return 2
	}
	defer a.Close()

	report, err := a.Cleanup(ctx, force, dryRun)
	printReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ cleanup failed: %v\n", err)
		return 1
	}
	if report.Failed() > 0 {
		return 1
	}
	return 0
}

func printReport(r retention.Report) {
	if r.DryRun {
		if len(r.Planned) == 0 {
			fmt.Println("Nothing to clean up.")
			return
		}
		fmt.Println("Dry run, the following would be cleaned up:")
		for _, a := range r.Planned {
			fmt.Printf("  %-14s %s\n", a.Kind, a.Description)
		}
		return
	}
	if len(r.Outcomes) == 0 {
		return
	}
	for _, o := range r.Outcomes {
		status := "ok"
		if o.Err != nil {
			status = "FAILED: " + o.Err.Error()
		}
		fmt.Printf("  %-14s %s (%s)\n", o.Kind, o.Description, status)
	}
	fmt.Printf("Cleanup completed, %s freed, %d failed.\n", humanize.Bytes(uint64(r.Freed)), r.Failed())
}
