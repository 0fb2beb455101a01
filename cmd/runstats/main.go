// runstats prints recorded simulation runs from a recording database.
//
// Usage:
//
//	go run ./cmd/runstats [-config path] [-driver name] [-dsn dsn] [-run id] [-events]
//
// Without -run it lists every recorded run. With -run it shows that run
// alone, and -events adds its recorded lifecycle events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/karfly/ball-satisfaction/internal/config"
	"github.com/karfly/ball-satisfaction/internal/record"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config/ballsim.toml", "TOML config with the [record] section")
	driver := flag.String("driver", "", "override record driver (sqlite or postgres)")
	dsn := flag.String("dsn", "", "override record DSN")
	runID := flag.Int64("run", 0, "show a single run")
	events := flag.Bool("events", false, "with -run, also print recorded events")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *driver != "" {
		cfg.Record.Driver = *driver
	}
	if *dsn != "" {
		cfg.Record.DSN = *dsn
	}

	ctx := context.Background()
	store, err := record.Open(ctx, cfg.Record.Driver, cfg.Record.DSN, zap.NewNop())
	if err != nil {
		return fmt.Errorf("open recording store: %w", err)
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	p := message.NewPrinter(language.English)

	if *runID == 0 {
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		printRuns(p, runs)
		return nil
	}

	var found *record.RunSummary
	for i := range runs {
		if runs[i].ID == *runID {
			found = &runs[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("run %d not found", *runID)
	}
	printRuns(p, []record.RunSummary{*found})

	if *events {
		evs, err := store.RunEvents(ctx, *runID)
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		fmt.Println()
		printEvents(p, evs)
	}
	return nil
}

func printRuns(p *message.Printer, runs []record.RunSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPRESET\tSEED\tSTARTED\tDURATION\tSTEPS\tSPAWNED\tESCAPED\tKILLED\tLIVE")
	for _, r := range runs {
		dur := "running"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Preset, r.Seed,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			dur,
			p.Sprintf("%d", r.Steps),
			p.Sprintf("%d", r.Stats.Spawned),
			p.Sprintf("%d", r.Stats.Escaped),
			p.Sprintf("%d", r.Stats.Killed),
			p.Sprintf("%d", r.Stats.Live))
	}
	w.Flush()
}

func printEvents(p *message.Printer, events []record.Event) {
	if len(events) == 0 {
		fmt.Println("no recorded events")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tKIND\tBALL\tX\tY")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.1f\n",
			p.Sprintf("%d", e.Step), e.Kind, e.Ball, e.X, e.Y)
	}
	w.Flush()
}
