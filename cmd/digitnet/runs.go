package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/born-ml/digitnet/internal/history"
)

func (a *app) runs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	historyDB := fs.String("history", a.env.HistoryDB, "Sqlite run history database")
	limit := fs.Int("limit", 10, "Maximum number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *historyDB == "" {
		return errors.New("runs: no history database (set --history or DIGITNET_HISTORY_DB)")
	}
	if *limit <= 0 {
		return fmt.Errorf("runs: limit must be > 0, got %d", *limit)
	}

	db, err := history.Open(*historyDB)
	if err != nil {
		return err
	}
	runs, err := history.NewRecorder(db).Recent(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tEPOCHS\tVALID ACC\tLOCATION")
	for _, run := range runs {
		acc := "-"
		if n := len(run.Epochs); n > 0 {
			acc = fmt.Sprintf("%.2f%%", run.Epochs[n-1].ValidAccuracy*100)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.Id, run.Status, run.StartTime.Local().Format(time.DateTime), len(run.Epochs), acc, run.Location)
	}
	return w.Flush()
}
