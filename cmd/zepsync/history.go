package zepsync

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/go-zepsync/pkg/journal"
	"github.com/soundprediction/go-zepsync/pkg/telemetry"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past cleanup runs from the deletion journal",
	Long: `Show past cleanup runs from the deletion journal.

Without --run every run is summarized, newest first. With --run the outcome of
each item of that run is listed. --errors lists recent errors recorded by the
telemetry database.`,
	RunE: runHistory,
}

var (
	historyRunID  string
	historyErrors int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "run ID to show in detail")
	historyCmd.Flags().IntVar(&historyErrors, "errors", 0, "also show this many recent errors from telemetry")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.journal == nil {
		return errors.New("the deletion journal is disabled; set journal.path to enable it")
	}

	if historyRunID != "" {
		entries, err := a.journal.Entries(historyRunID)
		if err != nil {
			return err
		}
		printEntries(out, entries)
	} else {
		runs, err := a.journal.Runs()
		if err != nil {
			return err
		}
		printRuns(out, runs)
	}

	if historyErrors > 0 {
		if a.errors == nil {
			return errors.New("error telemetry is disabled; set telemetry.duckdb_path to enable it")
		}
		records, err := telemetry.RecentErrors(cmd.Context(), a.errors, historyErrors)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRecent errors (%d):\n", len(records))
		for _, r := range records {
			fmt.Fprintf(out, "- [%s] %s (graph=%s run=%s)\n", r.Command, r.Message, r.GraphID, r.RunID)
		}
	}
	return nil
}

func printRuns(w io.Writer, runs []journal.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No cleanup runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  graph=%s kind=%s deleted=%d failed=%d\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.GraphID, r.Kind, r.Deleted, r.Failed)
	}
}

func printEntries(w io.Writer, entries []journal.Entry) {
	for i, e := range entries {
		line := fmt.Sprintf("%d. %s %s UUID=%s, Name=%s", i+1, e.Outcome, e.Kind, e.UUID, e.Name)
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}
