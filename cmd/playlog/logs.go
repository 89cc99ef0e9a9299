package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent audit entries from etl_logs",
	Long: `Show the newest audit entries written by ingestion and analytics runs.

Use --run to show every step of a single run.`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("limit", 20, "Maximum number of entries to show")
	logsCmd.Flags().String("run", "", "Only show entries of this run ID")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListRunLogs(cmd.Context(), runID, limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	if len(entries) == 0 {
		util.InfoLog("No audit entries found")
		return nil
	}

	printRunLogs(os.Stdout, entries, util.TerminalWidth(), time.Now())
	return nil
}

// printRunLogs writes one line per entry, oldest first, fitted to width
func printRunLogs(w io.Writer, entries []*store.RunLogEntry, width int, now time.Time) {
	const fixed = 19 + 1 + 8 + 1 + 26 + 1 + 7 + 1 + 8 + 1

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		runID := e.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}

		line := fmt.Sprintf("%-19s %-8s %-26s %-7s %8s ",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			runID,
			util.Truncate(e.Table, 26),
			e.Status,
			humanize.Comma(e.RowCount))

		msg := e.Message
		if e.ElapsedMs > 0 {
			msg = fmt.Sprintf("%s (%s)", msg, time.Duration(e.ElapsedMs)*time.Millisecond)
		}
		if room := width - fixed; room > 10 {
			msg = util.Truncate(msg, room)
		}
		fmt.Fprintln(w, line+msg)
	}

	if oldest := entries[len(entries)-1]; !oldest.CreatedAt.IsZero() {
		fmt.Fprintf(w, "\n%d entries since %s\n", len(entries), humanize.RelTime(oldest.CreatedAt, now, "ago", "from now"))
	}
}
