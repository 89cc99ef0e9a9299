package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/playlog/internal/runlog"
	"github.com/franz/playlog/internal/util"
)

const factTable = "fact_played_track_details"

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Rebuild the denormalized play details table",
	Long: `Rebuild fact_played_track_details from the stored plays.

Each play is joined to its track, album and primary artist. The table is
replaced in a single transaction; the rebuild is audited in etl_logs like
an ingestion run.`,
	RunE: runAnalytics,
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
}

// factBuilder is the store side of the analytics rebuild
type factBuilder interface {
	RebuildPlayedTrackDetails(ctx context.Context) (int64, error)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	util.InfoLog("=== Rebuilding %s ===", factTable)
	log := runlog.New("", db, nil)
	rows, err := rebuildFacts(cmd.Context(), db, log)
	if err != nil {
		return err
	}
	util.SuccessLog("Rebuilt %s with %s rows", factTable, humanize.Comma(rows))
	return nil
}

// rebuildFacts runs the rebuild between START and SUCCESS/FAILURE audit rows
func rebuildFacts(ctx context.Context, b factBuilder, log *runlog.Logger) (int64, error) {
	start := time.Now()
	log.Log(ctx, runlog.Entry{Table: factTable, Status: runlog.StatusStart, Message: "Rebuild started."})

	rows, err := b.RebuildPlayedTrackDetails(ctx)
	if err != nil {
		log.Log(context.WithoutCancel(ctx), runlog.Entry{
			Table:   factTable,
			Status:  runlog.StatusFailure,
			Message: err.Error(),
			Elapsed: time.Since(start),
		})
		return 0, fmt.Errorf("failed to rebuild %s: %w", factTable, err)
	}

	log.Log(ctx, runlog.Entry{
		Table:   factTable,
		Status:  runlog.StatusSuccess,
		Rows:    rows,
		Message: "Rebuild completed.",
		Elapsed: time.Since(start),
	})
	return rows, nil
}
