package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/playlog/internal/config"
	"github.com/franz/playlog/internal/metrics"
	"github.com/franz/playlog/internal/pipeline"
	"github.com/franz/playlog/internal/runlog"
	"github.com/franz/playlog/internal/spotify"
	"github.com/franz/playlog/internal/util"
)

const pushTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch recently played tracks and merge them into the store",
	Long: `Run one incremental ingestion.

The run:
- Refreshes the access token
- Resolves the watermark (newest stored play minus the buffer, or now minus the lookback)
- Fetches every play after the watermark
- Normalizes plays into artists, albums, tracks and plays
- Loads them in dependency order with conflict-safe merges
- Writes an audit row per step to etl_logs

Runs are safe to repeat: re-running with no new plays changes nothing.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Run-specific flags
	runCmd.Flags().Int("lookback-hours", 72, "Window fetched when the store holds no plays")
	runCmd.Flags().Int("buffer-minutes", 30, "Overlap subtracted from the newest stored play")
	runCmd.Flags().Bool("continue-on-error", false, "Keep loading remaining tables after a failed step")
	runCmd.Flags().Bool("no-events", false, "Do not write the JSONL event file")

	viper.BindPFlag("pipeline.lookback_hours", runCmd.Flags().Lookup("lookback-hours"))
	viper.BindPFlag("pipeline.buffer_minutes", runCmd.Flags().Lookup("buffer-minutes"))
	viper.BindPFlag("pipeline.continue_on_error", runCmd.Flags().Lookup("continue-on-error"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.InfoLog("=== playlog run ===")
	util.InfoLog("Store: %s (%s)", storeLabel(cfg), cfg.Store.Driver)

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := runlog.NewRunID()
	var events *runlog.EventFile
	if noEvents, _ := cmd.Flags().GetBool("no-events"); !noEvents {
		events, err = runlog.NewEventFile(filepath.Join(cfg.ArtifactsDir, "events"), runID, runlog.LevelInfo)
		if err != nil {
			util.WarnLog("Event file disabled: %v", err)
			events = nil
		}
	}
	log := runlog.New(runID, db, events)
	defer log.Close()

	progress := pipeline.NewFetchProgress(util.ShowProgress())
	source, err := spotify.NewSource(ctx, spotify.Credentials{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		TokenURL:     cfg.Spotify.TokenURL,
	}, spotify.NewTokenStore(db, cfg.Spotify.Account), spotify.Options{
		BaseURL:           cfg.Spotify.APIBaseURL,
		Timeout:           cfg.Spotify.Timeout,
		MaxPages:          cfg.Spotify.MaxPages,
		RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
		Retry:             retryConfig(cfg),
		OnPage:            progress.OnPage,
	})
	var src pipeline.Source = source
	if err != nil {
		src = unavailableSource{err: err}
	}

	m := metrics.New()
	p := pipeline.New(src, db, log, pipeline.Options{
		Lookback:        cfg.Lookback(),
		Buffer:          cfg.Buffer(),
		PageSize:        cfg.Spotify.PageSize,
		ContinueOnError: cfg.Pipeline.ContinueOnError,
		Progress:        progress,
		Metrics:         m,
	})

	out, runErr := p.Run(ctx)
	pushMetrics(m, cfg)
	printRunSummary(out, log)

	return runErr
}

// unavailableSource stands in for a source that could not be built, so the
// pipeline records the failure like any other authentication error
type unavailableSource struct {
	err error
}

func (s unavailableSource) Authenticate(ctx context.Context) error {
	return s.err
}

func (s unavailableSource) RecentlyPlayed(ctx context.Context, after time.Time, limit int) ([]spotify.PlayHistory, error) {
	return nil, s.err
}

func pushMetrics(m *metrics.Run, cfg config.Config) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, cfg.Spotify.Account); err != nil {
		util.WarnLog("%v", err)
		return
	}
	util.DebugLog("Pushed metrics to %s", cfg.Metrics.PushgatewayURL)
}

func printRunSummary(out *pipeline.Outcome, log *runlog.Logger) {
	if out == nil {
		return
	}

	util.InfoLog("")
	util.InfoLog("=== Run Summary ===")
	util.InfoLog("Run ID:    %s", out.RunID)
	util.InfoLog("State:     %s", out.State)
	if !out.Watermark.IsZero() {
		util.InfoLog("Watermark: %s", out.Watermark.Format(time.RFC3339))
	}
	util.InfoLog("Fetched:   %s plays", humanize.Comma(int64(out.Fetched)))
	if out.Dropped > 0 {
		util.InfoLog("Skipped:   %s plays at or before the watermark", humanize.Comma(int64(out.Dropped)))
	}
	for _, o := range out.Loads {
		line := fmt.Sprintf("  %-8s %-7s %s rows", o.Table, o.Status, humanize.Comma(o.Rows))
		if o.Failed() {
			util.ErrorLog("%s: %v", line, o.Err)
		} else {
			util.InfoLog("%s", line)
		}
	}
	util.InfoLog("Elapsed:   %s", out.Elapsed.Round(time.Millisecond))
	if path := log.EventPath(); path != "" {
		util.InfoLog("Events:    %s", path)
	}

	switch out.State {
	case pipeline.StateDone:
		util.SuccessLog("Run completed: %s rows affected", humanize.Comma(out.Rows))
	case pipeline.StateNoNewData:
		util.SuccessLog("No new tracks found")
	}
}
