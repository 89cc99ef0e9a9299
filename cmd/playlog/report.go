package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a listening report from the store",
	Long: `Generate a listening report in Markdown or Excel format.

The report includes:
- Play, track, artist and album totals with listening time
- Top artists, tracks and albums
- Plays per day and by hour of day
- The outcome of recent ingestion runs

The report is saved to artifacts/reports/<timestamp>/report.md (or .xlsx)`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	// Report-specific flags
	reportCmd.Flags().Int("days", 30, "Number of days covered (0 for all time)")
	reportCmd.Flags().Int("top", 10, "Entries per ranking")
	reportCmd.Flags().String("out", "", "Output directory for report (default: <artifacts_dir>/reports/<timestamp>)")
	reportCmd.Flags().String("format", "md", "Report format (md or xlsx)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "md" && format != "xlsx" {
		return fmt.Errorf("%w: unknown report format %q", util.ErrInvalidConfig, format)
	}
	days, _ := cmd.Flags().GetInt("days")
	top, _ := cmd.Flags().GetInt("top")

	util.InfoLog("=== Generating Listening Report ===")
	util.InfoLog("Store: %s", storeLabel(cfg))

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	util.InfoLog("Analyzing plays...")
	listening, err := report.Generate(cmd.Context(), db, report.Options{Days: days, Top: top})
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	listening.DatabasePath = storeLabel(cfg)

	// Determine output path
	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(cfg.ArtifactsDir, "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "report."+format)

	util.InfoLog("Writing report to: %s", outputPath)
	if format == "xlsx" {
		err = report.WriteXLSXReport(listening, outputPath)
	} else {
		err = report.WriteMarkdownReport(listening, outputPath)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// Summary
	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Report saved to: %s", outputPath)
	util.InfoLog("")
	util.InfoLog("Summary (%s):", listening.Window())
	util.InfoLog("  Plays: %s", humanize.Comma(listening.Overview.Plays))
	util.InfoLog("  Listening time: %s", report.FormatListened(listening.Overview.ListenedMs))
	if len(listening.TopArtists) > 0 {
		util.InfoLog("  Top artist: %s (%d plays)", listening.TopArtists[0].Name, listening.TopArtists[0].Plays)
	}
	if len(listening.TopTracks) > 0 {
		util.InfoLog("  Top track: %s (%d plays)", listening.TopTracks[0].Name, listening.TopTracks[0].Plays)
	}

	return nil
}
