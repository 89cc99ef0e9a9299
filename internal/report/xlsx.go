package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/franz/playlog/internal/store"
)

const overviewSheet = "Overview"

// WriteXLSXReport writes the report as a workbook with one sheet per table
func WriteXLSXReport(report *ListeningReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	o := report.Overview
	overview := [][]any{
		{"Metric", "Value"},
		{"Generated", report.GeneratedAt.Format(time.RFC3339)},
		{"Window", report.Window()},
		{"Plays", o.Plays},
		{"Distinct Tracks", o.Tracks},
		{"Distinct Artists", o.Artists},
		{"Distinct Albums", o.Albums},
		{"Listening Minutes", o.ListenedMs / int64(time.Minute/time.Millisecond)},
	}
	if o.Plays > 0 {
		overview = append(overview,
			[]any{"First Play", o.FirstPlay.Format(time.RFC3339)},
			[]any{"Last Play", o.LastPlay.Format(time.RFC3339)},
		)
	}
	if err := writeSheet(f, overviewSheet, overview, headerStyle); err != nil {
		return err
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{"Top Artists", rankingRows([]any{"Rank", "Artist", "Plays", "Minutes"}, report.TopArtists, false)},
		{"Top Tracks", rankingRows([]any{"Rank", "Track", "Artist", "Plays", "Minutes"}, report.TopTracks, true)},
		{"Top Albums", rankingRows([]any{"Rank", "Album", "Type", "Plays", "Minutes"}, report.TopAlbums, true)},
		{"Plays per Day", dayRows(report)},
		{"Plays by Hour", hourRows(report)},
		{"Recent Runs", runRows(report)},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s.name, s.rows, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func rankingRows(header []any, ranked []store.NamedCount, withDetail bool) [][]any {
	rows := [][]any{header}
	for i, r := range ranked {
		row := []any{i + 1, r.Name}
		if withDetail {
			row = append(row, r.Detail)
		}
		row = append(row, r.Plays, r.ListenedMs/int64(time.Minute/time.Millisecond))
		rows = append(rows, row)
	}
	return rows
}

func dayRows(report *ListeningReport) [][]any {
	rows := [][]any{{"Day", "Plays"}}
	for _, d := range report.PerDay {
		rows = append(rows, []any{d.Day, d.Plays})
	}
	return rows
}

func hourRows(report *ListeningReport) [][]any {
	rows := [][]any{{"Hour (UTC)", "Plays"}}
	for h, n := range report.ByHour {
		rows = append(rows, []any{h, n})
	}
	return rows
}

func runRows(report *ListeningReport) [][]any {
	rows := [][]any{{"Run", "Finished", "Status", "Rows", "Elapsed ms", "Message"}}
	for _, r := range report.Runs {
		rows = append(rows, []any{r.RunID, r.FinishedAt.Format(time.RFC3339), r.Status, r.Rows, r.ElapsedMs, r.Message})
	}
	return rows
}
