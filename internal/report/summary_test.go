package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/franz/playlog/internal/store"
)

var generatedAt = time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	steps := []struct {
		table store.Table
		rows  [][]any
	}{
		{store.ArtistsTable, [][]any{{"ar1", "Artist One"}, {"ar2", "Pipe | Band"}}},
		{store.AlbumsTable, [][]any{
			{"al1", "Album One", "album", "2020-01-01", "day", "ar1"},
			{"al2", "Single Two", "single", nil, "", "ar2"},
		}},
		{store.TracksTable, [][]any{
			{"t1", "Song One", "al1", 240000, 50},
			{"t2", "Song Two", "al2", 180000, 30},
		}},
		{store.PlaysTable, [][]any{
			{time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC), "t1"},
			{time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), "t1"},
			{time.Date(2024, 5, 2, 21, 0, 0, 0, time.UTC), "t2"},
			{time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), "t2"},
		}},
	}
	for _, st := range steps {
		if _, err := s.InsertIgnore(ctx, st.table, st.rows); err != nil {
			t.Fatalf("Failed to seed %s: %v", st.table.Name, err)
		}
	}

	err = s.InsertRunLog(ctx, &store.RunLogEntry{
		RunID: "run-1", Table: "pipeline", Status: "SUCCESS", RowCount: 9, Message: "Run completed.", ElapsedMs: 1250,
	})
	if err != nil {
		t.Fatalf("Failed to seed run log: %v", err)
	}
	return s
}

func generate(t *testing.T, src Source, days int) *ListeningReport {
	t.Helper()
	r, err := Generate(context.Background(), src, Options{
		Days: days,
		Top:  5,
		Now:  func() time.Time { return generatedAt },
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return r
}

func TestGenerateWindow(t *testing.T) {
	s := seededStore(t)

	all := generate(t, s, 0)
	if all.Overview.Plays != 4 {
		t.Errorf("Expected 4 plays in total, got %d", all.Overview.Plays)
	}
	if all.Window() != "all time" {
		t.Errorf("Unexpected window %q", all.Window())
	}

	week := generate(t, s, 7)
	if week.Overview.Plays != 3 {
		t.Errorf("Expected 3 plays in the last week, got %d", week.Overview.Plays)
	}
	if !week.Since.Equal(generatedAt.AddDate(0, 0, -7)) {
		t.Errorf("Unexpected since %v", week.Since)
	}
	if len(week.TopTracks) != 2 || week.TopTracks[0].ID != "t1" || week.TopTracks[0].Plays != 2 {
		t.Errorf("Unexpected top tracks: %+v", week.TopTracks)
	}
	if week.ByHour[8] != 2 || week.ByHour[21] != 1 {
		t.Errorf("Unexpected hours: %v", week.ByHour)
	}
	if len(week.Runs) != 1 || week.Runs[0].RunID != "run-1" {
		t.Errorf("Unexpected runs: %+v", week.Runs)
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	s := seededStore(t)
	r := generate(t, s, 7)
	r.DatabasePath = "playlog.db"

	out := filepath.Join(t.TempDir(), "nested", "report.md")
	if err := WriteMarkdownReport(r, out); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	for _, want := range []string{
		"# Listening Report",
		"**Window:** last 7 days",
		"| Plays | 3 |",
		"| Listening Time | 11m |",
		"(15 hours ago)",
		"| 1 | Song One | Artist One | 2 | 8m |",
		`Pipe \| Band`,
		"| 2024-05-02 | 3 |",
		"08 │",
		"| SUCCESS | 9 | 1.25s | Run completed. |",
		"`playlog.db`",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Report missing %q", want)
		}
	}
}

func TestWriteMarkdownReportEmpty(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	r := generate(t, s, 30)
	out := filepath.Join(t.TempDir(), "report.md")
	if err := WriteMarkdownReport(r, out); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(out)
	md := string(content)
	if !strings.Contains(md, "No plays in this window") {
		t.Error("Empty report should say there are no plays")
	}
	if strings.Contains(md, "Top Tracks") || strings.Contains(md, "Plays by Hour") {
		t.Error("Empty report should omit ranking and hour sections")
	}
}

func TestWriteXLSXReport(t *testing.T) {
	s := seededStore(t)
	r := generate(t, s, 0)

	out := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteXLSXReport(r, out); err != nil {
		t.Fatalf("WriteXLSXReport failed: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	wantSheets := []string{"Overview", "Top Artists", "Top Tracks", "Top Albums", "Plays per Day", "Plays by Hour", "Recent Runs"}
	if got := f.GetSheetList(); strings.Join(got, ",") != strings.Join(wantSheets, ",") {
		t.Errorf("Expected sheets %v, got %v", wantSheets, got)
	}

	plays, err := f.GetCellValue("Overview", "B4")
	if err != nil || plays != "4" {
		t.Errorf("Expected 4 plays in B4, got %q (%v)", plays, err)
	}

	rows, err := f.GetRows("Top Tracks")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 tracks, got %d rows", len(rows))
	}
	if strings.Join(rows[1], ",") != "1,Song One,Artist One,2,8" {
		t.Errorf("Unexpected first track row %v", rows[1])
	}

	hours, _ := f.GetRows("Plays by Hour")
	if len(hours) != 25 {
		t.Errorf("Expected 24 hour rows plus header, got %d", len(hours))
	}
}

type failingSource struct {
	Source
}

func (failingSource) Overview(ctx context.Context, since time.Time) (*store.ListeningOverview, error) {
	return nil, errors.New("no such table: plays")
}

func TestGeneratePropagatesErrors(t *testing.T) {
	_, err := Generate(context.Background(), failingSource{}, Options{})
	if err == nil || !strings.Contains(err.Error(), "no such table") {
		t.Errorf("Expected store error, got %v", err)
	}
}

func TestFormatListened(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0m"},
		{59 * 1000, "0m"},
		{11 * 60 * 1000, "11m"},
		{(2*60 + 5) * 60 * 1000, "2h 5m"},
		{1234 * 60 * 60 * 1000, "1,234h 0m"},
	}
	for _, tt := range tests {
		if got := FormatListened(tt.ms); got != tt.want {
			t.Errorf("FormatListened(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestHourChart(t *testing.T) {
	var hours [24]int64
	hours[3] = 10
	hours[4] = 1
	chart := hourChart(hours, 10)
	lines := strings.Split(strings.TrimSuffix(chart, "\n"), "\n")
	if len(lines) != 24 {
		t.Fatalf("Expected 24 lines, got %d", len(lines))
	}
	if lines[3] != "03 │"+strings.Repeat("█", 10)+" 10" {
		t.Errorf("Unexpected peak line %q", lines[3])
	}
	if lines[4] != "04 │█ 1" {
		t.Errorf("Small counts should still draw a bar, got %q", lines[4])
	}
	if lines[0] != "00 │ 0" {
		t.Errorf("Unexpected empty line %q", lines[0])
	}
}
