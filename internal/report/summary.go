package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

// Source is the read side of the store used by reports
type Source interface {
	Overview(ctx context.Context, since time.Time) (*store.ListeningOverview, error)
	TopArtists(ctx context.Context, since time.Time, limit int) ([]store.NamedCount, error)
	TopTracks(ctx context.Context, since time.Time, limit int) ([]store.NamedCount, error)
	TopAlbums(ctx context.Context, since time.Time, limit int) ([]store.NamedCount, error)
	PlaysPerDay(ctx context.Context, since time.Time) ([]store.DayCount, error)
	PlaysByHour(ctx context.Context, since time.Time) ([24]int64, error)
	RecentRuns(ctx context.Context, limit int) ([]*store.RunSummary, error)
}

// Options select the window and size of a report
type Options struct {
	Days int // 0 covers all stored plays
	Top  int
	Runs int
	Now  func() time.Time
}

// ListeningReport holds listening statistics for one window
type ListeningReport struct {
	GeneratedAt  time.Time
	Since        time.Time
	Days         int
	DatabasePath string

	Overview   store.ListeningOverview
	TopArtists []store.NamedCount
	TopTracks  []store.NamedCount
	TopAlbums  []store.NamedCount
	PerDay     []store.DayCount
	ByHour     [24]int64
	Runs       []*store.RunSummary
}

// Generate gathers the report from src
func Generate(ctx context.Context, src Source, opts Options) (*ListeningReport, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Top <= 0 {
		opts.Top = 10
	}
	if opts.Runs <= 0 {
		opts.Runs = 10
	}

	r := &ListeningReport{
		GeneratedAt: opts.Now().UTC(),
		Days:        opts.Days,
	}
	if opts.Days > 0 {
		r.Since = r.GeneratedAt.AddDate(0, 0, -opts.Days)
	}

	overview, err := src.Overview(ctx, r.Since)
	if err != nil {
		return nil, err
	}
	r.Overview = *overview

	if r.TopArtists, err = src.TopArtists(ctx, r.Since, opts.Top); err != nil {
		return nil, err
	}
	if r.TopTracks, err = src.TopTracks(ctx, r.Since, opts.Top); err != nil {
		return nil, err
	}
	if r.TopAlbums, err = src.TopAlbums(ctx, r.Since, opts.Top); err != nil {
		return nil, err
	}
	if r.PerDay, err = src.PlaysPerDay(ctx, r.Since); err != nil {
		return nil, err
	}
	if r.ByHour, err = src.PlaysByHour(ctx, r.Since); err != nil {
		return nil, err
	}
	if r.Runs, err = src.RecentRuns(ctx, opts.Runs); err != nil {
		return nil, err
	}

	return r, nil
}

// Window describes the covered period in words
func (r *ListeningReport) Window() string {
	if r.Days <= 0 {
		return "all time"
	}
	if r.Days == 1 {
		return "last day"
	}
	return fmt.Sprintf("last %d days", r.Days)
}

// FormatListened renders a listening time such as "3h 12m"
func FormatListened(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	if h > 0 {
		return fmt.Sprintf("%sh %dm", humanize.Comma(h), m)
	}
	return fmt.Sprintf("%dm", m)
}

// WriteMarkdownReport writes the report as Markdown
func WriteMarkdownReport(report *ListeningReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Listening Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	md.WriteString(fmt.Sprintf("**Window:** %s\n\n", report.Window()))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}

	md.WriteString("---\n\n")

	o := report.Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Plays | %s |\n", humanize.Comma(o.Plays)))
	md.WriteString(fmt.Sprintf("| Distinct Tracks | %s |\n", humanize.Comma(o.Tracks)))
	md.WriteString(fmt.Sprintf("| Distinct Artists | %s |\n", humanize.Comma(o.Artists)))
	md.WriteString(fmt.Sprintf("| Distinct Albums | %s |\n", humanize.Comma(o.Albums)))
	md.WriteString(fmt.Sprintf("| Listening Time | %s |\n", FormatListened(o.ListenedMs)))
	if o.Plays > 0 {
		md.WriteString(fmt.Sprintf("| First Play | %s |\n", o.FirstPlay.Format("2006-01-02 15:04")))
		md.WriteString(fmt.Sprintf("| Last Play | %s (%s) |\n",
			o.LastPlay.Format("2006-01-02 15:04"),
			humanize.RelTime(o.LastPlay, report.GeneratedAt, "ago", "from now")))
	}
	md.WriteString("\n")

	if o.Plays == 0 {
		md.WriteString("*No plays in this window.*\n\n")
	}

	writeRanking(&md, "## 🎤 Top Artists", "Artist", "", report.TopArtists)
	writeRanking(&md, "## 🎵 Top Tracks", "Track", "Artist", report.TopTracks)
	writeRanking(&md, "## 💿 Top Albums", "Album", "Type", report.TopAlbums)

	if len(report.PerDay) > 0 {
		md.WriteString("## 📅 Plays per Day\n\n")
		md.WriteString("| Day | Plays |\n")
		md.WriteString("|-----|-------|\n")
		for _, d := range report.PerDay {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", d.Day, d.Plays))
		}
		md.WriteString("\n")
	}

	if o.Plays > 0 {
		md.WriteString("## 🕐 Plays by Hour (UTC)\n\n")
		md.WriteString("```\n")
		md.WriteString(hourChart(report.ByHour, 40))
		md.WriteString("```\n\n")
	}

	if len(report.Runs) > 0 {
		md.WriteString("## ⚙️ Recent Runs\n\n")
		md.WriteString("| Finished | Status | Rows | Elapsed | Message |\n")
		md.WriteString("|----------|--------|------|---------|---------|\n")
		for _, run := range report.Runs {
			elapsed := (time.Duration(run.ElapsedMs) * time.Millisecond).Round(time.Millisecond)
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
				run.FinishedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				run.Rows,
				elapsed,
				escapeCell(util.Truncate(run.Message, 80))))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by [playlog](https://github.com/franz/playlog)*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

func writeRanking(md *strings.Builder, title, nameHeader, detailHeader string, rows []store.NamedCount) {
	if len(rows) == 0 {
		return
	}

	md.WriteString(title + "\n\n")
	if detailHeader != "" {
		md.WriteString(fmt.Sprintf("| # | %s | %s | Plays | Time |\n", nameHeader, detailHeader))
		md.WriteString("|---|------|------|-------|------|\n")
	} else {
		md.WriteString(fmt.Sprintf("| # | %s | Plays | Time |\n", nameHeader))
		md.WriteString("|---|------|-------|------|\n")
	}

	for i, r := range rows {
		if detailHeader != "" {
			md.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %s |\n",
				i+1, escapeCell(r.Name), escapeCell(r.Detail), r.Plays, FormatListened(r.ListenedMs)))
		} else {
			md.WriteString(fmt.Sprintf("| %d | %s | %d | %s |\n",
				i+1, escapeCell(r.Name), r.Plays, FormatListened(r.ListenedMs)))
		}
	}
	md.WriteString("\n")
}

// hourChart draws one bar per hour scaled to width
func hourChart(byHour [24]int64, width int) string {
	var max int64
	for _, n := range byHour {
		if n > max {
			max = n
		}
	}

	var b strings.Builder
	for h, n := range byHour {
		bar := 0
		if max > 0 {
			bar = int(n * int64(width) / max)
		}
		if n > 0 && bar == 0 {
			bar = 1
		}
		b.WriteString(fmt.Sprintf("%02d │%s %d\n", h, strings.Repeat("█", bar), n))
	}
	return b.String()
}

// escapeCell keeps table cells on one line
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
