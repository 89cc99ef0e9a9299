// Package load merges normalized rows into the store without duplicating
// existing keys.
package load

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/playlog/internal/normalize"
	"github.com/franz/playlog/internal/runlog"
	"github.com/franz/playlog/internal/store"
)

// Track columns refreshed when a track is seen again
var TrackUpdateColumns = []string{"track_name", "popularity"}

// Store is the merge surface of the relational store
type Store interface {
	InsertIgnore(ctx context.Context, t store.Table, rows [][]any) (int64, error)
	InsertOrUpdate(ctx context.Context, t store.Table, rows [][]any, update []string) (int64, error)
}

// Recorder receives one audit entry per load step
type Recorder interface {
	Log(ctx context.Context, e runlog.Entry)
}

// Outcome is the result of one load step
type Outcome struct {
	Table   string
	Status  runlog.Status
	Rows    int64
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the step hit an error
func (o Outcome) Failed() bool {
	return o.Status == runlog.StatusFailure
}

// Loader runs conflict-safe merges and records their outcome
type Loader struct {
	store Store
	log   Recorder

	// ContinueOnError keeps loading later entities after a failed step
	ContinueOnError bool
}

// New creates a loader. log may be nil.
func New(s Store, log Recorder) *Loader {
	return &Loader{store: s, log: log}
}

// InsertIgnore inserts rows, skipping keys that already exist
func (l *Loader) InsertIgnore(ctx context.Context, t store.Table, rows [][]any) Outcome {
	if len(rows) == 0 {
		return l.record(ctx, Outcome{Table: t.Name, Status: runlog.StatusSkip}, "No new data.")
	}

	start := time.Now()
	n, err := l.store.InsertIgnore(ctx, t, rows)
	return l.finish(ctx, t.Name, n, err, time.Since(start), "Insert completed.")
}

// InsertOrUpdate inserts rows and overwrites the update columns of existing
// keys. Only rows that actually change are counted.
func (l *Loader) InsertOrUpdate(ctx context.Context, t store.Table, rows [][]any, update []string) Outcome {
	if len(rows) == 0 {
		return l.record(ctx, Outcome{Table: t.Name, Status: runlog.StatusSkip}, "No new or updated data.")
	}

	start := time.Now()
	n, err := l.store.InsertOrUpdate(ctx, t, rows, update)
	return l.finish(ctx, t.Name, n, err, time.Since(start), "Upsert/update completed.")
}

func (l *Loader) finish(ctx context.Context, table string, n int64, err error, elapsed time.Duration, done string) Outcome {
	o := Outcome{Table: table, Elapsed: elapsed}
	if err != nil {
		o.Status = runlog.StatusFailure
		o.Err = err
		return l.record(ctx, o, err.Error())
	}

	o.Status = runlog.StatusSuccess
	o.Rows = n
	if n == 0 {
		return l.record(ctx, o, "No new data.")
	}
	return l.record(ctx, o, done)
}

func (l *Loader) record(ctx context.Context, o Outcome, msg string) Outcome {
	if l.log != nil {
		l.log.Log(ctx, runlog.Entry{
			Table:   o.Table,
			Status:  o.Status,
			Rows:    o.Rows,
			Message: msg,
			Elapsed: o.Elapsed,
		})
	}
	return o
}

// step is one entity of the fixed load order
type step struct {
	table  store.Table
	rows   [][]any
	update []string
}

// LoadBatch loads artists, albums, tracks and plays in that order so every
// foreign key target exists before its referrer. After a failed step the
// remaining steps are skipped unless ContinueOnError is set.
func (l *Loader) LoadBatch(ctx context.Context, b normalize.Batch) []Outcome {
	steps := []step{
		{table: store.ArtistsTable, rows: ArtistRows(b.Artists)},
		{table: store.AlbumsTable, rows: AlbumRows(b.Albums)},
		{table: store.TracksTable, rows: TrackRows(b.Tracks), update: TrackUpdateColumns},
		{table: store.PlaysTable, rows: PlayRows(b.Plays)},
	}

	outcomes := make([]Outcome, 0, len(steps))
	var failed string
	for _, s := range steps {
		if failed != "" && !l.ContinueOnError {
			reason := fmt.Sprintf("Skipped after %s failed.", failed)
			outcomes = append(outcomes, l.record(ctx, Outcome{Table: s.table.Name, Status: runlog.StatusSkip}, reason))
			continue
		}

		var o Outcome
		if s.update != nil {
			o = l.InsertOrUpdate(ctx, s.table, s.rows, s.update)
		} else {
			o = l.InsertIgnore(ctx, s.table, s.rows)
		}
		outcomes = append(outcomes, o)
		if o.Failed() && failed == "" {
			failed = o.Table
		}
	}
	return outcomes
}

// Summarize totals affected rows and returns the first failure, if any
func Summarize(outcomes []Outcome) (int64, error) {
	var total int64
	var firstErr error
	for _, o := range outcomes {
		total += o.Rows
		if o.Failed() && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", o.Table, o.Err)
		}
	}
	return total, firstErr
}

// ArtistRows converts artists to store rows
func ArtistRows(in []normalize.ArtistRow) [][]any {
	rows := make([][]any, 0, len(in))
	for _, a := range in {
		rows = append(rows, []any{a.ArtistID, a.ArtistName})
	}
	return rows
}

// AlbumRows converts albums to store rows; an unknown release date is NULL
func AlbumRows(in []normalize.AlbumRow) [][]any {
	rows := make([][]any, 0, len(in))
	for _, a := range in {
		var release any
		if a.ReleaseDate != "" {
			release = a.ReleaseDate
		}
		rows = append(rows, []any{a.AlbumID, a.AlbumName, a.AlbumType, release, a.ReleaseDatePrecision, a.ArtistID})
	}
	return rows
}

// TrackRows converts tracks to store rows
func TrackRows(in []normalize.TrackRow) [][]any {
	rows := make([][]any, 0, len(in))
	for _, t := range in {
		rows = append(rows, []any{t.TrackID, t.TrackName, t.AlbumID, t.DurationMs, t.Popularity})
	}
	return rows
}

// PlayRows converts plays to store rows
func PlayRows(in []normalize.PlayRow) [][]any {
	rows := make([][]any, 0, len(in))
	for _, p := range in {
		rows = append(rows, []any{p.PlayedAt, p.TrackID})
	}
	return rows
}
