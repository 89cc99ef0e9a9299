package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MaxPlayedAt returns the newest stored play instant. ok is false when no
// plays are stored.
func (s *Store) MaxPlayedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var raw any
	if err := s.queryRow(ctx, "SELECT MAX(played_at) FROM plays").Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest play: %w", err)
	}
	return parseTime(raw)
}

// TableCounts holds the number of rows in each entity table
type TableCounts struct {
	Artists int64
	Albums  int64
	Tracks  int64
	Plays   int64
}

// Counts returns row counts for the four entity tables
func (s *Store) Counts(ctx context.Context) (*TableCounts, error) {
	var c TableCounts
	err := s.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM albums),
			(SELECT COUNT(*) FROM tracks),
			(SELECT COUNT(*) FROM plays)
	`).Scan(&c.Artists, &c.Albums, &c.Tracks, &c.Plays)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return &c, nil
}

// Artist is a stored artist row
type Artist struct {
	ID   string
	Name string
}

// GetArtist returns one artist, or nil when it does not exist
func (s *Store) GetArtist(ctx context.Context, id string) (*Artist, error) {
	var a Artist
	err := s.queryRow(ctx, "SELECT artist_id, artist_name FROM artists WHERE artist_id = ?", id).
		Scan(&a.ID, &a.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return &a, err
}

// Track is a stored track row
type Track struct {
	ID         string
	Name       string
	AlbumID    string
	DurationMs int64
	Popularity int
}

// GetTrack returns one track, or nil when it does not exist
func (s *Store) GetTrack(ctx context.Context, id string) (*Track, error) {
	var t Track
	err := s.queryRow(ctx, `
		SELECT track_id, track_name, album_id, duration_ms, popularity
		FROM tracks
		WHERE track_id = ?
	`, id).Scan(&t.ID, &t.Name, &t.AlbumID, &t.DurationMs, &t.Popularity)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return &t, err
}
