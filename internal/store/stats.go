package store

import (
	"context"
	"fmt"
	"time"
)

// ListeningOverview summarizes plays since a given instant
type ListeningOverview struct {
	Plays      int64
	Tracks     int64
	Artists    int64
	Albums     int64
	ListenedMs int64
	FirstPlay  time.Time
	LastPlay   time.Time
}

// NamedCount is a ranked entity with its play count
type NamedCount struct {
	ID         string
	Name       string
	Detail     string
	Plays      int64
	ListenedMs int64
}

// DayCount is the number of plays on one UTC day
type DayCount struct {
	Day   string
	Plays int64
}

// Overview returns aggregate listening figures for plays at or after since
func (s *Store) Overview(ctx context.Context, since time.Time) (*ListeningOverview, error) {
	var o ListeningOverview
	var first, last any
	err := s.queryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT p.track_id),
		       COUNT(DISTINCT al.artist_id),
		       COUNT(DISTINCT t.album_id),
		       COALESCE(SUM(t.duration_ms), 0),
		       MIN(p.played_at),
		       MAX(p.played_at)
		FROM plays p
		JOIN tracks t ON t.track_id = p.track_id
		JOIN albums al ON al.album_id = t.album_id
		WHERE p.played_at >= ?
	`, s.dialect.Timestamp(since)).Scan(&o.Plays, &o.Tracks, &o.Artists, &o.Albums, &o.ListenedMs, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query overview: %w", err)
	}
	if o.FirstPlay, _, err = parseTime(first); err != nil {
		return nil, err
	}
	if o.LastPlay, _, err = parseTime(last); err != nil {
		return nil, err
	}
	return &o, nil
}

// TopArtists ranks primary artists by play count
func (s *Store) TopArtists(ctx context.Context, since time.Time, limit int) ([]NamedCount, error) {
	return s.ranked(ctx, `
		SELECT ar.artist_id, ar.artist_name, '', COUNT(*), COALESCE(SUM(t.duration_ms), 0)
		FROM plays p
		JOIN tracks t ON t.track_id = p.track_id
		JOIN albums al ON al.album_id = t.album_id
		JOIN artists ar ON ar.artist_id = al.artist_id
		WHERE p.played_at >= ?
		GROUP BY ar.artist_id, ar.artist_name
		ORDER BY COUNT(*) DESC, ar.artist_name
		LIMIT ?
	`, s.dialect.Timestamp(since), limit)
}

// TopTracks ranks tracks by play count; Detail carries the artist name
func (s *Store) TopTracks(ctx context.Context, since time.Time, limit int) ([]NamedCount, error) {
	return s.ranked(ctx, `
		SELECT t.track_id, t.track_name, ar.artist_name, COUNT(*), COALESCE(SUM(t.duration_ms), 0)
		FROM plays p
		JOIN tracks t ON t.track_id = p.track_id
		JOIN albums al ON al.album_id = t.album_id
		JOIN artists ar ON ar.artist_id = al.artist_id
		WHERE p.played_at >= ?
		GROUP BY t.track_id, t.track_name, ar.artist_name
		ORDER BY COUNT(*) DESC, t.track_name
		LIMIT ?
	`, s.dialect.Timestamp(since), limit)
}

// TopAlbums ranks albums by play count; Detail carries the album type
func (s *Store) TopAlbums(ctx context.Context, since time.Time, limit int) ([]NamedCount, error) {
	return s.ranked(ctx, `
		SELECT al.album_id, al.album_name, al.album_type, COUNT(*), COALESCE(SUM(t.duration_ms), 0)
		FROM plays p
		JOIN tracks t ON t.track_id = p.track_id
		JOIN albums al ON al.album_id = t.album_id
		WHERE p.played_at >= ?
		GROUP BY al.album_id, al.album_name, al.album_type
		ORDER BY COUNT(*) DESC, al.album_name
		LIMIT ?
	`, s.dialect.Timestamp(since), limit)
}

func (s *Store) ranked(ctx context.Context, q string, args ...any) ([]NamedCount, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NamedCount
	for rows.Next() {
		var n NamedCount
		if err := rows.Scan(&n.ID, &n.Name, &n.Detail, &n.Plays, &n.ListenedMs); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// PlaysPerDay returns the number of plays per UTC day, oldest first
func (s *Store) PlaysPerDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	day := s.dialect.Day("played_at")
	rows, err := s.query(ctx, fmt.Sprintf(`
		SELECT %s AS day, COUNT(*)
		FROM plays
		WHERE played_at >= ?
		GROUP BY day
		ORDER BY day
	`, day), s.dialect.Timestamp(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Plays); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PlaysByHour returns play counts indexed by UTC hour of day
func (s *Store) PlaysByHour(ctx context.Context, since time.Time) ([24]int64, error) {
	var hours [24]int64
	hour := s.dialect.Hour("played_at")
	rows, err := s.query(ctx, fmt.Sprintf(`
		SELECT %s AS hour, COUNT(*)
		FROM plays
		WHERE played_at >= ?
		GROUP BY hour
	`, hour), s.dialect.Timestamp(since))
	if err != nil {
		return hours, err
	}
	defer rows.Close()

	for rows.Next() {
		var h int
		var n int64
		if err := rows.Scan(&h, &n); err != nil {
			return hours, err
		}
		if h >= 0 && h < 24 {
			hours[h] = n
		}
	}
	return hours, rows.Err()
}
