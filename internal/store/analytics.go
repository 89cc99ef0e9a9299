package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RebuildPlayedTrackDetails replaces the contents of fact_played_track_details
// with plays joined to their track, album and primary artist. The swap happens
// in one transaction so readers never see a half-built table.
func (s *Store) RebuildPlayedTrackDetails(ctx context.Context) (int64, error) {
	if err := s.ReflectTable(ctx, "fact_played_track_details"); err != nil {
		return 0, err
	}

	var rows int64
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fact_played_track_details"); err != nil {
			return fmt.Errorf("failed to clear fact table: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO fact_played_track_details (
				played_at, track_id, track_name, duration_ms, popularity,
				album_id, album_name, album_type, release_date,
				artist_id, artist_name
			)
			SELECT p.played_at, t.track_id, t.track_name, t.duration_ms, t.popularity,
			       al.album_id, al.album_name, al.album_type, al.release_date,
			       ar.artist_id, ar.artist_name
			FROM plays p
			JOIN tracks t ON t.track_id = p.track_id
			JOIN albums al ON al.album_id = t.album_id
			JOIN artists ar ON ar.artist_id = al.artist_id
		`)
		if err != nil {
			return fmt.Errorf("failed to populate fact table: %w", err)
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}
