package normalize

import (
	"time"

	"github.com/franz/playlog/internal/spotify"
)

// ArtistRow is one artists row
type ArtistRow struct {
	ArtistID   string
	ArtistName string
}

// AlbumRow is one albums row; ReleaseDate is YYYY-MM-DD or empty when unknown
type AlbumRow struct {
	AlbumID              string
	AlbumName            string
	AlbumType            string
	ReleaseDate          string
	ReleaseDatePrecision string
	ArtistID             string
}

// TrackRow is one tracks row
type TrackRow struct {
	TrackID    string
	TrackName  string
	AlbumID    string
	DurationMs int
	Popularity int
}

// PlayRow is one plays row
type PlayRow struct {
	PlayedAt time.Time
	TrackID  string
}

// Batch holds the four projections of one run, each free of duplicate rows
type Batch struct {
	Artists []ArtistRow
	Albums  []AlbumRow
	Tracks  []TrackRow
	Plays   []PlayRow

	// Dropped counts events at or before the watermark
	Dropped int
}

// Empty reports whether the batch carries no plays at all
func (b Batch) Empty() bool {
	return len(b.Plays) == 0
}

// Normalize keeps events strictly after watermark and projects them into
// rows. Each projection is de-duplicated by full-row equality, keeping the
// first occurrence in input order.
func Normalize(events []Event, watermark time.Time) Batch {
	var b Batch
	artists := newUniq[ArtistRow]()
	albums := newUniq[AlbumRow]()
	tracks := newUniq[TrackRow]()
	plays := newUniq[playKey]()

	for _, ev := range events {
		if !ev.PlayedAt.After(watermark) {
			b.Dropped++
			continue
		}

		if a := (ArtistRow{ev.ArtistID, ev.ArtistName}); artists.add(a) {
			b.Artists = append(b.Artists, a)
		}

		album := AlbumRow{
			AlbumID:              ev.AlbumID,
			AlbumName:            ev.AlbumName,
			AlbumType:            ev.AlbumType,
			ReleaseDatePrecision: ev.ReleaseDatePrecision,
			ArtistID:             ev.ArtistID,
		}
		if ev.ReleaseDate != nil {
			album.ReleaseDate = ev.ReleaseDate.Format("2006-01-02")
		}
		if albums.add(album) {
			b.Albums = append(b.Albums, album)
		}

		if t := (TrackRow{ev.TrackID, ev.TrackName, ev.AlbumID, ev.DurationMs, ev.Popularity}); tracks.add(t) {
			b.Tracks = append(b.Tracks, t)
		}

		playedAt := ev.PlayedAt.UTC()
		if plays.add(playKey{playedAt.UnixNano(), ev.TrackID}) {
			b.Plays = append(b.Plays, PlayRow{PlayedAt: playedAt, TrackID: ev.TrackID})
		}
	}

	return b
}

// Process validates raw plays and normalizes them against watermark
func Process(raw []spotify.PlayHistory, watermark time.Time) (Batch, error) {
	events, err := FromPlayHistory(raw)
	if err != nil {
		return Batch{}, err
	}
	return Normalize(events, watermark), nil
}

// playKey compares instants by value, independent of location
type playKey struct {
	nanos   int64
	trackID string
}

type uniq[T comparable] map[T]struct{}

func newUniq[T comparable]() uniq[T] {
	return make(uniq[T])
}

// add reports whether v was seen for the first time
func (u uniq[T]) add(v T) bool {
	if _, ok := u[v]; ok {
		return false
	}
	u[v] = struct{}{}
	return true
}
