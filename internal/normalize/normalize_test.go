package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/playlog/internal/spotify"
	"github.com/franz/playlog/internal/util"
)

func intPtr(n int) *int { return &n }

func play(playedAt, trackID, artistID, albumID string) spotify.PlayHistory {
	return spotify.PlayHistory{
		PlayedAt: playedAt,
		Track: &spotify.Track{
			ID:         trackID,
			Name:       "Track " + trackID,
			DurationMs: 210000,
			Popularity: intPtr(50),
			Artists: []spotify.Artist{
				{ID: artistID, Name: "Artist " + artistID},
				{ID: "guest", Name: "Guest"},
			},
			Album: &spotify.Album{
				ID:                   albumID,
				Name:                 "Album " + albumID,
				AlbumType:            "album",
				ReleaseDate:          "2021-03-04",
				ReleaseDatePrecision: "day",
			},
		},
	}
}

func TestFromPlayHistoryUsesFirstArtist(t *testing.T) {
	events, err := FromPlayHistory([]spotify.PlayHistory{play("2024-05-01T10:00:00.123Z", "t1", "ar1", "al1")})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "ar1", ev.ArtistID)
	assert.Equal(t, "Artist ar1", ev.ArtistName)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC), ev.PlayedAt)
	require.NotNil(t, ev.ReleaseDate)
	assert.Equal(t, "2021-03-04", ev.ReleaseDate.Format("2006-01-02"))
	assert.Equal(t, "day", ev.ReleaseDatePrecision)
}

func TestFromPlayHistoryFailsWholeBatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *spotify.PlayHistory)
		field  string
		tag    string
	}{
		{"missing track", func(p *spotify.PlayHistory) { p.Track = nil }, "track", "required"},
		{"no artists", func(p *spotify.PlayHistory) { p.Track.Artists = nil }, "track.artists", "required"},
		{"missing album", func(p *spotify.PlayHistory) { p.Track.Album = nil }, "track.album", "required"},
		{"missing popularity", func(p *spotify.PlayHistory) { p.Track.Popularity = nil }, "track.popularity", "required"},
		{"missing played_at", func(p *spotify.PlayHistory) { p.PlayedAt = "" }, "played_at", "required"},
		{"bad played_at", func(p *spotify.PlayHistory) { p.PlayedAt = "yesterday" }, "played_at", "timestamp"},
		{"missing track id", func(p *spotify.PlayHistory) { p.Track.ID = "" }, "track.id", "required"},
		{"missing artist id", func(p *spotify.PlayHistory) { p.Track.Artists[0].ID = "" }, "track.artists[0].id", "required"},
		{"missing album name", func(p *spotify.PlayHistory) { p.Track.Album.Name = "" }, "track.album.name", "required"},
		{"zero duration", func(p *spotify.PlayHistory) { p.Track.DurationMs = 0 }, "track.duration_ms", "gt"},
		{"popularity out of range", func(p *spotify.PlayHistory) { p.Track.Popularity = intPtr(101) }, "track.popularity", "max"},
		{"unknown album type", func(p *spotify.PlayHistory) { p.Track.Album.AlbumType = "mixtape" }, "track.album.album_type", "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := play("2024-05-01T10:00:00Z", "t1", "ar1", "al1")
			bad := play("2024-05-01T11:00:00Z", "t2", "ar2", "al2")
			tt.mutate(&bad)

			events, err := FromPlayHistory([]spotify.PlayHistory{good, bad})
			require.Error(t, err)
			assert.Nil(t, events, "no partial batch on failure")
			assert.True(t, errors.Is(err, util.ErrMalformedEvent))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 1, ve.Index)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.tag, ve.Tag)
		})
	}
}

func TestMalformedReleaseDateBecomesNull(t *testing.T) {
	p := play("2024-05-01T10:00:00Z", "t1", "ar1", "al1")
	p.Track.Album.ReleaseDate = "not-a-date"

	batch, err := Process([]spotify.PlayHistory{p}, time.Time{})
	require.NoError(t, err)
	require.Len(t, batch.Albums, 1)
	assert.Empty(t, batch.Albums[0].ReleaseDate)
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		value     string
		precision string
		want      string
	}{
		{"2020-05-17", "day", "2020-05-17"},
		{"2020-05", "month", "2020-05-01"},
		{"1999", "year", "1999-01-01"},
		{"1999", "", "1999-01-01"},
		{"2020-05-17", "year", "2020-05-17"},
		{"0000", "year", ""},
		{"", "day", ""},
		{"17/05/2020", "day", ""},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.precision, func(t *testing.T) {
			got := ParseReleaseDate(tt.value, tt.precision)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestNormalizeFiltersByWatermark(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	raw := []spotify.PlayHistory{
		play("2024-05-01T09:59:59Z", "t1", "ar1", "al1"),
		play("2024-05-01T10:00:00Z", "t2", "ar2", "al2"), // equal is not after
		play("2024-05-01T10:00:00.001Z", "t3", "ar3", "al3"),
	}

	batch, err := Process(raw, watermark)
	require.NoError(t, err)
	require.Len(t, batch.Plays, 1)
	assert.Equal(t, "t3", batch.Plays[0].TrackID)
	assert.Equal(t, 2, batch.Dropped)
	assert.Len(t, batch.Artists, 1)
	assert.Len(t, batch.Albums, 1)
	assert.Len(t, batch.Tracks, 1)
}

func TestNormalizeDeduplicates(t *testing.T) {
	// Same play delivered twice as separate objects, plus a replay of the track
	raw := []spotify.PlayHistory{
		play("2024-05-01T10:00:00Z", "t1", "ar1", "al1"),
		play("2024-05-01T10:00:00.000Z", "t1", "ar1", "al1"),
		play("2024-05-01T10:05:00Z", "t1", "ar1", "al1"),
		play("2024-05-01T10:10:00Z", "t2", "ar2", "al2"),
	}

	batch, err := Process(raw, time.Time{})
	require.NoError(t, err)

	assert.Len(t, batch.Plays, 3)
	assert.Equal(t, []ArtistRow{{"ar1", "Artist ar1"}, {"ar2", "Artist ar2"}}, batch.Artists)
	assert.Len(t, batch.Albums, 2)
	assert.Len(t, batch.Tracks, 2)
	assert.Equal(t, "t1", batch.Tracks[0].TrackID, "first-seen order is kept")
	assert.False(t, batch.Empty())
}

func TestNormalizeKeepsRowsThatDifferInNonKeyColumns(t *testing.T) {
	a := play("2024-05-01T10:00:00Z", "t1", "ar1", "al1")
	b := play("2024-05-01T10:05:00Z", "t1", "ar1", "al1")
	b.Track.Popularity = intPtr(51)

	batch, err := Process([]spotify.PlayHistory{a, b}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, batch.Tracks, 2, "de-duplication is by full row")
}

func TestNormalizeCanonicalizesNames(t *testing.T) {
	composed := play("2024-05-01T10:00:00Z", "t1", "ar1", "al1")
	composed.Track.Artists[0].Name = "Beyonc\u00e9"
	decomposed := play("2024-05-01T10:05:00Z", "t1", "ar1", "al1")
	decomposed.Track.Artists[0].Name = "Beyonce\u0301"

	batch, err := Process([]spotify.PlayHistory{composed, decomposed}, time.Time{})
	require.NoError(t, err)
	require.Len(t, batch.Artists, 1)
	assert.Equal(t, "Beyonc\u00e9", batch.Artists[0].ArtistName)
}

func TestNormalizeEmpty(t *testing.T) {
	batch, err := Process(nil, time.Now())
	require.NoError(t, err)
	assert.True(t, batch.Empty())
	assert.Empty(t, batch.Artists)
}
