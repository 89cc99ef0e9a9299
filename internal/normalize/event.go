// Package normalize turns raw play history into de-duplicated entity rows.
package normalize

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/franz/playlog/internal/spotify"
	"github.com/franz/playlog/internal/util"
)

// Event is one play with everything needed to project it into rows.
// The first artist of the track is its primary artist.
type Event struct {
	PlayedAt             time.Time  `json:"played_at" validate:"required"`
	TrackID              string     `json:"track.id" validate:"required"`
	TrackName            string     `json:"track.name" validate:"required"`
	DurationMs           int        `json:"track.duration_ms" validate:"gt=0"`
	Popularity           int        `json:"track.popularity" validate:"min=0,max=100"`
	ArtistID             string     `json:"track.artists[0].id" validate:"required"`
	ArtistName           string     `json:"track.artists[0].name" validate:"required"`
	AlbumID              string     `json:"track.album.id" validate:"required"`
	AlbumName            string     `json:"track.album.name" validate:"required"`
	AlbumType            string     `json:"track.album.album_type" validate:"required,oneof=album single compilation"`
	ReleaseDate          *time.Time `json:"track.album.release_date"`
	ReleaseDatePrecision string     `json:"track.album.release_date_precision" validate:"omitempty,oneof=day month year"`
}

// ValidationError reports the first problem found in a batch of raw events
type ValidationError struct {
	Index int    // position of the event in the fetched batch
	Field string // wire path of the offending field
	Tag   string // failed rule, e.g. "required"
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event %d: field %s failed %q", e.Index, e.Field, e.Tag)
}

// Unwrap lets callers match util.ErrMalformedEvent
func (e *ValidationError) Unwrap() error {
	return util.ErrMalformedEvent
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// FromPlayHistory converts and validates raw plays. The whole batch fails on
// the first malformed item; there is no partial recovery.
func FromPlayHistory(raw []spotify.PlayHistory) ([]Event, error) {
	events := make([]Event, 0, len(raw))
	for i, item := range raw {
		ev, err := fromItem(item)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Index = i
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func fromItem(item spotify.PlayHistory) (Event, error) {
	switch {
	case item.Track == nil:
		return Event{}, &ValidationError{Field: "track", Tag: "required"}
	case len(item.Track.Artists) == 0:
		return Event{}, &ValidationError{Field: "track.artists", Tag: "required"}
	case item.Track.Album == nil:
		return Event{}, &ValidationError{Field: "track.album", Tag: "required"}
	case item.Track.Popularity == nil:
		return Event{}, &ValidationError{Field: "track.popularity", Tag: "required"}
	}

	var playedAt time.Time
	if item.PlayedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.PlayedAt)
		if err != nil {
			return Event{}, &ValidationError{Field: "played_at", Tag: "timestamp"}
		}
		playedAt = t.UTC()
	}

	track := item.Track
	artist := track.Artists[0]
	album := track.Album
	precision := strings.ToLower(strings.TrimSpace(album.ReleaseDatePrecision))

	ev := Event{
		PlayedAt:             playedAt,
		TrackID:              track.ID,
		TrackName:            canonical(track.Name),
		DurationMs:           track.DurationMs,
		Popularity:           *track.Popularity,
		ArtistID:             artist.ID,
		ArtistName:           canonical(artist.Name),
		AlbumID:              album.ID,
		AlbumName:            canonical(album.Name),
		AlbumType:            strings.ToLower(strings.TrimSpace(album.AlbumType)),
		ReleaseDate:          ParseReleaseDate(album.ReleaseDate, precision),
		ReleaseDatePrecision: precision,
	}

	if err := validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Event{}, &ValidationError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
		}
		return Event{}, fmt.Errorf("%w: %v", util.ErrMalformedEvent, err)
	}
	return ev, nil
}

// canonical puts names in NFC so canonically equal spellings compare equal
func canonical(s string) string {
	return norm.NFC.String(s)
}

var releaseLayouts = map[string]string{
	"day":   "2006-01-02",
	"month": "2006-01",
	"year":  "2006",
}

// ParseReleaseDate reads a release date of the given precision. Unknown
// precisions try every layout. Unparsable values yield nil, never an error.
func ParseReleaseDate(value, precision string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	layouts := []string{"2006-01-02", "2006-01", "2006"}
	if l, ok := releaseLayouts[precision]; ok {
		layouts = append([]string{l}, layouts...)
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		// Year 0 is a placeholder in the catalogue, not a date
		if t.Year() < 1 {
			return nil
		}
		return &t
	}
	return nil
}
