package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/franz/playlog/internal/util"
)

const pageOne = `{
  "items": [
    {
      "played_at": "2024-05-01T10:00:00.000Z",
      "track": {
        "id": "t1", "name": "Song One", "duration_ms": 200000, "popularity": 55,
        "artists": [{"id": "ar1", "name": "Artist One"}, {"id": "ar9", "name": "Guest"}],
        "album": {"id": "al1", "name": "Album One", "album_type": "album",
                  "release_date": "2020-05-01", "release_date_precision": "day"}
      }
    }
  ],
  "next": "https://api.example/v1/me/player/recently-played?after=1714557600000",
  "cursors": {"after": "1714557600000", "before": "1714557600000"},
  "limit": 50
}`

const pageTwo = `{
  "items": [
    {
      "played_at": "2024-05-01T11:00:00.000Z",
      "track": {
        "id": "t2", "name": "Song Two", "duration_ms": 180000, "popularity": 40,
        "artists": [{"id": "ar2", "name": "Artist Two"}],
        "album": {"id": "al2", "name": "Album Two", "album_type": "single",
                  "release_date": "2019", "release_date_precision": "year"}
      }
    }
  ],
  "next": null,
  "cursors": {"after": "1714561200000", "before": "1714561200000"},
  "limit": 50
}`

func fastRetry() *util.RetryConfig {
	return &util.RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL + "/v1"
	if opts.Retry == nil {
		opts.Retry = fastRetry()
	}
	opts.RequestsPerSecond = 1000

	hc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}))
	return NewClient(hc, opts)
}

func TestRecentlyPlayedFollowsCursor(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var afters []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/me/player/recently-played", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		mu.Lock()
		afters = append(afters, r.URL.Query().Get("after"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "1714557600000" {
			fmt.Fprint(w, pageTwo)
			return
		}
		fmt.Fprint(w, pageOne)
	}, Options{})

	after := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	items, err := client.RecentlyPlayed(context.Background(), after, 50)
	require.NoError(t, err)

	require.Len(t, items, 2)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{fmt.Sprint(after.UnixMilli()), "1714557600000"}, afters)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	first := items[0]
	assert.Equal(t, "2024-05-01T10:00:00.000Z", first.PlayedAt)
	require.NotNil(t, first.Track)
	assert.Equal(t, "t1", first.Track.ID)
	require.NotNil(t, first.Track.Popularity)
	assert.Equal(t, 55, *first.Track.Popularity)
	require.Len(t, first.Track.Artists, 2)
	assert.Equal(t, "ar1", first.Track.Artists[0].ID)
	assert.Equal(t, "day", first.Track.Album.ReleaseDatePrecision)
	assert.Equal(t, "single", items[1].Track.Album.AlbumType)
}

func TestRecentlyPlayedStopsAtMaxPages(t *testing.T) {
	var calls int32
	var pages []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		// Every page points at another page
		fmt.Fprintf(w, `{"items":[{"played_at":"2024-05-01T10:00:0%dZ","track":{"id":"t1"}}],
			"next":"more","cursors":{"after":"%d"}}`, n, 1000+n)
	}, Options{MaxPages: 3, OnPage: func(page, items int) { pages = append(pages, page) }})

	items, err := client.RecentlyPlayed(context.Background(), time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestRecentlyPlayedEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[],"next":null,"cursors":null,"limit":50}`)
	}, Options{})

	items, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecentlyPlayedClampsLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.WriteHeader(http.StatusNoContent)
	}, Options{})

	_, err := client.RecentlyPlayed(context.Background(), time.Now(), 500)
	require.NoError(t, err)
}

func TestRecentlyPlayedRetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header string
	}{
		{"rate limited", http.StatusTooManyRequests, "0"},
		{"server error", http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) < 3 {
					if tt.header != "" {
						w.Header().Set("Retry-After", tt.header)
					}
					w.WriteHeader(tt.status)
					fmt.Fprint(w, `{"error":{"status":0,"message":"try later"}}`)
					return
				}
				fmt.Fprint(w, pageTwo)
			}, Options{})

			items, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
			require.NoError(t, err)
			assert.Len(t, items, 1)
			assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
		})
	}
}

func TestRecentlyPlayedGivesUpAfterRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Options{})

	_, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrSource)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRecentlyPlayedPermanentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, util.ErrSource},
		{"unauthorized", http.StatusUnauthorized, util.ErrAuth},
		{"forbidden", http.StatusForbidden, util.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"status":400,"message":"Invalid limit"}}`)
			}, Options{})

			_, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "Invalid limit")
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "permanent errors must not be retried")
		})
	}
}

func TestRecentlyPlayedMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
	}, Options{})

	_, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
	require.ErrorIs(t, err, util.ErrSource)
}

func TestRecentlyPlayedTimeout(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}, Options{
		Timeout: 50 * time.Millisecond,
		Retry:   &util.RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	})

	_, err := client.RecentlyPlayed(context.Background(), time.Now(), 50)
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "timeouts are retried")
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, time.Duration(0), retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
