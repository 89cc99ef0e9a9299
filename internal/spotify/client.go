package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/franz/playlog/internal/util"
)

const (
	// BaseURL is the Web API base URL
	BaseURL = "https://api.spotify.com/v1"

	// UserAgent identifies this application to the Web API
	UserAgent = "playlog/1.0 (https://github.com/franz/playlog)"

	// MaxPageSize is the largest limit the recently-played endpoint accepts
	MaxPageSize = 50

	recentlyPlayedPath = "/me/player/recently-played"
)

// Options tunes the client; zero values fall back to defaults
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	MaxPages          int
	RequestsPerSecond float64
	Retry             *util.RetryConfig

	// OnPage is called after each fetched page with the running item count
	OnPage func(page, items int)
}

// Client fetches listening history from the Web API with rate limiting
// and retries of transient failures
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	retry    *util.RetryConfig
	maxPages int
	onPage   func(page, items int)
}

// NewClient creates a client that sends requests through httpClient, which
// is expected to add authorization (see Authenticator.HTTPClient)
func NewClient(httpClient *http.Client, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 20
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Retry == nil {
		opts.Retry = util.DefaultRetryConfig()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	rc := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		http:     rc,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		retry:    opts.Retry,
		maxPages: opts.MaxPages,
		onPage:   opts.OnPage,
	}
}

// RecentlyPlayed returns plays strictly after the given instant, following
// the after-cursor until the source runs dry or MaxPages is reached
func (c *Client) RecentlyPlayed(ctx context.Context, after time.Time, limit int) ([]PlayHistory, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	cursor := strconv.FormatInt(after.UnixMilli(), 10)
	var items []PlayHistory

	for page := 1; page <= c.maxPages; page++ {
		current := cursor
		p, err := util.RetryWithBackoff(ctx, c.retry, func() (*RecentlyPlayedPage, error) {
			return c.fetchPage(ctx, current, limit)
		}, "fetch recently played")
		if err != nil {
			return nil, err
		}

		items = append(items, p.Items...)
		util.DebugLog("Spotify: page %d returned %d items (after=%s)", page, len(p.Items), current)
		if c.onPage != nil {
			c.onPage(page, len(items))
		}

		if len(p.Items) == 0 || p.Next == "" || p.Cursors == nil {
			break
		}
		if p.Cursors.After == "" || p.Cursors.After == current {
			break
		}
		if page == c.maxPages {
			util.WarnLog("Spotify: stopped after %d pages; remaining plays are picked up by the next run", c.maxPages)
		}
		cursor = p.Cursors.After
	}

	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, after string, limit int) (*RecentlyPlayedPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit": strconv.Itoa(limit),
			"after": after,
		}).
		Get(recentlyPlayedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNoContent:
		return &RecentlyPlayedPage{}, nil
	case status == http.StatusOK:
		var page RecentlyPlayedPage
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", util.ErrSource, err)
		}
		return &page, nil
	case status == http.StatusTooManyRequests:
		wait := retryAfter(resp.Header().Get("Retry-After"))
		return nil, util.Retryable(fmt.Errorf("%w: rate limited (429), retry after %v", util.ErrSource, wait), wait)
	case status >= 500:
		return nil, util.Retryable(fmt.Errorf("%w: service unavailable (%d): %s", util.ErrSource, status, apiMessage(resp.Body())), 0)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %d: %s", util.ErrAuth, status, apiMessage(resp.Body()))
	default:
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", util.ErrSource, status, apiMessage(resp.Body()))
	}
}

// retryAfter parses a Retry-After header given in seconds
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func apiMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return util.Truncate(strings.TrimSpace(string(body)), 200)
}
