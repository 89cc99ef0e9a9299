// Package watermark decides the lower time bound for incremental fetches.
package watermark

import (
	"context"
	"time"

	"github.com/franz/playlog/internal/util"
)

const (
	DefaultLookback = 72 * time.Hour
	DefaultBuffer   = 30 * time.Minute
)

// PlayStore is the part of the store the resolver reads from
type PlayStore interface {
	MaxPlayedAt(ctx context.Context) (time.Time, bool, error)
}

// Resolver computes the watermark for a run
type Resolver struct {
	Store    PlayStore
	Lookback time.Duration
	Buffer   time.Duration
	Now      func() time.Time
}

// New returns a resolver with the given windows; non-positive values fall
// back to the defaults.
func New(store PlayStore, lookback, buffer time.Duration) *Resolver {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if buffer < 0 {
		buffer = DefaultBuffer
	}
	return &Resolver{Store: store, Lookback: lookback, Buffer: buffer, Now: time.Now}
}

// Resolve returns MAX(played_at) minus the buffer. With no stored plays, or
// when the store cannot be read, it returns now minus the lookback. It never
// fails.
func (r *Resolver) Resolve(ctx context.Context) time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	fallback := now().UTC().Add(-r.lookback())

	if r.Store == nil {
		return fallback
	}

	latest, ok, err := r.Store.MaxPlayedAt(ctx)
	if err != nil {
		util.WarnLog("Could not read latest play, using %s lookback: %v", r.lookback(), err)
		return fallback
	}
	if !ok {
		util.InfoLog("No stored plays, using %s lookback", r.lookback())
		return fallback
	}

	wm := latest.UTC().Add(-r.Buffer)
	util.DebugLog("Watermark %s (latest play %s, buffer %s)", wm.Format(time.RFC3339), latest.UTC().Format(time.RFC3339), r.Buffer)
	return wm
}

func (r *Resolver) lookback() time.Duration {
	if r.Lookback <= 0 {
		return DefaultLookback
	}
	return r.Lookback
}
