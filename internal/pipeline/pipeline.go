// Package pipeline sequences one incremental ingestion run: authenticate,
// resolve the watermark, fetch, normalize, load and audit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franz/playlog/internal/load"
	"github.com/franz/playlog/internal/metrics"
	"github.com/franz/playlog/internal/normalize"
	"github.com/franz/playlog/internal/runlog"
	"github.com/franz/playlog/internal/spotify"
	"github.com/franz/playlog/internal/util"
	"github.com/franz/playlog/internal/watermark"
)

// State of a run
type State string

const (
	StateInit              State = "INIT"
	StateAuthenticated     State = "AUTHENTICATED"
	StateWatermarkResolved State = "WATERMARK_RESOLVED"
	StateFetched           State = "FETCHED"
	StateNoNewData         State = "NO_NEW_DATA"
	StateNormalized        State = "NORMALIZED"
	StateLoaded            State = "LOADED"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// Source yields raw plays after authenticating
type Source interface {
	Authenticate(ctx context.Context) error
	RecentlyPlayed(ctx context.Context, after time.Time, limit int) ([]spotify.PlayHistory, error)
}

// Store is everything a run reads from or writes to
type Store interface {
	watermark.PlayStore
	load.Store
}

// Options tune a run
type Options struct {
	Lookback        time.Duration
	Buffer          time.Duration
	PageSize        int
	ContinueOnError bool
	Progress        *FetchProgress
	Metrics         *metrics.Run
	Now             func() time.Time
}

// Outcome summarizes a finished run
type Outcome struct {
	RunID     string
	State     State
	Watermark time.Time
	Fetched   int
	Dropped   int
	Loads     []load.Outcome
	Rows      int64
	Elapsed   time.Duration
}

// Pipeline runs the ingestion job
type Pipeline struct {
	source   Source
	log      *runlog.Logger
	resolver *watermark.Resolver
	loader   *load.Loader
	opts     Options
}

// New wires a pipeline. log carries the run id of this run.
func New(source Source, store Store, log *runlog.Logger, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize <= 0 {
		opts.PageSize = spotify.MaxPageSize
	}

	resolver := watermark.New(store, opts.Lookback, opts.Buffer)
	resolver.Now = opts.Now

	loader := load.New(store, log)
	loader.ContinueOnError = opts.ContinueOnError

	return &Pipeline{
		source:   source,
		log:      log,
		resolver: resolver,
		loader:   loader,
		opts:     opts,
	}
}

// Run executes one run. It returns a nil error for DONE and NO_NEW_DATA;
// any failure leaves the outcome in StateFailed and is returned.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	start := p.opts.Now()
	out := &Outcome{RunID: p.log.RunID(), State: StateInit}

	p.log.Log(ctx, runlog.Entry{Table: runlog.PipelineTable, Status: runlog.StatusStart, Message: "Run started."})

	stage := time.Now()
	if err := p.source.Authenticate(ctx); err != nil {
		return p.fail(ctx, out, start, "authenticate", err)
	}
	p.observe("authenticate", stage)
	out.State = StateAuthenticated

	out.Watermark = p.resolver.Resolve(ctx)
	out.State = StateWatermarkResolved
	util.InfoLog("Fetching plays after %s", out.Watermark.Format(time.RFC3339))

	stage = time.Now()
	raw, err := p.source.RecentlyPlayed(ctx, out.Watermark, p.opts.PageSize)
	p.opts.Progress.Finish()
	if err != nil {
		return p.fail(ctx, out, start, "fetch", err)
	}
	p.observe("fetch", stage)
	out.Fetched = len(raw)
	out.State = StateFetched
	if m := p.opts.Metrics; m != nil {
		m.Fetched.Add(float64(len(raw)))
	}

	if len(raw) == 0 {
		return p.noNewData(ctx, out, start)
	}

	stage = time.Now()
	batch, err := normalize.Process(raw, out.Watermark)
	if err != nil {
		return p.fail(ctx, out, start, "normalize", err)
	}
	p.observe("normalize", stage)
	out.Dropped = batch.Dropped
	out.State = StateNormalized
	if m := p.opts.Metrics; m != nil {
		m.Dropped.Add(float64(batch.Dropped))
	}
	util.DebugLog("Normalized %d plays, %d tracks, %d albums, %d artists (%d at or before watermark)",
		len(batch.Plays), len(batch.Tracks), len(batch.Albums), len(batch.Artists), batch.Dropped)

	if batch.Empty() {
		return p.noNewData(ctx, out, start)
	}

	stage = time.Now()
	out.Loads = p.loader.LoadBatch(ctx, batch)
	p.observe("load", stage)
	for _, o := range out.Loads {
		if m := p.opts.Metrics; m != nil {
			m.ObserveLoad(o.Table, o.Rows, o.Failed())
		}
	}
	out.State = StateLoaded

	rows, loadErr := load.Summarize(out.Loads)
	out.Rows = rows
	if loadErr != nil {
		return p.fail(ctx, out, start, "load", fmt.Errorf("%w: %v", util.ErrLoadFailed, loadErr))
	}

	out.State = StateDone
	out.Elapsed = p.opts.Now().Sub(start)
	p.log.Log(ctx, runlog.Entry{
		Table:   runlog.PipelineTable,
		Status:  runlog.StatusSuccess,
		Rows:    rows,
		Message: fmt.Sprintf("Run completed: %d plays fetched, %d rows affected.", out.Fetched, rows),
		Elapsed: out.Elapsed,
	})
	p.finish(out, true)
	return out, nil
}

func (p *Pipeline) noNewData(ctx context.Context, out *Outcome, start time.Time) (*Outcome, error) {
	out.State = StateNoNewData
	out.Elapsed = p.opts.Now().Sub(start)
	p.log.Log(ctx, runlog.Entry{
		Table:   runlog.PipelineTable,
		Status:  runlog.StatusSuccess,
		Message: "No new tracks found.",
		Elapsed: out.Elapsed,
	})
	p.finish(out, true)
	return out, nil
}

func (p *Pipeline) fail(ctx context.Context, out *Outcome, start time.Time, stage string, err error) (*Outcome, error) {
	if errors.Is(err, context.Canceled) {
		util.WarnLog("Run cancelled during %s", stage)
	}
	out.State = StateFailed
	out.Elapsed = p.opts.Now().Sub(start)
	// The audit row is still written when the run was cancelled
	p.log.Log(context.WithoutCancel(ctx), runlog.Entry{
		Table:   runlog.PipelineTable,
		Status:  runlog.StatusFailure,
		Rows:    out.Rows,
		Message: fmt.Sprintf("%s failed: %v", stage, err),
		Elapsed: out.Elapsed,
	})
	p.finish(out, false)
	return out, fmt.Errorf("%s: %w", stage, err)
}

func (p *Pipeline) observe(stage string, since time.Time) {
	if m := p.opts.Metrics; m != nil {
		m.ObserveStage(stage, time.Since(since))
	}
}

func (p *Pipeline) finish(out *Outcome, ok bool) {
	if m := p.opts.Metrics; m != nil {
		m.Finish(string(out.State), ok, p.opts.Now())
	}
}
