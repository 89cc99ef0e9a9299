// Package metrics collects per-run pipeline metrics and pushes them to a
// Prometheus Pushgateway. A batch job does not live long enough to be
// scraped, so each run owns its registry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "playlog"

// Run holds the metrics of one pipeline run
type Run struct {
	reg *prometheus.Registry

	Runs        *prometheus.CounterVec
	RowsLoaded  *prometheus.CounterVec
	LoadErrors  *prometheus.CounterVec
	Fetched     prometheus.Counter
	Dropped     prometheus.Counter
	Duration    *prometheus.HistogramVec
	LastSuccess prometheus.Gauge
}

// New creates a fresh registry with all run metrics registered
func New() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		reg: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by final state",
			},
			[]string{"state"},
		),
		RowsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_affected_total",
				Help:      "Rows inserted or updated per table",
			},
			[]string{"table"},
		),
		LoadErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_failures_total",
				Help:      "Failed load steps per table",
			},
			[]string{"table"},
		),
		Fetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Raw play events returned by the source",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events at or before the watermark",
		}),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent per pipeline stage",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

// Registry exposes the registry, mainly for tests
func (r *Run) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveStage records how long a stage took
func (r *Run) ObserveStage(stage string, d time.Duration) {
	r.Duration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveLoad records the outcome of one load step
func (r *Run) ObserveLoad(table string, rows int64, failed bool) {
	if failed {
		r.LoadErrors.WithLabelValues(table).Inc()
		return
	}
	r.RowsLoaded.WithLabelValues(table).Add(float64(rows))
}

// Finish records the final state of the run
func (r *Run) Finish(state string, succeeded bool, at time.Time) {
	r.Runs.WithLabelValues(state).Inc()
	if succeeded {
		r.LastSuccess.Set(float64(at.Unix()))
	}
}

// Push sends the registry to a Pushgateway, replacing the job's group.
// An empty url is a no-op.
func (r *Run) Push(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(r.reg)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
