// Package runlog records the outcome of every pipeline step in the audit
// table, and mirrors it to the operational log and an optional event file.
package runlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

// Status of an audit entry
type Status string

const (
	StatusStart   Status = "START"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusSkip    Status = "SKIP"
)

// PipelineTable marks entries that describe the whole run
const PipelineTable = "pipeline"

// Entry is one audit record before it is stamped with the run id
type Entry struct {
	Table   string
	Status  Status
	Rows    int64
	Message string
	Elapsed time.Duration
}

// Sink persists audit rows
type Sink interface {
	InsertRunLog(ctx context.Context, e *store.RunLogEntry) error
}

// Logger writes the audit trail of one run
type Logger struct {
	runID  string
	sink   Sink
	events *EventFile
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// New creates a logger for runID. sink and events may be nil.
func New(runID string, sink Sink, events *EventFile) *Logger {
	if runID == "" {
		runID = NewRunID()
	}
	return &Logger{runID: runID, sink: sink, events: events}
}

// RunID returns the identifier stamped on every entry
func (l *Logger) RunID() string {
	return l.runID
}

// Log records e. Failures to persist are reported in the operational log
// and never returned, so audit problems cannot fail a run.
func (l *Logger) Log(ctx context.Context, e Entry) {
	l.operational(e)

	if l.sink != nil {
		err := l.sink.InsertRunLog(ctx, &store.RunLogEntry{
			RunID:     l.runID,
			Table:     e.Table,
			Status:    string(e.Status),
			RowCount:  e.Rows,
			Message:   e.Message,
			ElapsedMs: e.Elapsed.Milliseconds(),
		})
		if err != nil {
			util.ErrorLog("Failed to write audit entry for %s: %v", e.Table, err)
		}
	}

	if err := l.events.Write(&Event{
		Level:     levelFor(e.Status),
		RunID:     l.runID,
		Table:     e.Table,
		Status:    e.Status,
		Rows:      e.Rows,
		Message:   e.Message,
		ElapsedMs: e.Elapsed.Milliseconds(),
	}); err != nil {
		util.WarnLog("Failed to write event: %v", err)
	}
}

func (l *Logger) operational(e Entry) {
	log := util.Logger()
	var ev *zerolog.Event
	switch e.Status {
	case StatusFailure:
		ev = log.Error()
	case StatusSkip:
		ev = log.Debug()
	default:
		ev = log.Info()
	}
	ev = ev.Str("run_id", l.runID).
		Str("table", e.Table).
		Str("status", string(e.Status)).
		Int64("rows", e.Rows)
	if e.Elapsed > 0 {
		ev = ev.Dur("elapsed", e.Elapsed)
	}
	ev.Msg(e.Message)
}

// Close closes the event file, if any
func (l *Logger) Close() error {
	return l.events.Close()
}

// EventPath returns the event file path, or "" when there is none
func (l *Logger) EventPath() string {
	return l.events.Path()
}
