package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// EventLevel represents the severity of an event
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// levelFor maps an audit status to an event level
func levelFor(s Status) EventLevel {
	switch s {
	case StatusFailure:
		return LevelError
	case StatusSkip:
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Event is one line of the JSONL event file
type Event struct {
	Timestamp time.Time  `json:"ts"`
	Level     EventLevel `json:"level"`
	RunID     string     `json:"run_id"`
	Table     string     `json:"table"`
	Status    Status     `json:"status"`
	Rows      int64      `json:"rows"`
	Message   string     `json:"message,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms,omitempty"`
}

// EventFile mirrors audit entries into a JSONL file
type EventFile struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventFile creates events-<timestamp>-<run>.jsonl in outputDir.
// Events below minLevel are not written.
func NewEventFile(outputDir, runID string, minLevel EventLevel) (*EventFile, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := "events-" + time.Now().UTC().Format("20060102-150405")
	if len(runID) >= 8 {
		name += "-" + runID[:8]
	}
	path := filepath.Join(outputDir, name+".jsonl")

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventFile{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Write appends one event
func (f *EventFile) Write(event *Event) error {
	if f == nil || f.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[f.minLevel] {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := f.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// Close closes the event file
func (f *EventFile) Close() error {
	if f == nil || f.file == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.file.Close()
}

// Path returns the path of the event file
func (f *EventFile) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}
