package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// EventLog is the structured run log: one JSON object per line, each carrying
// the run id. It is safe for concurrent use.
type EventLog struct {
	logger *log.Logger
	closer io.Closer
}

// NewEventLog opens path for appending (creating parent directories) and
// returns an EventLog tagging every entry with runID.
func NewEventLog(path, runID string) (*EventLog, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	el := NewEventLogWriter(f, runID)
	el.closer = f
	return el, nil
}

// NewEventLogWriter returns an EventLog writing to w. Closing it does not
// close w.
func NewEventLogWriter(w io.Writer, runID string) *EventLog {
	l := log.NewWithOptions(w, log.Options{
		Level:           log.DebugLevel,
		Formatter:       log.JSONFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
	})
	if runID != "" {
		l = l.With("run_id", runID)
	}
	return &EventLog{logger: l}
}

// Record writes one entry whose message is the event name.
func (e *EventLog) Record(event string, kv ...interface{}) {
	e.logger.Info(event, kv...)
}

// Close closes the underlying file, if EventLog opened one.
func (e *EventLog) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// OpenRawLog opens path for appending raw agent output, creating parent
// directories as needed.
func OpenRawLog(path string) (*os.File, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw log: %w", err)
	}
	return f, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
