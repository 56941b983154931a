// Package logging configures drover's diagnostic loggers and opens the files
// that record a run. Diagnostics always go to stderr; stdout belongs to the
// agent transcript.
package logging

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options selects the level and format of diagnostic output.
type Options struct {
	Verbose bool // debug messages
	Quiet   bool // errors only; wins over Verbose
	JSON    bool // one JSON object per line
}

// Level returns the charmbracelet/log level o selects.
func (o Options) Level() log.Level {
	switch {
	case o.Quiet:
		return log.ErrorLevel
	case o.Verbose:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

func (o Options) formatter() log.Formatter {
	if o.JSON {
		return log.JSONFormatter
	}
	return log.TextFormatter
}

// Setup applies opts to the default logger and points it at stderr. Loggers
// from New copy the default when they are created, so Setup comes first.
func Setup(opts Options) {
	log.SetLevel(opts.Level())
	log.SetFormatter(opts.formatter())
	log.SetOutput(os.Stderr)
}

// New returns a logger whose lines carry component as their prefix.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Redirect points the default logger at w and returns a func that points it
// back at stderr. Loggers created before the call keep their writer.
func Redirect(w io.Writer) (restore func()) {
	log.SetOutput(w)
	return func() { log.SetOutput(os.Stderr) }
}

// RunLogs are the files recording one run. A field is nil when its path was
// not configured.
type RunLogs struct {
	Raw    *os.File
	Events *EventLog
}

// OpenRunLogs opens the raw output log at rawPath and the event log at
// eventPath, tagging events with runID. Empty paths are skipped. Nothing is
// left open on error.
func OpenRunLogs(rawPath, eventPath, runID string) (*RunLogs, error) {
	logs := &RunLogs{}
	if eventPath != "" {
		el, err := NewEventLog(eventPath, runID)
		if err != nil {
			return nil, err
		}
		logs.Events = el
	}
	if rawPath != "" {
		f, err := OpenRawLog(rawPath)
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		logs.Raw = f
	}
	return logs, nil
}

// Close closes every open file and reports all failures.
func (r *RunLogs) Close() error {
	var errs []error
	if r.Raw != nil {
		errs = append(errs, r.Raw.Close())
	}
	if r.Events != nil {
		errs = append(errs, r.Events.Close())
	}
	return errors.Join(errs...)
}
