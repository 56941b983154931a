package tui

import (
	"bytes"
	"context"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
)

// LoopEventCmd returns a tea.Cmd that reads a single LoopEvent from ch and
// wraps it in a LoopEventMsg. The command yields nil when the channel is
// closed or ctx is done.
//
// Call it again from Update after each LoopEventMsg to keep draining:
//
//	case LoopEventMsg:
//	    // handle...
//	    return m, LoopEventCmd(ctx, ch)
func LoopEventCmd(ctx context.Context, ch <-chan loop.LoopEvent) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			return LoopEventMsg{Event: ev}
		}
	}
}

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// LineWriter is an io.Writer that splits its input into lines and sends
// each batch of complete lines as a TranscriptMsg. A trailing partial line
// is held until the next newline or Flush. It is safe for concurrent use.
type LineWriter struct {
	mu      sync.Mutex
	sender  Sender
	pending []byte
}

// NewLineWriter returns a LineWriter sending to s.
func NewLineWriter(s Sender) *LineWriter {
	return &LineWriter{sender: s}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	idx := bytes.LastIndexByte(w.pending, '\n')
	if idx < 0 {
		return len(p), nil
	}

	complete := string(w.pending[:idx])
	w.pending = append(w.pending[:0], w.pending[idx+1:]...)
	w.sender.Send(TranscriptMsg{Lines: splitLines(complete)})
	return len(p), nil
}

// Flush sends any held partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return
	}
	line := string(w.pending)
	w.pending = w.pending[:0]
	w.sender.Send(TranscriptMsg{Lines: splitLines(line)})
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
