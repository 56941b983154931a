package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
	"github.com/AbdelazizMoustafa10m/drover/internal/tui"
)

// liveEventBuffer sizes the loop event channel feeding the live view. The
// controller drops events when it is full.
const liveEventBuffer = 256

// liveView runs the steps behind a full-screen Bubble Tea program.
type liveView struct {
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan loop.LoopEvent
	writer  *tui.LineWriter
	program *tea.Program
}

func newLiveView(parent context.Context, maxIterations, steps int, opts ...tea.ProgramOption) *liveView {
	ctx, cancel := context.WithCancel(parent)
	events := make(chan loop.LoopEvent, liveEventBuffer)

	model := tui.NewWatchModel(ctx, events, cancel, tui.Options{
		MaxIterations: maxIterations,
		Steps:         steps,
	})
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	program := tea.NewProgram(model, opts...)

	return &liveView{
		ctx:     ctx,
		cancel:  cancel,
		events:  events,
		writer:  tui.NewLineWriter(program),
		program: program,
	}
}

// runResult is the final status of a run and the reason for a non-ok status.
type runResult struct {
	status loop.Status
	reason error
}

// run executes work in the background while the program owns the terminal.
// Quitting the view cancels work; run waits for it either way. The returned
// error is the program's own failure, not the run's.
func (v *liveView) run(work func(ctx context.Context) (loop.Status, error)) (runResult, error) {
	done := make(chan runResult, 1)

	go func() {
		status, reason := work(v.ctx)
		v.writer.Flush()
		v.program.Send(tui.RunDoneMsg{Status: status, Err: reason})
		done <- runResult{status: status, reason: reason}
	}()

	_, err := v.program.Run()
	v.cancel()
	return <-done, err
}
