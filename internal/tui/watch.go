// Package tui implements the live view behind "drover run --tui": a
// scrollable transcript with a status bar tracking the current step, the
// iteration count, and the loop status.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
)

// maxLines caps the transcript kept in memory.
const maxLines = 5000

// Options configures a WatchModel.
type Options struct {
	// MaxIterations is shown next to the current iteration.
	MaxIterations int
	// Steps is the number of steps in the run.
	Steps int
	// Now overrides the clock. Tests use it for a stable elapsed time.
	Now func() time.Time
}

type keyMap struct {
	Quit   key.Binding
	Follow key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "stop / quit"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow"),
		),
	}
}

// WatchModel is the Bubble Tea model for the live run view.
type WatchModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan loop.LoopEvent
	opts   Options
	keys   keyMap

	viewport viewport.Model
	spinner  spinner.Model
	ready    bool
	follow   bool
	width    int

	lines     []string
	label     string
	step      int
	iteration int
	state     string
	started   time.Time
	finished  time.Time

	cancelling bool
	done       bool
	final      loop.Status
	err        error
}

// NewWatchModel returns a model that reads loop events from events and
// calls cancel when the user stops the run.
func NewWatchModel(ctx context.Context, events <-chan loop.LoopEvent, cancel context.CancelFunc, opts Options) WatchModel {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return WatchModel{
		ctx:      ctx,
		cancel:   cancel,
		events:   events,
		opts:     opts,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		spinner:  sp,
		follow:   true,
		state:    "starting",
		started:  opts.Now(),
	}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, LoopEventCmd(m.ctx, m.events))
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		// One line each for the header and the status bar.
		m.viewport.Height = max(msg.Height-2, 1)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptMsg:
		m.lines = append(m.lines, msg.Lines...)
		if over := len(m.lines) - maxLines; over > 0 {
			m.lines = m.lines[over:]
		}
		m.refresh()
		return m, nil

	case LoopEventMsg:
		m.apply(msg.Event)
		return m, LoopEventCmd(m.ctx, m.events)

	case RunDoneMsg:
		m.done = true
		m.final = msg.Status
		m.err = msg.Err
		m.finished = m.opts.Now()
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.done || m.cancelling {
			return m, tea.Quit
		}
		m.cancelling = true
		m.state = "stopping"
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

// apply folds one loop event into the status bar state.
func (m *WatchModel) apply(ev loop.LoopEvent) {
	switch ev.Type {
	case loop.EventLoopStarted:
		m.step++
		m.label = ev.Label
		m.iteration = 0
		m.state = "starting"
	case loop.EventAgentStarted:
		m.iteration = ev.Iteration
		m.state = "running"
	case loop.EventAgentCompleted:
		m.state = "completed"
		if ev.Signal != "" {
			m.state = "signalled " + string(ev.Signal)
		}
	case loop.EventAgentError:
		m.state = "agent error"
	case loop.EventSleeping:
		m.state = fmt.Sprintf("pausing %s", ev.Duration)
	case loop.EventBudgetExceeded:
		m.state = "budget exceeded"
	case loop.EventLoopAborted:
		m.state = "aborted"
	case loop.EventDryRun:
		m.state = "dry run"
	case loop.EventLoopFinished:
		m.state = string(ev.Status)
	}
}

func (m *WatchModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (m WatchModel) View() string {
	if !m.ready {
		return "starting drover..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.viewport.View(),
		m.statusBar(),
	)
}

func (m WatchModel) header() string {
	title := titleStyle.Render("drover")
	if m.label == "" {
		return title
	}
	step := m.label
	if m.opts.Steps > 1 {
		step = fmt.Sprintf("step %d/%d · %s", m.step, m.opts.Steps, m.label)
	}
	return title + mutedStyle.Render(" · ") + step
}

func (m WatchModel) statusBar() string {
	var parts []string

	if m.done {
		style, ok := statusStyle[m.final]
		if !ok {
			style = statusStyle[loop.StatusError]
		}
		parts = append(parts, style.Render("■ "+string(m.final)))
		if m.err != nil {
			parts = append(parts, m.err.Error())
		}
	} else {
		parts = append(parts, m.spinner.View()+" "+m.state)
	}

	if m.iteration > 0 {
		it := fmt.Sprintf("iteration %d", m.iteration)
		if m.opts.MaxIterations > 0 {
			it = fmt.Sprintf("iteration %d/%d", m.iteration, m.opts.MaxIterations)
		}
		parts = append(parts, it)
	}

	end := m.opts.Now()
	if m.done {
		end = m.finished
	}
	parts = append(parts, end.Sub(m.started).Round(time.Second).String())

	if !m.follow {
		parts = append(parts, "paused scroll (f to follow)")
	}
	if m.done {
		parts = append(parts, "q to quit")
	} else {
		parts = append(parts, "q to stop")
	}

	bar := strings.Join(parts, mutedStyle.Render(" · "))
	if m.width > 0 {
		return barStyle.Width(m.width).Render(bar)
	}
	return barStyle.Render(bar)
}
