// Package loop drives the agent through repeated steps until it reports a
// terminal outcome, the iteration budget runs out, or the context is
// cancelled.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/AbdelazizMoustafa10m/drover/internal/agent"
	"github.com/AbdelazizMoustafa10m/drover/internal/render"
	"github.com/AbdelazizMoustafa10m/drover/internal/sentinel"
	"github.com/AbdelazizMoustafa10m/drover/internal/stats"
)

// Status is the terminal status of a controller invocation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// BudgetExceededMessage is the log message written when a step runs out of
// iterations. It is distinct from every other terminal log line.
const BudgetExceededMessage = "iteration budget exceeded"

var (
	// ErrBudgetExceeded is the Outcome reason when MaxIterations is reached
	// without a terminal signal.
	ErrBudgetExceeded = errors.New(BudgetExceededMessage)

	// ErrAgentError is the Outcome reason when the agent emits the error
	// sentinel.
	ErrAgentError = errors.New("agent reported an error")

	// ErrNonZeroExit is the Outcome reason when the agent exits non-zero
	// without a sentinel.
	ErrNonZeroExit = errors.New("agent exited with non-zero status")

	// ErrCancelled is the Outcome reason when the context ends the step.
	ErrCancelled = errors.New("step cancelled")
)

// defaultMaxIterations is the default iteration budget per step.
const defaultMaxIterations = 10

// Config configures a Controller.
type Config struct {
	MaxIterations int           // default: 10
	Pause         time.Duration // zero repeats immediately
	Detector      sentinel.Detector
	WorkDir       string
	Env           []string
	DryRun        bool
}

// Step is one unit of work supplied by the caller: the prompt, a label for
// display, and an optional model override.
type Step struct {
	Prompt string
	Label  string
	Model  string

	// PromptFunc, when set, supplies the prompt for each iteration. An empty
	// return falls back to Prompt.
	PromptFunc func(iteration int) string
}

// promptFor returns the prompt for the given 1-based iteration.
func (s Step) promptFor(iteration int) string {
	if s.PromptFunc != nil {
		if p := s.PromptFunc(iteration); p != "" {
			return p
		}
	}
	return s.Prompt
}

// Outcome is the result of Controller.Run. Reason is nil for ok and blocked.
type Outcome struct {
	Status     Status
	LastText   string
	Iterations int
	Elapsed    time.Duration
	ExitCode   int
	Signal     sentinel.Signal
	Reason     error
	Stats      *stats.RunStats
}

// Recorder writes structured log entries.
type Recorder interface {
	Record(event string, kv ...interface{})
}

// Relay mirrors operator and agent text to an external sink.
type Relay interface {
	Send(kind, text string)
}

// Controller runs one step through the agent, repeating while the agent asks
// for another iteration.
type Controller struct {
	agent      agent.Agent
	classifier *render.Classifier
	config     Config
	clock      Clock
	events     chan<- LoopEvent
	recorder   Recorder
	relay      Relay
	rawLog     io.Writer
	logger     interface {
		Info(msg string, kv ...interface{})
		Warn(msg string, kv ...interface{})
		Error(msg string, kv ...interface{})
	}
}

// NewController creates a Controller. The classifier receives every decoded
// event and renders console output. The logger must not be nil.
func NewController(
	ag agent.Agent,
	classifier *render.Classifier,
	cfg Config,
	logger interface {
		Info(msg string, kv ...interface{})
		Warn(msg string, kv ...interface{})
		Error(msg string, kv ...interface{})
	},
) *Controller {
	applyDefaults(&cfg)
	return &Controller{
		agent:      ag,
		classifier: classifier,
		config:     cfg,
		clock:      RealClock{},
		logger:     logger,
	}
}

// WithClock replaces the wall clock and returns the receiver.
func (c *Controller) WithClock(clock Clock) *Controller {
	c.clock = clock
	return c
}

// WithEvents sets the LoopEvent channel and returns the receiver. Sends never
// block; events are dropped when the channel is full.
func (c *Controller) WithEvents(events chan<- LoopEvent) *Controller {
	c.events = events
	return c
}

// WithRecorder sets the structured log sink and returns the receiver.
func (c *Controller) WithRecorder(r Recorder) *Controller {
	c.recorder = r
	return c
}

// WithRelay sets the relay and returns the receiver.
func (c *Controller) WithRelay(r Relay) *Controller {
	c.relay = r
	return c
}

// WithRawLog sets the writer that receives raw agent output and returns the
// receiver.
func (c *Controller) WithRawLog(w io.Writer) *Controller {
	c.rawLog = w
	return c
}

// Run drives step to a terminal outcome. It never returns an error: failures
// to start the agent, cancellation, and budget exhaustion all become
// StatusError outcomes with Reason set.
func (c *Controller) Run(ctx context.Context, step Step) Outcome {
	start := c.clock.Now()
	state := c.classifier.State()
	state.SuppressStepSummary = true
	total := stats.New()

	c.logger.Info("starting step",
		"label", step.Label,
		"agent", c.agent.Name(),
		"max_iterations", c.config.MaxIterations,
	)
	c.emit(LoopEvent{Type: EventLoopStarted, Label: step.Label, Message: step.Prompt, Timestamp: start})
	c.send("prompt", step.Prompt)

	if c.config.DryRun {
		return c.dryRun(step, start, total)
	}

	var (
		iteration int
		lastText  string
	)
	for {
		iteration++
		if iteration > c.config.MaxIterations {
			c.logger.Error(BudgetExceededMessage,
				"label", step.Label,
				"max_iterations", c.config.MaxIterations,
			)
			c.emit(LoopEvent{Type: EventBudgetExceeded, Iteration: iteration - 1, Label: step.Label, Timestamp: c.clock.Now()})
			return c.finish(step, Outcome{
				Status:     StatusError,
				LastText:   lastText,
				Iterations: iteration - 1,
				Reason:     ErrBudgetExceeded,
			}, start, total)
		}
		if err := ctx.Err(); err != nil {
			return c.cancelled(step, lastText, iteration-1, start, total, err)
		}

		prompt := step.promptFor(iteration)
		state.BeginStep(iteration)
		c.classifier.StepHeader(iteration, c.config.MaxIterations, step.Label)
		c.emit(LoopEvent{Type: EventAgentStarted, Iteration: iteration, Label: step.Label, Timestamp: c.clock.Now()})
		c.record("iteration_started",
			"label", step.Label,
			"iteration", iteration,
			"prompt_hash", promptHash(prompt),
		)

		res, err := c.agent.Run(ctx, agent.RunOpts{
			Prompt:  prompt,
			WorkDir: c.config.WorkDir,
			Model:   step.Model,
			Env:     c.config.Env,
			Handler: c.classifier,
			RawLog:  c.rawLog,
		})
		c.classifier.FlushBatch()
		state.EndStep()
		stats.Merge(total, state.Stats)

		// A killed agent exits non-zero with whatever text it streamed so
		// far; neither its exit code nor a sentinel in that text counts.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if res != nil && res.FullText != "" {
				lastText = res.FullText
			}
			return c.cancelled(step, lastText, iteration, start, total, ctxErr)
		}
		if err != nil {
			c.logger.Error("agent failed to run", "label", step.Label, "iteration", iteration, "error", err)
			c.emit(LoopEvent{Type: EventAgentError, Iteration: iteration, Label: step.Label, Message: err.Error(), Timestamp: c.clock.Now()})
			return c.finish(step, Outcome{
				Status:     StatusError,
				LastText:   lastText,
				Iterations: iteration,
				Reason:     fmt.Errorf("running agent: %w", err),
			}, start, total)
		}

		lastText = res.FullText
		sig := c.config.Detector.Detect(res.FullText)
		c.classifier.StepFooter(iteration, res.ExitCode, sig.String(), res.Duration)
		c.emit(LoopEvent{
			Type:      EventAgentCompleted,
			Iteration: iteration,
			Label:     step.Label,
			Signal:    sig,
			ExitCode:  res.ExitCode,
			Duration:  res.Duration,
			Timestamp: c.clock.Now(),
		})
		c.record("iteration_finished",
			"label", step.Label,
			"iteration", iteration,
			"exit_code", res.ExitCode,
			"signal", sig.String(),
			"duration_ms", res.Duration.Milliseconds(),
			"messages", state.Stats.MessageCount,
			"tool_calls", state.Stats.ToolUseCount,
		)

		out := Outcome{LastText: lastText, Iterations: iteration, ExitCode: res.ExitCode, Signal: sig}
		switch sig {
		case sentinel.Repeat:
			c.logger.Info("agent requested another iteration",
				"label", step.Label,
				"iteration", iteration,
				"pause", c.config.Pause,
			)
			c.emit(LoopEvent{Type: EventSleeping, Iteration: iteration, Label: step.Label, Duration: c.config.Pause, Timestamp: c.clock.Now()})
			if err := c.clock.Sleep(ctx, c.config.Pause); err != nil {
				return c.cancelled(step, lastText, iteration, start, total, err)
			}
			continue
		case sentinel.Blocked:
			out.Status = StatusBlocked
		case sentinel.Error:
			out.Status = StatusError
			out.Reason = ErrAgentError
		default:
			if res.ExitCode == 0 {
				out.Status = StatusOK
			} else {
				out.Status = StatusError
				out.Reason = fmt.Errorf("%w (exit code %d)", ErrNonZeroExit, res.ExitCode)
			}
		}
		return c.finish(step, out, start, total)
	}
}

// dryRun reports the command for the first iteration without running it.
func (c *Controller) dryRun(step Step, start time.Time, total *stats.RunStats) Outcome {
	cmd := c.agent.DryRunCommand(agent.RunOpts{
		Prompt:  step.promptFor(1),
		WorkDir: c.config.WorkDir,
		Model:   step.Model,
	})
	c.classifier.Notice("dry run: " + cmd)
	c.emit(LoopEvent{Type: EventDryRun, Iteration: 1, Label: step.Label, Message: cmd, Timestamp: c.clock.Now()})
	return c.finish(step, Outcome{Status: StatusOK}, start, total)
}

func (c *Controller) cancelled(step Step, lastText string, iterations int, start time.Time, total *stats.RunStats, err error) Outcome {
	c.logger.Warn("step cancelled", "label", step.Label, "iteration", iterations, "error", err)
	c.emit(LoopEvent{Type: EventLoopAborted, Iteration: iterations, Label: step.Label, Message: err.Error(), Timestamp: c.clock.Now()})
	return c.finish(step, Outcome{
		Status:     StatusError,
		LastText:   lastText,
		Iterations: iterations,
		Reason:     fmt.Errorf("%w: %w", ErrCancelled, err),
	}, start, total)
}

// finish stamps the outcome, prints the human summary, and writes the
// structured log entry.
func (c *Controller) finish(step Step, out Outcome, start time.Time, total *stats.RunStats) Outcome {
	out.Elapsed = c.clock.Now().Sub(start)
	out.Stats = total

	c.classifier.OutcomeSummary(string(out.Status), out.Iterations, out.Elapsed, total)

	reason := ""
	if out.Reason != nil {
		reason = out.Reason.Error()
	}
	c.logger.Info("step finished",
		"label", step.Label,
		"status", out.Status,
		"iterations", out.Iterations,
		"elapsed", out.Elapsed.Round(time.Millisecond),
	)
	c.record("outcome",
		"label", step.Label,
		"status", string(out.Status),
		"iterations", out.Iterations,
		"elapsed_ms", out.Elapsed.Milliseconds(),
		"exit_code", out.ExitCode,
		"signal", out.Signal.String(),
		"reason", reason,
		"messages", total.MessageCount,
		"tool_calls", total.ToolUseCount,
		"input_tokens", total.TotalInputTokens(),
		"output_tokens_est", total.EstimatedOutputTokens(),
	)
	c.emit(LoopEvent{
		Type:      EventLoopFinished,
		Iteration: out.Iterations,
		Label:     step.Label,
		Status:    out.Status,
		Message:   reason,
		Duration:  out.Elapsed,
		Timestamp: c.clock.Now(),
	})
	if out.LastText != "" {
		c.send("agent", out.LastText)
	}
	return out
}

// emit sends event on the events channel without blocking.
func (c *Controller) emit(event LoopEvent) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- event:
	default:
		// Channel full; drop the event to avoid blocking the loop.
	}
}

func (c *Controller) record(event string, kv ...interface{}) {
	if c.recorder != nil {
		c.recorder.Record(event, kv...)
	}
}

func (c *Controller) send(kind, text string) {
	if c.relay != nil && text != "" {
		c.relay.Send(kind, text)
	}
}

// applyDefaults fills in zero-value fields in Config.
func applyDefaults(cfg *Config) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
}

// promptHash returns a short stable fingerprint of a prompt for log
// correlation.
func promptHash(prompt string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(prompt))
}
