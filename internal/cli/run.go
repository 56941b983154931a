package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/drover/internal/agent"
	"github.com/AbdelazizMoustafa10m/drover/internal/config"
	"github.com/AbdelazizMoustafa10m/drover/internal/logging"
	"github.com/AbdelazizMoustafa10m/drover/internal/loop"
	"github.com/AbdelazizMoustafa10m/drover/internal/relay"
	"github.com/AbdelazizMoustafa10m/drover/internal/render"
	"github.com/AbdelazizMoustafa10m/drover/internal/sentinel"
)

// Exit codes returned by "drover run".
const (
	exitCodeError   = 1
	exitCodeBlocked = 2
)

// relayDrainTimeout bounds how long run waits for queued relay messages
// before exiting.
const relayDrainTimeout = 15 * time.Second

// runFlags holds parsed flag values for the run command.
type runFlags struct {
	PromptFile    string
	Steps         string
	Label         string
	Model         string
	MaxIterations int
	Pause         time.Duration
	RawLog        string
	EventLog      string
	RelayURL      string
	TUI           bool
}

// newAgent builds the agent for a run. Tests replace it with a mock.
var newAgent = func(cfg agent.Config, logger *componentLogger) agent.Agent {
	return agent.NewSupervisor(cfg, logger)
}

// newRunCmd creates the "drover run" command.
func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run the agent on one or more steps until each reaches a terminal status",
		Long: `Run the agent on a prompt, re-invoking it while it asks for another
iteration, until it finishes, reports it is blocked, reports an error, or the
iteration budget runs out.

The prompt comes from exactly one source: the positional argument,
--prompt-file, --steps (a glob whose matches run as ordered steps), or the
[[steps]] table in drover.toml.

Exit status is 0 when every step finishes ok, 2 when a step is blocked, and
1 on error.`,
		Example: `  # One inline prompt
  drover run "fix the failing tests in ./internal/..."

  # A prompt file with a label and a model override
  drover run --prompt-file prompts/refactor.md --label refactor --model opus

  # Every markdown prompt under prompts/, in path order
  drover run --steps 'prompts/**/*.md' --max-iterations 5 --pause 2s

  # Print the agent commands without running them
  drover run --dry-run --steps 'prompts/*.md'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.PromptFile, "prompt-file", "", "Read the prompt from a file")
	cmd.Flags().StringVar(&flags.Steps, "steps", "", "Glob of prompt files to run as ordered steps (supports **)")
	cmd.Flags().StringVar(&flags.Label, "label", "", "Label shown for the step (defaults to the prompt file name)")
	cmd.Flags().StringVar(&flags.Model, "model", "", "Override the agent model (env: DROVER_MODEL)")
	cmd.Flags().IntVar(&flags.MaxIterations, "max-iterations", 0, "Iteration budget per step (default from config: 10)")
	cmd.Flags().DurationVar(&flags.Pause, "pause", 0, "Pause before a repeated iteration (default from config: 5s)")
	cmd.Flags().StringVar(&flags.RawLog, "raw-log", "", "Append raw agent output to this file")
	cmd.Flags().StringVar(&flags.EventLog, "event-log", "", "Append structured JSON events to this file")
	cmd.Flags().StringVar(&flags.RelayURL, "relay-url", "", "Mirror prompts and replies to this webhook or websocket URL")
	cmd.Flags().BoolVar(&flags.TUI, "tui", false, "Show the run in a full-screen live view")
	cmd.MarkFlagsMutuallyExclusive("prompt-file", "steps")
	cmd.MarkFlagsMutuallyExclusive("label", "steps")

	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

// runOverrides maps the run flags that were explicitly set onto CLIOverrides.
func runOverrides(cmd *cobra.Command, flags runFlags) *config.CLIOverrides {
	o := globalOverrides()
	changed := cmd.Flags().Changed
	if changed("model") {
		o.Model = stringPtr(flags.Model)
	}
	if changed("max-iterations") {
		o.MaxIterations = &flags.MaxIterations
	}
	if changed("pause") {
		o.Pause = &flags.Pause
	}
	if changed("raw-log") {
		o.RawLog = stringPtr(flags.RawLog)
	}
	if changed("event-log") {
		o.EventLog = stringPtr(flags.EventLog)
	}
	if changed("relay-url") {
		o.RelayURL = stringPtr(flags.RelayURL)
	}
	return o
}

// runRun is the RunE implementation for the run command.
func runRun(cmd *cobra.Command, args []string, flags runFlags) error {
	if flags.TUI {
		// Log lines would tear the alternate screen.
		defer logging.Redirect(io.Discard)()
	}
	logger := &componentLogger{logger: logging.New("run")}

	resolved, meta, err := loadAndResolveConfig(runOverrides(cmd, flags))
	if err != nil {
		return err
	}
	cfg := resolved.Config

	vr := config.Validate(cfg, meta)
	for _, w := range resolved.Warnings {
		logger.Warn(w)
	}
	for _, issue := range vr.Warnings() {
		logger.Warn("config warning", "field", issue.Field, "message", issue.Message)
	}
	if vr.HasErrors() {
		for _, issue := range vr.Errors() {
			logger.Error("config error", "field", issue.Field, "message", issue.Message)
		}
		return fmt.Errorf("configuration has %d error(s); run \"drover config validate\" for details", len(vr.Errors()))
	}

	steps, err := resolveSteps(args, flags, cfg.Steps, resolved.Path)
	if err != nil {
		return err
	}

	verbosity, err := render.ParseVerbosity(cfg.Output.Verbosity)
	if err != nil {
		return err
	}

	// --dir has already been applied by the root command.
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	runID := uuid.NewString()
	logger.Debug("resolved run", "run_id", runID, "steps", len(steps), "config", resolved.Path)

	ag := newAgent(agent.Config{
		Command:         cfg.Agent.Command,
		Model:           cfg.Agent.Model,
		ExtraArgs:       cfg.Agent.ExtraArgs,
		SkipPermissions: cfg.Agent.SkipPermissions,
		Cols:            cfg.Agent.Cols,
		Rows:            cfg.Agent.Rows,
	}, &componentLogger{logger: logging.New("agent")})

	if !flagDryRun {
		if err := ag.CheckPrerequisites(); err != nil {
			return fmt.Errorf("agent %s is not available: %w", ag.Name(), err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		out  io.Writer = cmd.OutOrStdout()
		view *liveView
	)
	if flags.TUI {
		view = newLiveView(ctx, cfg.Loop.MaxIterations, len(steps))
		defer view.cancel()
		out = view.writer
	}

	classifier := render.NewClassifier(out, nil, render.Options{
		Verbosity:        verbosity,
		ClusterThreshold: cfg.Loop.ClusterThreshold,
		NoColor:          cfg.Output.NoColor,
	})

	ctrl := loop.NewController(ag, classifier, loop.Config{
		MaxIterations: cfg.Loop.MaxIterations,
		Pause:         cfg.Loop.Pause,
		Detector: sentinel.Detector{
			Repeat:  cfg.Loop.RepeatSentinel,
			Blocked: cfg.Loop.BlockedSentinel,
			Error:   cfg.Loop.ErrorSentinel,
		},
		WorkDir: workDir,
		Env:     cfg.Agent.Env,
		DryRun:  flagDryRun,
	}, &componentLogger{logger: logging.New("loop")})

	sinks, err := openSinks(cfg, runID)
	if err != nil {
		return err
	}
	defer sinks.close(logger)
	sinks.attach(ctrl)

	logger.Info("starting run", "run_id", runID, "steps", len(steps), "agent", ag.Name(), "dry_run", flagDryRun)

	if view != nil {
		ctrl.WithEvents(view.events)
		res, err := view.run(func(ctx context.Context) (loop.Status, error) {
			return runSteps(ctx, ctrl, steps, logger)
		})
		if err != nil {
			return fmt.Errorf("running live view: %w", err)
		}
		return statusError(res.status, res.reason)
	}

	return statusError(runSteps(ctx, ctrl, steps, logger))
}

// runSteps runs steps in order and stops at the first one that does not end
// ok. It returns that step's status and reason, or StatusOK.
func runSteps(ctx context.Context, ctrl *loop.Controller, steps []loop.Step, logger *componentLogger) (loop.Status, error) {
	for i, step := range steps {
		out := ctrl.Run(ctx, step)
		if out.Status == loop.StatusOK {
			continue
		}
		if remaining := len(steps) - i - 1; remaining > 0 {
			logger.Warn("stopping run", "label", step.Label, "status", out.Status, "skipped_steps", remaining)
		}
		return out.Status, out.Reason
	}
	return loop.StatusOK, nil
}

// statusError converts a final status into the command's exit status.
func statusError(status loop.Status, reason error) error {
	switch status {
	case loop.StatusOK:
		return nil
	case loop.StatusBlocked:
		return &exitError{code: exitCodeBlocked, err: errors.New("agent reported it is blocked")}
	default:
		if reason == nil {
			reason = errors.New("step failed")
		}
		return &exitError{code: exitCodeError, err: reason}
	}
}

// resolveSteps picks the single prompt source for the run: the positional
// argument, --prompt-file, --steps, or the configured [[steps]].
func resolveSteps(args []string, flags runFlags, configured []config.StepConfig, cfgPath string) ([]loop.Step, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, flags.PromptFile != "", flags.Steps != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, errors.New("pass only one of a prompt argument, --prompt-file, or --steps")
	}

	switch {
	case len(args) > 0:
		prompt := strings.TrimSpace(args[0])
		if prompt == "" {
			return nil, agent.ErrNoPrompt
		}
		label := flags.Label
		if label == "" {
			label = "prompt"
		}
		return []loop.Step{{Prompt: prompt, Label: label}}, nil
	case flags.PromptFile != "":
		s, err := loop.StepFromFile(flags.PromptFile, flags.Label, "")
		if err != nil {
			return nil, err
		}
		return []loop.Step{s}, nil
	case flags.Steps != "":
		return loop.LoadSteps(flags.Steps, "")
	case len(configured) > 0:
		return configuredSteps(configured, cfgPath)
	default:
		return nil, errors.New("nothing to run: pass a prompt, --prompt-file, --steps, or add [[steps]] to drover.toml")
	}
}

// configuredSteps builds steps from [[steps]]. Relative prompt files resolve
// against the directory holding drover.toml.
func configuredSteps(configured []config.StepConfig, cfgPath string) ([]loop.Step, error) {
	baseDir := ""
	if cfgPath != "" {
		baseDir = filepath.Dir(cfgPath)
	}

	steps := make([]loop.Step, 0, len(configured))
	for i, sc := range configured {
		if sc.PromptFile != "" {
			path := sc.PromptFile
			if !filepath.IsAbs(path) && baseDir != "" {
				path = filepath.Join(baseDir, path)
			}
			s, err := loop.StepFromFile(path, sc.Label, sc.Model)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			steps = append(steps, s)
			continue
		}
		label := sc.Label
		if label == "" {
			label = fmt.Sprintf("step-%d", i+1)
		}
		steps = append(steps, loop.Step{Prompt: strings.TrimSpace(sc.Prompt), Label: label, Model: sc.Model})
	}
	return steps, nil
}

// runSinks holds the optional outputs of a run.
type runSinks struct {
	logs  *logging.RunLogs
	relay *relay.Relay
}

func openSinks(cfg *config.Config, runID string) (*runSinks, error) {
	logs, err := logging.OpenRunLogs(cfg.Output.RawLog, cfg.Output.EventLog, runID)
	if err != nil {
		return nil, err
	}
	s := &runSinks{logs: logs}

	if cfg.Relay.Enabled {
		t, err := relay.NewTransport(cfg.Relay.Kind, cfg.Relay.URL)
		if err != nil {
			s.close(nil)
			return nil, err
		}
		s.relay = relay.New(t, relay.Options{
			RunID:     runID,
			QueueSize: cfg.Relay.QueueSize,
			Timeout:   cfg.Relay.Timeout,
		}, &componentLogger{logger: logging.New("relay")})
	}

	return s, nil
}

// attach wires the open sinks into ctrl. Nil sinks are skipped so the
// controller never sees a typed nil interface.
func (s *runSinks) attach(ctrl *loop.Controller) {
	if s.logs.Events != nil {
		ctrl.WithRecorder(s.logs.Events)
	}
	if s.logs.Raw != nil {
		ctrl.WithRawLog(s.logs.Raw)
	}
	if s.relay != nil {
		ctrl.WithRelay(s.relay)
	}
}

// close drains the relay, then closes every sink. logger may be nil.
func (s *runSinks) close(logger *componentLogger) {
	if s.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), relayDrainTimeout)
		if err := s.relay.Drain(ctx); err != nil && logger != nil {
			logger.Warn("relay drain incomplete", "error", err)
		}
		cancel()
		_ = s.relay.Close()
	}
	if err := s.logs.Close(); err != nil && logger != nil {
		logger.Warn("closing run logs", "error", err)
	}
}
