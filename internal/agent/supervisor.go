package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/drover/internal/stream"
)

// Compile-time check that Supervisor implements Agent.
var _ Agent = (*Supervisor)(nil)

// supervisorLogger is the minimal logging interface required by Supervisor.
type supervisorLogger interface {
	Debug(msg string, keyvals ...interface{})
}

// readBufferSize is the size of a single pty read.
const readBufferSize = 32 * 1024

// maxDryRunPromptLen is the maximum number of runes of the prompt shown by
// DryRunCommand before it is truncated with "...".
const maxDryRunPromptLen = 120

// defaultDrainGrace bounds how long Run keeps reading the pty after the agent
// exits. A background process the agent left behind can hold the child side
// open indefinitely.
const defaultDrainGrace = 3 * time.Second

// Supervisor runs the agent executable attached to a pseudo-terminal, decodes
// its streamed output, and routes every event to the caller's handler.
type Supervisor struct {
	config     Config
	logger     supervisorLogger
	drainGrace time.Duration
}

// NewSupervisor creates a Supervisor. The logger may be nil, in which case
// debug messages are discarded.
func NewSupervisor(config Config, logger supervisorLogger) *Supervisor {
	return &Supervisor{config: config, logger: logger, drainGrace: defaultDrainGrace}
}

// Name returns the base name of the agent executable.
func (s *Supervisor) Name() string { return filepath.Base(s.command()) }

// CheckPrerequisites verifies that the agent executable can be found on PATH.
func (s *Supervisor) CheckPrerequisites() error {
	cmd := s.command()
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("agent executable not found (looked for %q): %w", cmd, err)
	}
	return nil
}

// Run spawns the agent for one step and blocks until it exits. Output is
// read in chunks, copied to opts.RawLog, decoded, and handed to opts.Handler;
// the text the handler returns is accumulated into RunResult.FullText. Decode
// failures never surface. A non-zero exit is reported in RunResult.ExitCode.
func (s *Supervisor) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, ErrNoPrompt
	}
	start := time.Now()

	cmd := s.buildCommand(ctx, opts)
	if s.logger != nil {
		s.logger.Debug("starting agent",
			"command", cmd.Path,
			"args", cmd.Args[1:],
			"work_dir", cmd.Dir,
		)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: s.cols(), Rows: s.rows()})
	if err != nil {
		return nil, fmt.Errorf("starting agent: %w", annotateStartError(err, cmd.Path))
	}
	defer func() { _ = ptmx.Close() }()

	var (
		g     errgroup.Group
		parts []string
	)
	drained := make(chan struct{})
	g.Go(func() error {
		defer close(drained)
		parts = s.pump(ptmx, opts)
		return nil
	})

	waitErr := cmd.Wait()
	s.drain(ptmx, drained)
	_ = g.Wait()

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for agent: %w", waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	result := &RunResult{
		ExitCode: exitCode,
		FullText: strings.Join(parts, "\n"),
		Duration: time.Since(start),
	}
	if s.logger != nil {
		s.logger.Debug("agent exited",
			"exit_code", result.ExitCode,
			"duration", result.Duration,
			"text_bytes", len(result.FullText),
		)
	}
	return result, nil
}

// drain waits for the reader to finish. The reader normally ends with EIO once
// every holder of the child side of the pty has exited; past the grace period
// the read deadline is forced so pump returns with what it has.
func (s *Supervisor) drain(ptmx *os.File, drained <-chan struct{}) {
	timer := time.NewTimer(s.drainGrace)
	defer timer.Stop()

	select {
	case <-drained:
		return
	case <-timer.C:
	}
	if s.logger != nil {
		s.logger.Debug("agent output still open after exit, closing pty", "grace", s.drainGrace)
	}
	if err := ptmx.SetReadDeadline(time.Now()); err != nil {
		// Not pollable; closing the master is the only way to end the read.
		_ = ptmx.Close()
	}
}

// pump reads r until EOF or EIO and returns the text fragments produced by the
// handler, in order. Any fragment still buffered in the decoder at the end is
// decoded if it forms a complete record.
func (s *Supervisor) pump(r io.Reader, opts RunOpts) []string {
	dec := stream.NewDecoder()
	var parts []string
	dispatch := func(events []stream.Event) {
		for _, ev := range events {
			if text := handle(opts.Handler, ev); text != "" {
				parts = append(parts, text)
			}
		}
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if opts.RawLog != nil {
				_, _ = opts.RawLog.Write(chunk)
			}
			dispatch(dec.Process(string(chunk)))
		}
		if err != nil {
			if !endOfOutput(err) && s.logger != nil {
				s.logger.Debug("agent output read ended", "error", err)
			}
			break
		}
	}
	dispatch(dec.FlushEvents())
	return parts
}

// endOfOutput reports whether err is a normal end of agent output: EOF, EIO
// from a pty whose child side closed, or the deadline or close forced by
// drain.
func endOfOutput(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, os.ErrClosed)
}

// handle routes ev to h. Without a handler only agent text is kept.
func handle(h EventHandler, ev stream.Event) string {
	if h != nil {
		return h.Handle(ev)
	}
	if t, ok := ev.(stream.AgentText); ok {
		return t.Text
	}
	return ""
}

// DryRunCommand returns the command line Run would execute. Long prompts are
// truncated.
func (s *Supervisor) DryRunCommand(opts RunOpts) string {
	prompt := opts.Prompt
	if r := []rune(prompt); len(r) > maxDryRunPromptLen {
		prompt = string(r[:maxDryRunPromptLen]) + "..."
	}
	args := s.buildArgs(opts.Model)
	return s.command() + " " + strings.Join(args, " ") + " " + fmt.Sprintf("%q", prompt)
}

// buildCommand constructs the *exec.Cmd for opts. The prompt is always the
// final positional argument.
func (s *Supervisor) buildCommand(ctx context.Context, opts RunOpts) *exec.Cmd {
	args := append(s.buildArgs(opts.Model), opts.Prompt)
	cmd := exec.CommandContext(ctx, s.command(), args...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Env = append(os.Environ(), opts.Env...)
	setProcGroup(cmd)
	return cmd
}

// buildArgs returns the fixed flag set requesting streamed JSON output. A
// non-empty model overrides Config.Model.
func (s *Supervisor) buildArgs(model string) []string {
	args := []string{"--print", "--verbose", "--output-format", OutputFormatStreamJSON}
	if model == "" {
		model = s.config.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if s.config.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	args = append(args, s.config.ExtraArgs...)
	return args
}

func (s *Supervisor) command() string {
	if s.config.Command == "" {
		return DefaultCommand
	}
	return s.config.Command
}

func (s *Supervisor) cols() uint16 { return geometry(s.config.Cols, DefaultCols) }

func (s *Supervisor) rows() uint16 { return geometry(s.config.Rows, DefaultRows) }

func geometry(v, def int) uint16 {
	if v <= 0 || v > 0xFFFF {
		return uint16(def)
	}
	return uint16(v)
}

// annotateStartError adds a hint to EPERM failures, which usually mean the
// executable cannot be run from its filesystem rather than a missing binary.
func annotateStartError(err error, binaryPath string) error {
	if !errors.Is(err, syscall.EPERM) {
		return err
	}
	return fmt.Errorf(
		"%w (EPERM during pty start for %q; check executable permissions and noexec mounts)",
		err,
		binaryPath,
	)
}
