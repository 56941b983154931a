package render

import (
	"fmt"
	"time"

	"github.com/AbdelazizMoustafa10m/drover/internal/stats"
)

// StepHeader prints the banner shown before an iteration starts.
func (c *Classifier) StepHeader(iteration, maxIterations int, label string) {
	if c.opts.Verbosity == Quiet {
		return
	}
	msg := fmt.Sprintf("── step %d/%d", iteration, maxIterations)
	if label != "" {
		msg += " · " + label
	}
	c.line(c.theme.paint(c.theme.Scope, msg))
}

// StepFooter prints the controller's completion line for one iteration. It
// is used instead of the classifier's own line when SuppressStepSummary is
// set.
func (c *Classifier) StepFooter(iteration, exitCode int, signal string, d time.Duration) {
	if c.opts.Verbosity == Quiet {
		return
	}
	msg := fmt.Sprintf("✓ step %d finished in %s · exit %d · signal %s", iteration, formatElapsed(d), exitCode, signal)
	style := c.theme.Success
	if exitCode != 0 {
		style = c.theme.Error
	}
	c.line(c.theme.paint(style, msg))
}

// Notice prints a one-line message from the controller.
func (c *Classifier) Notice(msg string) {
	if c.opts.Verbosity == Quiet {
		return
	}
	c.line(c.theme.paint(c.theme.Muted, msg))
}

// OutcomeSummary prints the terminal summary of a controller invocation. It
// is printed at every verbosity.
func (c *Classifier) OutcomeSummary(status string, iterations int, elapsed time.Duration, run *stats.RunStats) {
	style := c.theme.Success
	if status != "ok" {
		style = c.theme.Error
	}
	c.line(c.theme.paint(style, fmt.Sprintf("■ %s after %d iteration(s) in %s", status, iterations, formatElapsed(elapsed))))
	if run != nil && c.opts.Verbosity > Quiet {
		c.line(c.theme.paint(c.theme.Muted, run.Summary(elapsed)))
	}
}
