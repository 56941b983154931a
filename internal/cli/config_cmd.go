package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/drover/internal/config"
)

// configCmd groups the show and validate subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate drover configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with source annotations",
	Long: `Display every resolved setting and where it came from: a CLI flag,
an environment variable, drover.toml, or the built-in default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _, err := loadAndResolveConfig(globalOverrides())
		if err != nil {
			return err
		}
		printResolvedConfig(cmd, resolved)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, meta, err := loadAndResolveConfig(globalOverrides())
		if err != nil {
			return err
		}
		result := config.Validate(resolved.Config, meta)
		for _, w := range resolved.Warnings {
			result.Issues = append(result.Issues, config.ValidationIssue{
				Severity: config.SeverityWarning,
				Field:    "env",
				Message:  w,
			})
		}
		printValidationResult(cmd, result)
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// globalOverrides maps the persistent root flags that double as config
// settings onto CLIOverrides.
func globalOverrides() *config.CLIOverrides {
	o := &config.CLIOverrides{}
	switch {
	case flagQuiet:
		o.Verbosity = stringPtr("quiet")
	case flagVerbose:
		o.Verbosity = stringPtr("verbose")
	}
	if flagNoColor {
		o.NoColor = boolPtr(true)
	}
	return o
}

// loadAndResolveConfig loads drover.toml (from --config, or found by walking
// up from the working directory) and layers env and CLI values on top. The
// metadata is nil when no file was loaded.
func loadAndResolveConfig(overrides *config.CLIOverrides) (*config.ResolvedConfig, *toml.MetaData, error) {
	file, err := config.Load(flagConfig, ".")
	if err != nil {
		return nil, nil, err
	}
	if file == nil {
		return config.Resolve(config.NewDefaults(), nil, os.LookupEnv, overrides), nil, nil
	}

	resolved := config.Resolve(config.NewDefaults(), file.Config, os.LookupEnv, overrides)
	resolved.Path = file.Path
	return resolved, &file.Meta, nil
}

func stringPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// ---- Rendering --------------------------------------------------------------

// sourceStyle colors a source label. --no-color strips it through the Ascii
// profile set in PersistentPreRunE.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	}
}

var (
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleSection  = lipgloss.NewStyle().Bold(true)
	styleErrorLbl = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarnLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleSuccess  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

const fieldWidth = 20

func printHeading(out io.Writer, title string) {
	fmt.Fprintln(out, styleHeader.Render(title))
	fmt.Fprintln(out, strings.Repeat("=", len(title)))
	fmt.Fprintln(out)
}

// printResolvedConfig writes every setting with its source.
func printResolvedConfig(cmd *cobra.Command, rc *config.ResolvedConfig) {
	out := cmd.OutOrStdout()
	c := rc.Config
	src := func(key string) config.ConfigSource { return rc.Sources[key] }

	printHeading(out, "Resolved Configuration")
	if rc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", rc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, styleSection.Render("[agent]"))
	printField(out, "command", fmtStr(c.Agent.Command), src("agent.command"))
	printField(out, "model", fmtStr(c.Agent.Model), src("agent.model"))
	printField(out, "extra_args", fmtSlice(c.Agent.ExtraArgs), src("agent.extra_args"))
	printField(out, "env", fmtSlice(c.Agent.Env), src("agent.env"))
	printField(out, "skip_permissions", fmt.Sprint(c.Agent.SkipPermissions), src("agent.skip_permissions"))
	printField(out, "cols", fmt.Sprint(c.Agent.Cols), src("agent.cols"))
	printField(out, "rows", fmt.Sprint(c.Agent.Rows), src("agent.rows"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[loop]"))
	printField(out, "max_iterations", fmt.Sprint(c.Loop.MaxIterations), src("loop.max_iterations"))
	printField(out, "pause", c.Loop.Pause.String(), src("loop.pause"))
	printField(out, "cluster_threshold", c.Loop.ClusterThreshold.String(), src("loop.cluster_threshold"))
	printField(out, "repeat_sentinel", fmtStr(c.Loop.RepeatSentinel), src("loop.repeat_sentinel"))
	printField(out, "blocked_sentinel", fmtStr(c.Loop.BlockedSentinel), src("loop.blocked_sentinel"))
	printField(out, "error_sentinel", fmtStr(c.Loop.ErrorSentinel), src("loop.error_sentinel"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[output]"))
	printField(out, "verbosity", fmtStr(c.Output.Verbosity), src("output.verbosity"))
	printField(out, "no_color", fmt.Sprint(c.Output.NoColor), src("output.no_color"))
	printField(out, "raw_log", fmtStr(c.Output.RawLog), src("output.raw_log"))
	printField(out, "event_log", fmtStr(c.Output.EventLog), src("output.event_log"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[relay]"))
	printField(out, "enabled", fmt.Sprint(c.Relay.Enabled), src("relay.enabled"))
	printField(out, "url", fmtStr(c.Relay.URL), src("relay.url"))
	printField(out, "kind", fmtStr(c.Relay.Kind), src("relay.kind"))
	printField(out, "queue_size", fmt.Sprint(c.Relay.QueueSize), src("relay.queue_size"))
	printField(out, "timeout", c.Relay.Timeout.String(), src("relay.timeout"))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s (source: %s)\n", styleSection.Render(fmt.Sprintf("[[steps]] x %d", len(c.Steps))), src("steps"))
	for i, s := range c.Steps {
		prompt := s.PromptFile
		if prompt == "" {
			prompt = truncateInline(s.Prompt, 40)
		}
		fmt.Fprintf(out, "  %d. %-16s %s\n", i+1, fmtStr(s.Label), fmtStr(prompt))
	}
}

func printField(out io.Writer, name, value string, src config.ConfigSource) {
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	fmt.Fprintf(out, "%s = %-40s %s\n", padded, value, srcLabel)
}

func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmtStr(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func truncateInline(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

// printValidationResult writes the validation report.
func printValidationResult(cmd *cobra.Command, result *config.ValidationResult) {
	out := cmd.OutOrStdout()
	printHeading(out, "Configuration Validation")

	errs := result.Errors()
	warns := result.Warnings()
	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	printIssues(out, styleErrorLbl.Render("Errors:"), errs)
	printIssues(out, styleWarnLbl.Render("Warnings:"), warns)
	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}

func printIssues(out io.Writer, label string, issues []config.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintln(out, label)
	for _, issue := range issues {
		fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
	}
	fmt.Fprintln(out)
}
