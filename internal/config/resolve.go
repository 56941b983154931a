package config

import (
	"fmt"
	"strconv"
	"time"
)

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from drover.toml.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the merged configuration with source tracking.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // dotted path, e.g. "loop.pause"
	Path    string                  // config file used, empty if none
	// Warnings lists environment values that could not be parsed and were
	// ignored.
	Warnings []string
}

// CLIOverrides captures flag values that override configuration. A nil
// pointer means the flag was not set.
type CLIOverrides struct {
	Model         *string
	MaxIterations *int
	Pause         *time.Duration
	Verbosity     *string
	NoColor       *bool
	RawLog        *string
	EventLog      *string
	RelayURL      *string
}

// EnvFunc looks up environment variables. os.LookupEnv in production.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration in priority order:
// CLI flags > environment variables > config file > defaults.
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}
	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	resolveFromDefaults(rc, defaults)
	if fileConfig != nil {
		resolveFromFile(rc, fileConfig)
	}
	resolveFromEnv(rc, envFn)
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveFromDefaults(rc *ResolvedConfig, d *Config) {
	c, s := rc.Config, rc.Sources

	setValue(&c.Agent.Command, d.Agent.Command, "agent.command", SourceDefault, s)
	setValue(&c.Agent.Model, d.Agent.Model, "agent.model", SourceDefault, s)
	setValue(&c.Agent.ExtraArgs, copyStrings(d.Agent.ExtraArgs), "agent.extra_args", SourceDefault, s)
	setValue(&c.Agent.Env, copyStrings(d.Agent.Env), "agent.env", SourceDefault, s)
	setValue(&c.Agent.SkipPermissions, d.Agent.SkipPermissions, "agent.skip_permissions", SourceDefault, s)
	setValue(&c.Agent.Cols, d.Agent.Cols, "agent.cols", SourceDefault, s)
	setValue(&c.Agent.Rows, d.Agent.Rows, "agent.rows", SourceDefault, s)

	setValue(&c.Loop.MaxIterations, d.Loop.MaxIterations, "loop.max_iterations", SourceDefault, s)
	setValue(&c.Loop.Pause, d.Loop.Pause, "loop.pause", SourceDefault, s)
	setValue(&c.Loop.ClusterThreshold, d.Loop.ClusterThreshold, "loop.cluster_threshold", SourceDefault, s)
	setValue(&c.Loop.RepeatSentinel, d.Loop.RepeatSentinel, "loop.repeat_sentinel", SourceDefault, s)
	setValue(&c.Loop.BlockedSentinel, d.Loop.BlockedSentinel, "loop.blocked_sentinel", SourceDefault, s)
	setValue(&c.Loop.ErrorSentinel, d.Loop.ErrorSentinel, "loop.error_sentinel", SourceDefault, s)

	setValue(&c.Output.Verbosity, d.Output.Verbosity, "output.verbosity", SourceDefault, s)
	setValue(&c.Output.NoColor, d.Output.NoColor, "output.no_color", SourceDefault, s)
	setValue(&c.Output.RawLog, d.Output.RawLog, "output.raw_log", SourceDefault, s)
	setValue(&c.Output.EventLog, d.Output.EventLog, "output.event_log", SourceDefault, s)

	setValue(&c.Relay.Enabled, d.Relay.Enabled, "relay.enabled", SourceDefault, s)
	setValue(&c.Relay.URL, d.Relay.URL, "relay.url", SourceDefault, s)
	setValue(&c.Relay.Kind, d.Relay.Kind, "relay.kind", SourceDefault, s)
	setValue(&c.Relay.QueueSize, d.Relay.QueueSize, "relay.queue_size", SourceDefault, s)
	setValue(&c.Relay.Timeout, d.Relay.Timeout, "relay.timeout", SourceDefault, s)

	setValue(&c.Steps, copySteps(d.Steps), "steps", SourceDefault, s)
}

// --- Layer 2: File ---

// A zero value in the file means "not set in file" and keeps the lower layer.
func resolveFromFile(rc *ResolvedConfig, f *Config) {
	c, s := rc.Config, rc.Sources

	mergeValue(&c.Agent.Command, f.Agent.Command, "agent.command", s)
	mergeValue(&c.Agent.Model, f.Agent.Model, "agent.model", s)
	if len(f.Agent.ExtraArgs) > 0 {
		setValue(&c.Agent.ExtraArgs, copyStrings(f.Agent.ExtraArgs), "agent.extra_args", SourceFile, s)
	}
	if len(f.Agent.Env) > 0 {
		setValue(&c.Agent.Env, copyStrings(f.Agent.Env), "agent.env", SourceFile, s)
	}
	mergeValue(&c.Agent.SkipPermissions, f.Agent.SkipPermissions, "agent.skip_permissions", s)
	mergeValue(&c.Agent.Cols, f.Agent.Cols, "agent.cols", s)
	mergeValue(&c.Agent.Rows, f.Agent.Rows, "agent.rows", s)

	mergeValue(&c.Loop.MaxIterations, f.Loop.MaxIterations, "loop.max_iterations", s)
	mergeValue(&c.Loop.Pause, f.Loop.Pause, "loop.pause", s)
	mergeValue(&c.Loop.ClusterThreshold, f.Loop.ClusterThreshold, "loop.cluster_threshold", s)
	mergeValue(&c.Loop.RepeatSentinel, f.Loop.RepeatSentinel, "loop.repeat_sentinel", s)
	mergeValue(&c.Loop.BlockedSentinel, f.Loop.BlockedSentinel, "loop.blocked_sentinel", s)
	mergeValue(&c.Loop.ErrorSentinel, f.Loop.ErrorSentinel, "loop.error_sentinel", s)

	mergeValue(&c.Output.Verbosity, f.Output.Verbosity, "output.verbosity", s)
	mergeValue(&c.Output.NoColor, f.Output.NoColor, "output.no_color", s)
	mergeValue(&c.Output.RawLog, f.Output.RawLog, "output.raw_log", s)
	mergeValue(&c.Output.EventLog, f.Output.EventLog, "output.event_log", s)

	mergeValue(&c.Relay.Enabled, f.Relay.Enabled, "relay.enabled", s)
	mergeValue(&c.Relay.URL, f.Relay.URL, "relay.url", s)
	mergeValue(&c.Relay.Kind, f.Relay.Kind, "relay.kind", s)
	mergeValue(&c.Relay.QueueSize, f.Relay.QueueSize, "relay.queue_size", s)
	mergeValue(&c.Relay.Timeout, f.Relay.Timeout, "relay.timeout", s)

	if len(f.Steps) > 0 {
		setValue(&c.Steps, copySteps(f.Steps), "steps", SourceFile, s)
	}
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	DROVER_AGENT_COMMAND     -> agent.command
//	DROVER_MODEL             -> agent.model
//	DROVER_SKIP_PERMISSIONS  -> agent.skip_permissions
//	DROVER_MAX_ITERATIONS    -> loop.max_iterations
//	DROVER_PAUSE             -> loop.pause
//	DROVER_VERBOSITY         -> output.verbosity
//	DROVER_NO_COLOR          -> output.no_color
//	DROVER_RAW_LOG           -> output.raw_log
//	DROVER_EVENT_LOG         -> output.event_log
//	DROVER_RELAY_URL         -> relay.url (also enables the relay)
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	c, s := rc.Config, rc.Sources

	envString(envFn, "DROVER_AGENT_COMMAND", &c.Agent.Command, "agent.command", s)
	envString(envFn, "DROVER_MODEL", &c.Agent.Model, "agent.model", s)
	envString(envFn, "DROVER_VERBOSITY", &c.Output.Verbosity, "output.verbosity", s)
	envString(envFn, "DROVER_RAW_LOG", &c.Output.RawLog, "output.raw_log", s)
	envString(envFn, "DROVER_EVENT_LOG", &c.Output.EventLog, "output.event_log", s)
	if envString(envFn, "DROVER_RELAY_URL", &c.Relay.URL, "relay.url", s) && c.Relay.URL != "" {
		setValue(&c.Relay.Enabled, true, "relay.enabled", SourceEnv, s)
	}

	envParsed(rc, envFn, "DROVER_SKIP_PERMISSIONS", &c.Agent.SkipPermissions, "agent.skip_permissions", strconv.ParseBool)
	envParsed(rc, envFn, "DROVER_NO_COLOR", &c.Output.NoColor, "output.no_color", strconv.ParseBool)
	envParsed(rc, envFn, "DROVER_MAX_ITERATIONS", &c.Loop.MaxIterations, "loop.max_iterations", strconv.Atoi)
	envParsed(rc, envFn, "DROVER_PAUSE", &c.Loop.Pause, "loop.pause", time.ParseDuration)
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, o *CLIOverrides) {
	c, s := rc.Config, rc.Sources

	overrideValue(&c.Agent.Model, o.Model, "agent.model", s)
	overrideValue(&c.Loop.MaxIterations, o.MaxIterations, "loop.max_iterations", s)
	overrideValue(&c.Loop.Pause, o.Pause, "loop.pause", s)
	overrideValue(&c.Output.Verbosity, o.Verbosity, "output.verbosity", s)
	overrideValue(&c.Output.NoColor, o.NoColor, "output.no_color", s)
	overrideValue(&c.Output.RawLog, o.RawLog, "output.raw_log", s)
	overrideValue(&c.Output.EventLog, o.EventLog, "output.event_log", s)
	if overrideValue(&c.Relay.URL, o.RelayURL, "relay.url", s) && c.Relay.URL != "" {
		setValue(&c.Relay.Enabled, true, "relay.enabled", SourceCLI, s)
	}
}

// --- Helpers ---

// setValue unconditionally sets target and records the source.
func setValue[T any](target *T, value T, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

// mergeValue overwrites target with a file value only when it is non-zero.
func mergeValue[T comparable](target *T, value T, path string, sources map[string]ConfigSource) {
	var zero T
	if value != zero {
		setValue(target, value, path, SourceFile, sources)
	}
}

// overrideValue applies a CLI flag when it was set and reports whether it did.
func overrideValue[T any](target *T, value *T, path string, sources map[string]ConfigSource) bool {
	if value == nil {
		return false
	}
	setValue(target, *value, path, SourceCLI, sources)
	return true
}

func envString(envFn EnvFunc, key string, target *string, path string, sources map[string]ConfigSource) bool {
	val, ok := envFn(key)
	if !ok {
		return false
	}
	setValue(target, val, path, SourceEnv, sources)
	return true
}

// envParsed applies a typed environment value. Unparseable values are
// skipped and reported in rc.Warnings.
func envParsed[T any](rc *ResolvedConfig, envFn EnvFunc, key string, target *T, path string, parse func(string) (T, error)) {
	raw, ok := envFn(key)
	if !ok {
		return
	}
	v, err := parse(raw)
	if err != nil {
		rc.Warnings = append(rc.Warnings, fmt.Sprintf("ignoring %s=%q: %v", key, raw, err))
		return
	}
	setValue(target, v, path, SourceEnv, rc.Sources)
}

func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func copySteps(src []StepConfig) []StepConfig {
	if src == nil {
		return nil
	}
	out := make([]StepConfig, len(src))
	copy(out, src)
	return out
}
