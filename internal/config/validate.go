package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ValidationSeverity indicates whether a validation issue is an error or warning.
type ValidationSeverity string

const (
	// SeverityError marks an issue that makes the configuration unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning marks an issue the run can survive.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g. "loop.pause"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors reports whether any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors()) > 0
}

// HasWarnings reports whether any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings()) > 0
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	return vr.filter(SeverityError)
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	return vr.filter(SeverityWarning)
}

func (vr *ValidationResult) filter(sev ValidationSeverity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

var validVerbosities = map[string]bool{
	"":        true,
	"quiet":   true,
	"normal":  true,
	"verbose": true,
}

// relaySchemes lists the URL schemes each relay kind accepts.
var relaySchemes = map[string][]string{
	RelayKindWebhook:   {"http", "https"},
	RelayKindWebSocket: {"ws", "wss"},
}

// Validate checks the configuration for correctness. meta may be nil when
// no file was loaded; otherwise unknown keys are reported as warnings.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateAgent(vr, &cfg.Agent)
	validateLoop(vr, &cfg.Loop)
	validateOutput(vr, &cfg.Output)
	validateRelay(vr, &cfg.Relay)
	validateSteps(vr, cfg.Steps)
	validateUnknownKeys(vr, meta)

	return vr
}

func validateAgent(vr *ValidationResult, a *AgentConfig) {
	if strings.TrimSpace(a.Command) == "" {
		addError(vr, "agent.command", "must not be empty")
	}
	if a.Cols < 0 {
		addError(vr, "agent.cols", "must not be negative")
	}
	if a.Rows < 0 {
		addError(vr, "agent.rows", "must not be negative")
	}
	for i, arg := range a.ExtraArgs {
		if arg == "" {
			addError(vr, fmt.Sprintf("agent.extra_args[%d]", i), "must not be an empty string")
		}
	}
	for i, kv := range a.Env {
		if key, _, ok := strings.Cut(kv, "="); !ok || strings.TrimSpace(key) == "" {
			addError(vr, fmt.Sprintf("agent.env[%d]", i), fmt.Sprintf("must be KEY=VALUE, got %q", kv))
		}
	}
}

func validateLoop(vr *ValidationResult, l *LoopConfig) {
	if l.MaxIterations < 1 {
		addError(vr, "loop.max_iterations", fmt.Sprintf("must be at least 1, got %d", l.MaxIterations))
	}
	if l.Pause < 0 {
		addError(vr, "loop.pause", "must not be negative")
	}
	if l.ClusterThreshold < 0 {
		addError(vr, "loop.cluster_threshold", "must not be negative")
	}

	seen := make(map[string]string, 3)
	for _, s := range []struct{ field, value string }{
		{"loop.repeat_sentinel", l.RepeatSentinel},
		{"loop.blocked_sentinel", l.BlockedSentinel},
		{"loop.error_sentinel", l.ErrorSentinel},
	} {
		if s.value == "" {
			continue
		}
		if prev, ok := seen[s.value]; ok {
			addWarning(vr, s.field, fmt.Sprintf("same sentinel as %s; the higher-priority signal wins", prev))
			continue
		}
		seen[s.value] = s.field
	}
}

func validateOutput(vr *ValidationResult, o *OutputConfig) {
	if !validVerbosities[strings.ToLower(o.Verbosity)] {
		addError(vr, "output.verbosity",
			fmt.Sprintf("unrecognized verbosity %q; must be one of: quiet, normal, verbose", o.Verbosity))
	}
}

func validateRelay(vr *ValidationResult, r *RelayConfig) {
	if r.QueueSize < 0 {
		addError(vr, "relay.queue_size", "must not be negative")
	}
	if r.Timeout < 0 {
		addError(vr, "relay.timeout", "must not be negative")
	}

	schemes, known := relaySchemes[r.Kind]
	if !known {
		addError(vr, "relay.kind", fmt.Sprintf("unrecognized kind %q; must be webhook or websocket", r.Kind))
	}
	if !r.Enabled {
		return
	}
	if r.URL == "" {
		addError(vr, "relay.url", "must be set when the relay is enabled")
		return
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		addError(vr, "relay.url", fmt.Sprintf("invalid URL %q: %v", r.URL, err))
		return
	}
	if known && !containsString(schemes, u.Scheme) {
		addError(vr, "relay.url",
			fmt.Sprintf("scheme %q does not match relay kind %q (want %s)", u.Scheme, r.Kind, strings.Join(schemes, " or ")))
	}
}

func validateSteps(vr *ValidationResult, steps []StepConfig) {
	for i, s := range steps {
		prefix := fmt.Sprintf("steps[%d]", i)
		hasPrompt := strings.TrimSpace(s.Prompt) != ""
		hasFile := s.PromptFile != ""

		switch {
		case hasPrompt && hasFile:
			addError(vr, prefix, "set only one of prompt and prompt_file")
		case !hasPrompt && !hasFile:
			addError(vr, prefix, "one of prompt or prompt_file is required")
		case hasFile:
			if _, err := os.Stat(s.PromptFile); err != nil {
				addWarning(vr, prefix+".prompt_file", fmt.Sprintf("file %q does not exist", s.PromptFile))
			}
		}
	}
}

// validateUnknownKeys reports TOML keys that did not map to any field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}
	for _, key := range meta.Undecoded() {
		addWarning(vr, key.String(), "unknown configuration key")
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityError, Field: field, Message: message})
}

func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{Severity: SeverityWarning, Field: field, Message: message})
}
