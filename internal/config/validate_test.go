package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueFields(issues []ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Field)
	}
	return out
}

func TestValidate_Nil(t *testing.T) {
	t.Parallel()
	vr := Validate(nil, nil)
	assert.True(t, vr.HasErrors())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "empty command", mutate: func(c *Config) { c.Agent.Command = "  " }, field: "agent.command"},
		{name: "negative cols", mutate: func(c *Config) { c.Agent.Cols = -1 }, field: "agent.cols"},
		{name: "negative rows", mutate: func(c *Config) { c.Agent.Rows = -1 }, field: "agent.rows"},
		{name: "env without equals", mutate: func(c *Config) { c.Agent.Env = []string{"A=1", "B"} }, field: "agent.env[1]"},
		{name: "env with empty key", mutate: func(c *Config) { c.Agent.Env = []string{"=x"} }, field: "agent.env[0]"},
		{name: "empty extra arg", mutate: func(c *Config) { c.Agent.ExtraArgs = []string{"--ok", ""} }, field: "agent.extra_args[1]"},
		{name: "zero iterations", mutate: func(c *Config) { c.Loop.MaxIterations = 0 }, field: "loop.max_iterations"},
		{name: "negative pause", mutate: func(c *Config) { c.Loop.Pause = -time.Second }, field: "loop.pause"},
		{name: "negative cluster", mutate: func(c *Config) { c.Loop.ClusterThreshold = -1 }, field: "loop.cluster_threshold"},
		{name: "bad verbosity", mutate: func(c *Config) { c.Output.Verbosity = "loud" }, field: "output.verbosity"},
		{name: "bad relay kind", mutate: func(c *Config) { c.Relay.Kind = "carrier-pigeon" }, field: "relay.kind"},
		{name: "negative queue", mutate: func(c *Config) { c.Relay.QueueSize = -1 }, field: "relay.queue_size"},
		{name: "negative timeout", mutate: func(c *Config) { c.Relay.Timeout = -1 }, field: "relay.timeout"},
		{name: "enabled relay without url", mutate: func(c *Config) { c.Relay.Enabled = true }, field: "relay.url"},
		{
			name: "webhook with ws scheme",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.URL = "ws://localhost/x"
			},
			field: "relay.url",
		},
		{
			name: "websocket with http scheme",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.Kind = RelayKindWebSocket
				c.Relay.URL = "https://localhost/x"
			},
			field: "relay.url",
		},
		{
			name: "unparseable url",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.URL = "http://[::1"
			},
			field: "relay.url",
		},
		{name: "step with both", mutate: func(c *Config) { c.Steps = []StepConfig{{Prompt: "a", PromptFile: "b"}} }, field: "steps[0]"},
		{name: "step with neither", mutate: func(c *Config) { c.Steps = []StepConfig{{Label: "x", Prompt: "  "}} }, field: "steps[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaults()
			tt.mutate(cfg)

			vr := Validate(cfg, nil)
			require.True(t, vr.HasErrors())
			assert.Equal(t, []string{tt.field}, issueFields(vr.Errors()))
		})
	}
}

func TestValidate_ValidRelay(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ kind, url string }{
		{RelayKindWebhook, "https://hooks.example/a"},
		{RelayKindWebhook, "http://localhost:8080/a"},
		{RelayKindWebSocket, "wss://relay.example/ws"},
		{RelayKindWebSocket, "ws://127.0.0.1:9000"},
	} {
		cfg := NewDefaults()
		cfg.Relay = RelayConfig{Enabled: true, Kind: tc.kind, URL: tc.url, QueueSize: 1}
		vr := Validate(cfg, nil)
		assert.False(t, vr.HasErrors(), "%s %s: %v", tc.kind, tc.url, vr.Issues)
	}
}

func TestValidate_DisabledRelayIgnoresURL(t *testing.T) {
	t.Parallel()
	cfg := NewDefaults()
	cfg.Relay.URL = "ws://wrong-scheme-for-webhook"
	assert.False(t, Validate(cfg, nil).HasErrors())
}

func TestValidate_DuplicateSentinelsWarn(t *testing.T) {
	t.Parallel()
	cfg := NewDefaults()
	cfg.Loop.ErrorSentinel = cfg.Loop.RepeatSentinel

	vr := Validate(cfg, nil)
	assert.False(t, vr.HasErrors())
	require.True(t, vr.HasWarnings())
	assert.Equal(t, []string{"loop.error_sentinel"}, issueFields(vr.Warnings()))
	assert.Contains(t, vr.Warnings()[0].Message, "loop.repeat_sentinel")
}

func TestValidate_MissingPromptFileWarns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	present := filepath.Join(dir, "present.md")
	require.NoError(t, os.WriteFile(present, []byte("do it"), 0o644))

	cfg := NewDefaults()
	cfg.Steps = []StepConfig{
		{PromptFile: present},
		{PromptFile: filepath.Join(dir, "absent.md")},
		{Prompt: "inline"},
	}

	vr := Validate(cfg, nil)
	assert.False(t, vr.HasErrors())
	assert.Equal(t, []string{"steps[1].prompt_file"}, issueFields(vr.Warnings()))
}

func TestValidate_UnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "[loop]\nmax_iterations = 2\nretries = 3\n")
	file, err := Decode(path)
	require.NoError(t, err)

	rc := Resolve(NewDefaults(), file.Config, noEnv, nil)
	vr := Validate(rc.Config, &file.Meta)

	assert.False(t, vr.HasErrors())
	assert.Equal(t, []string{"loop.retries"}, issueFields(vr.Warnings()))
	assert.Equal(t, "unknown configuration key", vr.Warnings()[0].Message)
}

func TestValidationResult_Filters(t *testing.T) {
	t.Parallel()
	vr := &ValidationResult{}
	assert.False(t, vr.HasErrors())
	assert.False(t, vr.HasWarnings())

	addWarning(vr, "a", "w")
	addError(vr, "b", "e")
	assert.True(t, vr.HasErrors())
	assert.True(t, vr.HasWarnings())
	assert.Equal(t, []string{"b"}, issueFields(vr.Errors()))
	assert.Equal(t, []string{"a"}, issueFields(vr.Warnings()))
}
