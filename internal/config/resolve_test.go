package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func durationPtr(d time.Duration) *time.Duration { return &d }

// mockEnvFunc creates an EnvFunc backed by a map.
func mockEnvFunc(vars map[string]string) EnvFunc {
	return func(key string) (string, bool) {
		val, ok := vars[key]
		return val, ok
	}
}

func noEnv(_ string) (string, bool) { return "", false }

func TestResolve_OnlyDefaults(t *testing.T) {
	t.Parallel()
	rc := Resolve(NewDefaults(), nil, noEnv, nil)

	require.NotNil(t, rc.Config)
	assert.Equal(t, NewDefaults(), rc.Config)
	for path, src := range rc.Sources {
		assert.Equal(t, SourceDefault, src, path)
	}
	assert.Contains(t, rc.Sources, "loop.pause")
	assert.Contains(t, rc.Sources, "relay.url")
	assert.Empty(t, rc.Warnings)
}

func TestResolve_NilInputs(t *testing.T) {
	t.Parallel()
	rc := Resolve(nil, nil, nil, nil)
	require.NotNil(t, rc.Config)
	assert.Equal(t, &Config{}, rc.Config)
}

func TestResolve_FileOverridesNonZero(t *testing.T) {
	t.Parallel()
	file := &Config{
		Agent: AgentConfig{Model: "opus", ExtraArgs: []string{"--x"}, Env: []string{"A=1"}},
		Loop:  LoopConfig{Pause: time.Second},
		Steps: []StepConfig{{Prompt: "go"}},
	}

	rc := Resolve(NewDefaults(), file, noEnv, nil)

	assert.Equal(t, "opus", rc.Config.Agent.Model)
	assert.Equal(t, SourceFile, rc.Sources["agent.model"])
	assert.Equal(t, []string{"--x"}, rc.Config.Agent.ExtraArgs)
	assert.Equal(t, []string{"A=1"}, rc.Config.Agent.Env)
	assert.Equal(t, SourceFile, rc.Sources["agent.env"])
	assert.Equal(t, time.Second, rc.Config.Loop.Pause)
	assert.Equal(t, SourceFile, rc.Sources["loop.pause"])
	assert.Equal(t, []StepConfig{{Prompt: "go"}}, rc.Config.Steps)
	assert.Equal(t, SourceFile, rc.Sources["steps"])

	// Zero file values keep defaults.
	assert.Equal(t, "claude", rc.Config.Agent.Command)
	assert.Equal(t, SourceDefault, rc.Sources["agent.command"])
	assert.Equal(t, 10, rc.Config.Loop.MaxIterations)
}

func TestResolve_DoesNotAliasInputs(t *testing.T) {
	t.Parallel()
	file := &Config{Agent: AgentConfig{ExtraArgs: []string{"a"}}, Steps: []StepConfig{{Prompt: "p"}}}

	rc := Resolve(NewDefaults(), file, noEnv, nil)
	rc.Config.Agent.ExtraArgs[0] = "changed"
	rc.Config.Steps[0].Prompt = "changed"

	assert.Equal(t, "a", file.Agent.ExtraArgs[0])
	assert.Equal(t, "p", file.Steps[0].Prompt)
}

func TestResolve_Env(t *testing.T) {
	t.Parallel()
	env := mockEnvFunc(map[string]string{
		"DROVER_AGENT_COMMAND":    "/opt/claude",
		"DROVER_MODEL":            "haiku",
		"DROVER_SKIP_PERMISSIONS": "true",
		"DROVER_MAX_ITERATIONS":   "4",
		"DROVER_PAUSE":            "250ms",
		"DROVER_VERBOSITY":        "quiet",
		"DROVER_NO_COLOR":         "1",
		"DROVER_RAW_LOG":          "raw.log",
		"DROVER_EVENT_LOG":        "events.jsonl",
		"DROVER_RELAY_URL":        "https://hooks.example/x",
	})
	file := &Config{Agent: AgentConfig{Model: "opus"}}

	rc := Resolve(NewDefaults(), file, env, nil)
	c := rc.Config

	assert.Equal(t, "/opt/claude", c.Agent.Command)
	assert.Equal(t, "haiku", c.Agent.Model)
	assert.True(t, c.Agent.SkipPermissions)
	assert.Equal(t, 4, c.Loop.MaxIterations)
	assert.Equal(t, 250*time.Millisecond, c.Loop.Pause)
	assert.Equal(t, "quiet", c.Output.Verbosity)
	assert.True(t, c.Output.NoColor)
	assert.Equal(t, "raw.log", c.Output.RawLog)
	assert.Equal(t, "events.jsonl", c.Output.EventLog)
	assert.Equal(t, "https://hooks.example/x", c.Relay.URL)
	assert.True(t, c.Relay.Enabled)

	for _, path := range []string{"agent.model", "loop.pause", "relay.url", "relay.enabled", "output.no_color"} {
		assert.Equal(t, SourceEnv, rc.Sources[path], path)
	}
	assert.Empty(t, rc.Warnings)
}

func TestResolve_EnvUnparseableIsWarned(t *testing.T) {
	t.Parallel()
	env := mockEnvFunc(map[string]string{
		"DROVER_MAX_ITERATIONS": "lots",
		"DROVER_PAUSE":          "later",
		"DROVER_NO_COLOR":       "maybe",
	})

	rc := Resolve(NewDefaults(), nil, env, nil)

	assert.Equal(t, 10, rc.Config.Loop.MaxIterations)
	assert.Equal(t, 5*time.Second, rc.Config.Loop.Pause)
	assert.False(t, rc.Config.Output.NoColor)
	assert.Equal(t, SourceDefault, rc.Sources["loop.max_iterations"])
	require.Len(t, rc.Warnings, 3)
	assert.Contains(t, rc.Warnings[0], "DROVER_NO_COLOR")
}

func TestResolve_EmptyRelayURLDoesNotEnable(t *testing.T) {
	t.Parallel()
	rc := Resolve(NewDefaults(), nil, mockEnvFunc(map[string]string{"DROVER_RELAY_URL": ""}), nil)
	assert.False(t, rc.Config.Relay.Enabled)
	assert.Equal(t, SourceEnv, rc.Sources["relay.url"])
}

func TestResolve_CLIWinsOverEnv(t *testing.T) {
	t.Parallel()
	env := mockEnvFunc(map[string]string{
		"DROVER_MODEL":          "haiku",
		"DROVER_MAX_ITERATIONS": "4",
	})
	overrides := &CLIOverrides{
		Model:         stringPtr("opus"),
		MaxIterations: intPtr(2),
		Pause:         durationPtr(0),
		Verbosity:     stringPtr("verbose"),
		NoColor:       boolPtr(true),
		RawLog:        stringPtr("r.log"),
		EventLog:      stringPtr("e.jsonl"),
		RelayURL:      stringPtr("ws://localhost:9000/relay"),
	}

	rc := Resolve(NewDefaults(), nil, env, overrides)
	c := rc.Config

	assert.Equal(t, "opus", c.Agent.Model)
	assert.Equal(t, 2, c.Loop.MaxIterations)
	assert.Equal(t, time.Duration(0), c.Loop.Pause, "explicit zero pause is honored")
	assert.Equal(t, "verbose", c.Output.Verbosity)
	assert.True(t, c.Output.NoColor)
	assert.Equal(t, "r.log", c.Output.RawLog)
	assert.Equal(t, "e.jsonl", c.Output.EventLog)
	assert.Equal(t, "ws://localhost:9000/relay", c.Relay.URL)
	assert.True(t, c.Relay.Enabled)

	for _, path := range []string{"agent.model", "loop.max_iterations", "loop.pause", "relay.enabled"} {
		assert.Equal(t, SourceCLI, rc.Sources[path], path)
	}
}

func TestResolve_NilOverridesKeepLowerLayers(t *testing.T) {
	t.Parallel()
	file := &Config{Agent: AgentConfig{Model: "opus"}}

	rc := Resolve(NewDefaults(), file, noEnv, &CLIOverrides{})

	assert.Equal(t, "opus", rc.Config.Agent.Model)
	assert.Equal(t, SourceFile, rc.Sources["agent.model"])
}
