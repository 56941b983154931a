package config

import "time"

// Config is the top-level configuration structure mapping to drover.toml.
type Config struct {
	Agent  AgentConfig  `toml:"agent"`
	Loop   LoopConfig   `toml:"loop"`
	Output OutputConfig `toml:"output"`
	Relay  RelayConfig  `toml:"relay"`
	Steps  []StepConfig `toml:"steps"`
}

// AgentConfig maps to the [agent] section.
type AgentConfig struct {
	Command         string   `toml:"command"`
	Model           string   `toml:"model"`
	ExtraArgs       []string `toml:"extra_args"`
	Env             []string `toml:"env"` // KEY=VALUE pairs added to the agent's environment
	SkipPermissions bool     `toml:"skip_permissions"`
	Cols            int      `toml:"cols"`
	Rows            int      `toml:"rows"`
}

// LoopConfig maps to the [loop] section. Durations are written as strings
// such as "5s" or "100ms".
type LoopConfig struct {
	MaxIterations    int           `toml:"max_iterations"`
	Pause            time.Duration `toml:"pause"`
	ClusterThreshold time.Duration `toml:"cluster_threshold"`
	RepeatSentinel   string        `toml:"repeat_sentinel"`
	BlockedSentinel  string        `toml:"blocked_sentinel"`
	ErrorSentinel    string        `toml:"error_sentinel"`
}

// OutputConfig maps to the [output] section.
type OutputConfig struct {
	Verbosity string `toml:"verbosity"`
	NoColor   bool   `toml:"no_color"`
	RawLog    string `toml:"raw_log"`
	EventLog  string `toml:"event_log"`
}

// RelayConfig maps to the [relay] section.
type RelayConfig struct {
	Enabled   bool          `toml:"enabled"`
	URL       string        `toml:"url"`
	Kind      string        `toml:"kind"`
	QueueSize int           `toml:"queue_size"`
	Timeout   time.Duration `toml:"timeout"`
}

// StepConfig maps to one [[steps]] entry. Exactly one of Prompt and
// PromptFile is set.
type StepConfig struct {
	Label      string `toml:"label"`
	Prompt     string `toml:"prompt"`
	PromptFile string `toml:"prompt_file"`
	Model      string `toml:"model"`
}

// Relay transport kinds.
const (
	RelayKindWebhook   = "webhook"
	RelayKindWebSocket = "websocket"
)
