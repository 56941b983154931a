package config

import "time"

// NewDefaults returns a Config populated with all default values.
func NewDefaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Command: "claude",
			Cols:    500,
			Rows:    50,
		},
		Loop: LoopConfig{
			MaxIterations:    10,
			Pause:            5 * time.Second,
			ClusterThreshold: 100 * time.Millisecond,
			RepeatSentinel:   "<promise>REPEAT</promise>",
			BlockedSentinel:  "<promise>BLOCKED</promise>",
			ErrorSentinel:    "<promise>ERROR</promise>",
		},
		Output: OutputConfig{
			Verbosity: "normal",
		},
		Relay: RelayConfig{
			Kind:      RelayKindWebhook,
			QueueSize: 64,
			Timeout:   10 * time.Second,
		},
	}
}
