package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// The file* types mirror Config for writing. Durations are written as strings
// so the output reads the way users write drover.toml by hand, and empty
// optional values are left out.
type fileConfig struct {
	Agent  fileAgent    `toml:"agent"`
	Loop   fileLoop     `toml:"loop"`
	Output fileOutput   `toml:"output"`
	Relay  *fileRelay   `toml:"relay,omitempty"`
	Steps  []StepConfig `toml:"steps,omitempty"`
}

type fileAgent struct {
	Command         string   `toml:"command"`
	Model           string   `toml:"model,omitempty"`
	ExtraArgs       []string `toml:"extra_args,omitempty"`
	Env             []string `toml:"env,omitempty"`
	SkipPermissions bool     `toml:"skip_permissions"`
	Cols            int      `toml:"cols"`
	Rows            int      `toml:"rows"`
}

type fileLoop struct {
	MaxIterations    int    `toml:"max_iterations"`
	Pause            string `toml:"pause"`
	ClusterThreshold string `toml:"cluster_threshold"`
	RepeatSentinel   string `toml:"repeat_sentinel"`
	BlockedSentinel  string `toml:"blocked_sentinel"`
	ErrorSentinel    string `toml:"error_sentinel"`
}

type fileOutput struct {
	Verbosity string `toml:"verbosity"`
	NoColor   bool   `toml:"no_color"`
	RawLog    string `toml:"raw_log,omitempty"`
	EventLog  string `toml:"event_log,omitempty"`
}

type fileRelay struct {
	Enabled   bool   `toml:"enabled"`
	URL       string `toml:"url"`
	Kind      string `toml:"kind"`
	QueueSize int    `toml:"queue_size"`
	Timeout   string `toml:"timeout"`
}

// Encode writes cfg to w as drover.toml. The [relay] table is written only
// when the relay is enabled or has a URL.
func Encode(w io.Writer, cfg *Config) error {
	fc := fileConfig{
		Agent: fileAgent{
			Command:         cfg.Agent.Command,
			Model:           cfg.Agent.Model,
			ExtraArgs:       cfg.Agent.ExtraArgs,
			Env:             cfg.Agent.Env,
			SkipPermissions: cfg.Agent.SkipPermissions,
			Cols:            cfg.Agent.Cols,
			Rows:            cfg.Agent.Rows,
		},
		Loop: fileLoop{
			MaxIterations:    cfg.Loop.MaxIterations,
			Pause:            cfg.Loop.Pause.String(),
			ClusterThreshold: cfg.Loop.ClusterThreshold.String(),
			RepeatSentinel:   cfg.Loop.RepeatSentinel,
			BlockedSentinel:  cfg.Loop.BlockedSentinel,
			ErrorSentinel:    cfg.Loop.ErrorSentinel,
		},
		Output: fileOutput{
			Verbosity: cfg.Output.Verbosity,
			NoColor:   cfg.Output.NoColor,
			RawLog:    cfg.Output.RawLog,
			EventLog:  cfg.Output.EventLog,
		},
		Steps: cfg.Steps,
	}
	if cfg.Relay.Enabled || cfg.Relay.URL != "" {
		fc.Relay = &fileRelay{
			Enabled:   cfg.Relay.Enabled,
			URL:       cfg.Relay.URL,
			Kind:      cfg.Relay.Kind,
			QueueSize: cfg.Relay.QueueSize,
			Timeout:   cfg.Relay.Timeout.String(),
		}
	}

	enc := toml.NewEncoder(w)
	enc.Indent = ""
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
