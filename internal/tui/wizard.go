package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/AbdelazizMoustafa10m/drover/internal/config"
)

// InitAnswers holds the values collected by the init form. Numeric and
// duration fields stay strings while the form is open so huh.Input can bind
// to them.
type InitAnswers struct {
	Command         string
	Model           string
	SkipPermissions bool
	MaxIterations   string
	Pause           string
	Verbosity       string
	RelayURL        string
}

// DefaultInitAnswers returns answers pre-filled from cfg.
func DefaultInitAnswers(cfg *config.Config) InitAnswers {
	return InitAnswers{
		Command:         cfg.Agent.Command,
		Model:           cfg.Agent.Model,
		SkipPermissions: cfg.Agent.SkipPermissions,
		MaxIterations:   strconv.Itoa(cfg.Loop.MaxIterations),
		Pause:           cfg.Loop.Pause.String(),
		Verbosity:       cfg.Output.Verbosity,
		RelayURL:        cfg.Relay.URL,
	}
}

// Apply writes the answers onto cfg. A relay URL enables the relay and picks
// its kind from the URL scheme.
func (a InitAnswers) Apply(cfg *config.Config) error {
	if err := validateCommand(a.Command); err != nil {
		return err
	}
	n, err := parsePositiveInt(a.MaxIterations)
	if err != nil {
		return fmt.Errorf("max iterations: %w", err)
	}
	pause, err := parsePause(a.Pause)
	if err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	kind, err := relayKind(a.RelayURL)
	if err != nil {
		return fmt.Errorf("relay url: %w", err)
	}

	cfg.Agent.Command = strings.TrimSpace(a.Command)
	cfg.Agent.Model = strings.TrimSpace(a.Model)
	cfg.Agent.SkipPermissions = a.SkipPermissions
	cfg.Loop.MaxIterations = n
	cfg.Loop.Pause = pause
	if a.Verbosity != "" {
		cfg.Output.Verbosity = a.Verbosity
	}
	if u := strings.TrimSpace(a.RelayURL); u != "" {
		cfg.Relay.Enabled = true
		cfg.Relay.URL = u
		cfg.Relay.Kind = kind
	}
	return nil
}

// NewInitForm builds the huh form that fills a.
func NewInitForm(a *InitAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Agent command").
				Description("Executable that speaks the stream-json protocol.").
				Value(&a.Command).
				Validate(validateCommand),
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the agent's default.").
				Value(&a.Model),
			huh.NewConfirm().
				Title("Skip permission prompts?").
				Description("Passes --dangerously-skip-permissions to the agent.").
				Value(&a.SkipPermissions),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Max iterations").
				Description("Iteration budget per step.").
				Value(&a.MaxIterations).
				Validate(func(s string) error {
					_, err := parsePositiveInt(s)
					return err
				}),
			huh.NewInput().
				Title("Pause").
				Description("Wait before a repeated iteration, e.g. 5s.").
				Value(&a.Pause).
				Validate(func(s string) error {
					_, err := parsePause(s)
					return err
				}),
			huh.NewSelect[string]().
				Title("Transcript verbosity").
				Options(
					huh.NewOption("Normal", "normal"),
					huh.NewOption("Verbose", "verbose"),
					huh.NewOption("Quiet", "quiet"),
				).
				Value(&a.Verbosity),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Relay URL").
				Description("Optional http(s) webhook or ws(s) endpoint that mirrors prompts and replies.").
				Value(&a.RelayURL).
				Validate(func(s string) error {
					_, err := relayKind(s)
					return err
				}),
		),
	).WithShowHelp(true)
}

func validateCommand(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("command is required")
	}
	return nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}

func parsePause(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%q is negative", s)
	}
	return d, nil
}

// relayKind maps a relay URL to its transport kind. An empty URL is valid
// and yields an empty kind.
func relayKind(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%q is not a valid URL", raw)
	}
	switch u.Scheme {
	case "http", "https":
		return config.RelayKindWebhook, nil
	case "ws", "wss":
		return config.RelayKindWebSocket, nil
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
