package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/drover/internal/config"
	"github.com/AbdelazizMoustafa10m/drover/internal/logging"
	"github.com/AbdelazizMoustafa10m/drover/internal/tui"
)

// stdinIsTerminal reports whether the init form can prompt. Tests replace it.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// runInitForm shows the interactive form. Tests replace it.
var runInitForm = func(a *tui.InitAnswers) error {
	return tui.NewInitForm(a).Run()
}

func newInitCmd() *cobra.Command {
	var (
		force bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter drover.toml",
		Long: `Write a drover.toml in the current directory (or the path given by
--config). When stdin is a terminal a short form asks for the agent command,
model, iteration budget, pause, verbosity, and an optional relay URL.
Otherwise, or with --yes, the defaults are written as they are.

An existing file is kept unless --force is given.`,
		Example: `  drover init
  drover init --yes
  drover init --config ci/drover.toml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force, yes)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Write the defaults without prompting")

	return cmd
}

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func runInit(cmd *cobra.Command, force, yes bool) error {
	logger := logging.New("init")

	path := config.FileName
	if flagConfig != "" {
		path = flagConfig
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists; pass --force to overwrite it", path)
	}

	cfg := config.NewDefaults()
	answers := tui.DefaultInitAnswers(cfg)

	if !yes && stdinIsTerminal() {
		if err := runInitForm(&answers); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return errors.New("init cancelled")
			}
			return fmt.Errorf("running init form: %w", err)
		}
	} else {
		logger.Debug("writing defaults without prompting", "yes", yes)
	}

	if err := answers.Apply(cfg); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := config.Encode(&buf, cfg); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	logger.Info("wrote config", "path", path)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
