package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/drover/internal/buildinfo"
)

// versionFlags holds the version command's flags.
type versionFlags struct {
	JSON  bool
	Short bool
}

func newVersionCmd() *cobra.Command {
	var flags versionFlags
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print drover's version and build details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeVersion(cmd.OutOrStdout(), buildinfo.GetInfo(), flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print build details as JSON")
	cmd.Flags().BoolVarP(&flags.Short, "short", "s", false, "Print only the version, for scripts")
	cmd.MarkFlagsMutuallyExclusive("json", "short")
	return cmd
}

func writeVersion(w io.Writer, info buildinfo.Info, flags versionFlags) error {
	switch {
	case flags.Short:
		_, err := fmt.Fprintln(w, info.Version)
		return err
	case flags.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	default:
		_, err := fmt.Fprintln(w, info.String())
		return err
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
