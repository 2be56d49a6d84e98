package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/codescan/internal/buildinfo"
)

// Command prints build metadata.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "codescan %s (built %s)\n",
				info.GetVersion(), info.GetBuildDate())
			return err
		},
	}
}
