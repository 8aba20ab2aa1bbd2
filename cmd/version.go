package cmd

import (
	"fmt"

	"github.com/logreplay/camserve/internal/version"
	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.ClientInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:     %s\n", info["Version"])
			fmt.Fprintf(out, "Go version:  %s\n", info["GoVersion"])
			fmt.Fprintf(out, "Git commit:  %s\n", info["GitCommit"])
			fmt.Fprintf(out, "Built:       %s\n", info["FormattedTime"])
			fmt.Fprintf(out, "OS/Arch:     %s/%s\n", info["OS"], info["Arch"])
		},
	}
}
