package cmd

import (
	"fmt"

	"github.com/logreplay/camserve/internal/util"
	"github.com/logreplay/camserve/internal/version"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "camserve",
		Short: "Camera replay server",
		Long: `camserve republishes recorded camera frames onto a video bus during log replay.
Downstream viewers attach over websocket to receive the frames as they are published.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitLogger(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return nil
			}
			return cmd.Help()
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewReplayCommand())
	rootCmd.AddCommand(NewLayoutCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
