package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconcast/beacon/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the beacon version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "beacon %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
