package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tunnelguard/tunnelguard/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints tunnelguard version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Version())
	},
}
