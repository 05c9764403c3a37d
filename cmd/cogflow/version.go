package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/internal/presentation/tui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cogflow",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "cogflow version %s\n", cogflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
