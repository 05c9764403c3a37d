package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ids of stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(cmd.Context(), commonOptions(cmd, nil), cmd.OutOrStdout())
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render the steps and outputs of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ShowRun(cmd.Context(), commonOptions(cmd, nil), args[0], cmd.OutOrStdout())
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
