package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate [program]",
	Short: "Check the program for consistency",
	Long: `Compiles every prompt and reports unknown flow targets, bad ranges,
unresolved formats and channel errors. With --watch, a loam directory is
validated again on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := commonOptions(cmd, args)
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return cli.WatchValidate(cmd.Context(), opts, cmd.OutOrStdout())
		}
		return cli.Validate(opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Validate again on every change")
}
