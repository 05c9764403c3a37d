package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [program]",
	Short: "Run a program entry and print its outputs",
	Long: `Loads the program, runs one entry with the given inputs and prints the
returned values. Inputs come from --json and repeated --input key=value flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, _ := cmd.Flags().GetString("entry")
		raw, _ := cmd.Flags().GetString("json")
		pairs, _ := cmd.Flags().GetStringArray("input")
		asJSON, _ := cmd.Flags().GetBool("output-json")

		inputs, err := cli.ParseInputs(raw, pairs)
		if err != nil {
			return err
		}
		return cli.Run(cmd.Context(), cli.RunOptions{
			Options: commonOptions(cmd, args),
			Entry:   entry,
			Inputs:  inputs,
			JSON:    asJSON,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("entry", "e", "", "Entry to run (default main)")
	runCmd.Flags().String("json", "", "Inputs as a JSON object")
	runCmd.Flags().StringArrayP("input", "i", nil, "Input as key=value; repeatable")
	runCmd.Flags().Bool("output-json", false, "Print outputs as JSON")
}
