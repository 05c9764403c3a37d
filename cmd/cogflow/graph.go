package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var graphCmd = &cobra.Command{
	Use:   "graph [program]",
	Short: "Export a Mermaid graph of the program or of a prompt",
	Long: `Outputs a Mermaid diagram (graph TD). Kinds:
  program   prompts and their flows (--run highlights a stored run)
  abstract  the field graph of a prompt
  concrete  the expanded state graph of a prompt
  action    the generation actions of a first visit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		prompt, _ := cmd.Flags().GetString("prompt")
		runID, _ := cmd.Flags().GetString("run")
		return cli.Graph(cmd.Context(), cli.GraphOptions{
			Options: commonOptions(cmd, args),
			Kind:    kind,
			Prompt:  prompt,
			RunID:   runID,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("kind", "k", "program", "Graph kind: program, abstract, concrete or action")
	graphCmd.Flags().String("prompt", "", "Prompt to draw (default the main entry's prompt)")
	graphCmd.Flags().String("run", "", "Stored run to overlay on the program graph")
}
