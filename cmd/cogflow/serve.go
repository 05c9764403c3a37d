package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve [program]",
	Short: "Start the HTTP server",
	Long: `Serves the program over a JSON API with Prometheus metrics on /metrics and
server-sent prompt events on /events. With --mcp the MCP SSE transport runs
alongside on server.mcp_addr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return cli.Serve(cmd.Context(), cli.ServeOptions{
			Options: commonOptions(cmd, args),
			Addr:    addr,
			MCP:     withMCP,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default server.addr)")
	serveCmd.Flags().Bool("mcp", false, "Also serve MCP over SSE")
}
