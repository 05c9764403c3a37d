package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [program]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes every entry of the program as an MCP tool and stored runs as resources.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		return cli.ServeMCP(cmd.Context(), cli.MCPOptions{
			Options:   commonOptions(cmd, args),
			Transport: transport,
			Addr:      addr,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "", "Address to listen on (only for SSE, default server.mcp_addr)")
}
