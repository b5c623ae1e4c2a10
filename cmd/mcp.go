package cmd

import (
	"github.com/shipmetrics/prism/internal/iocache"
	"github.com/shipmetrics/prism/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Prism MCP server",
	Long:  `Launch an MCP server that allows AI agents to run aggregation queries via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Full setup so tool calls inherit snapshot path, kind and stores.
		// Stdout stays reserved for the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, iocache.Manager.GetResultCache(), iocache.Manager.GetSprintStore())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
