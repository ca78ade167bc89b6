package commands

import (
	"epicscope/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		log.Info().Msg("MCP Server starting Stdio loop")
		return mcp.NewServer(p, cfg.ReportDir, cfg.EnableMermaidCharts, Version).Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
