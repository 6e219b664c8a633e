package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"istechat/answerer/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the ask_question MCP tool on stdio",
	Long: `Start an MCP (Model Context Protocol) server on stdio transport.

The server exposes one tool, ask_question, which answers a question with the
loaded model and returns the answer, category, confidence, similar questions
and links as markdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()

		svc, err := loadService(cfg, logger)
		if err != nil {
			return fmt.Errorf("load answer engine: %w", err)
		}
		defer svc.Close()

		srv := mcpserver.New(svc, cfg.Server.Version, logger.Named("mcp"))
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
