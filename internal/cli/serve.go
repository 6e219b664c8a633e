package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"istechat/answerer/internal/history"
	"istechat/answerer/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if !cfg.Log.Development {
			gin.SetMode(gin.ReleaseMode)
		}

		svc, err := loadService(cfg, logger)
		if err != nil {
			return fmt.Errorf("load answer engine: %w", err)
		}
		defer svc.Close()

		store, err := history.Open(cfg.Database.Path, logger.Named("history"))
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()

		srv := server.New(svc, store, server.Options{
			Version:         cfg.Server.Version,
			MaxHistoryItems: cfg.Server.MaxHistoryItems,
			TopK:            cfg.Search.TopK,
		}, logger.Named("http"))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		logger.Info("server stopped", zap.String("addr", cfg.Server.Addr))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
