// Package cli implements the answerer-cli commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"istechat/answerer/answerer"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "answerer-cli",
	Short: "Answer Turkish questions from a trained classifier and question index",
	Long: `answerer-cli loads the classifier model, its label catalog and the optional
similarity index, then answers questions from the command line, in batch from
CSV/TSV/text files, over HTTP or as an MCP tool.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "answerer-cli %s\ncommit: %s\n", appVersion, appCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadRuntime reads the configuration and builds the logger every command uses.
func loadRuntime() (answerer.Config, *zap.Logger, error) {
	cfg, err := answerer.LoadConfig(strings.TrimSpace(configPath))
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	answerer.SetColumnCandidates(cfg.Columns)
	return cfg, logger, nil
}

// newLogger builds a zap logger writing to stderr so stdout stays free for
// command output and the MCP stdio transport.
func newLogger(cfg answerer.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// loadService is replaced in tests.
var loadService = func(cfg answerer.Config, logger *zap.Logger) (*answerer.Service, error) {
	return answerer.LoadService(cfg, logger)
}
