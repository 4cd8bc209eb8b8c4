// Package cli implements the gocontext command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/gocontext-search/internal/app"
	"github.com/dshills/gocontext-search/internal/config"
	"github.com/dshills/gocontext-search/internal/logging"
	"github.com/dshills/gocontext-search/internal/storage"
)

// BuildInfo is stamped by the linker
type BuildInfo struct {
	Version   string
	BuildTime string
}

type rootOptions struct {
	configPath string
}

// Execute runs the root command with ctx
func Execute(ctx context.Context, info BuildInfo) error {
	return NewRootCmd(info).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd(info BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gocontext",
		Short: "Hybrid code and documentation search",
		Long: `gocontext indexes source trees and answers queries by combining keyword
and semantic retrieval. Identifier-like queries lean on keyword matching,
natural language questions lean on embeddings, and an optional reranker
refines the head of the result list.

Run "gocontext serve" to expose the same pipeline as MCP tools over stdio.`,
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("gocontext %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		info.Version, info.BuildTime, storage.BuildMode, storage.DriverName))

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default $GOCONTEXT_CONFIG)")

	rootCmd.AddCommand(newSearchCmd(opts))
	rootCmd.AddCommand(newIndexCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// loadConfig reads the config named by --config
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp builds the logger and the component graph from cfg
func openApp(cfg config.Config) (*app.App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("close failed", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
